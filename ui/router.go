package ui

import (
	"net/http"

	"retryq/common"
	"retryq/services"

	"github.com/go-chi/chi/v5"
	"github.com/justinas/nosurf"
	"github.com/rs/zerolog/log"
)

const (
	sessionCookieName = "RetryqSession"

	dashboardDlqLimit = 50
)

type Router struct {
	queueService    *services.QueueService
	sessionsService *services.SessionsService
	authSecret      string
}

func NewRouter(queueService *services.QueueService, sessionsService *services.SessionsService, authSecret string) *Router {
	return &Router{
		queueService:    queueService,
		sessionsService: sessionsService,
		authSecret:      authSecret,
	}
}

// NewRouter returns the ops UI routes. The caller mounts it under /ui.
func (ur *Router) NewRouter() *chi.Mux {
	router := chi.NewRouter()

	router.Use(csrfProtection)

	// Unprotected login routes
	router.Get("/login", ur.loginPage)
	router.Post("/login", ur.processLogin)
	router.Post("/logout", ur.processLogout)

	// Protected routes
	router.With(sessionAuth(ur.sessionsService)).Get("/", ur.dashboard)
	router.With(sessionAuth(ur.sessionsService)).Post("/dlq/{messageId}/retry", ur.retryDeadLetter)

	return router
}

func (ur *Router) loginPage(w http.ResponseWriter, req *http.Request) {
	data := common.LoginPageData{
		Title:     "Login",
		CsrfToken: nosurf.Token(req),
	}
	RenderTemplate(w, "login.html", data)
}

func (ur *Router) processLogin(w http.ResponseWriter, req *http.Request) {
	err := req.ParseForm()
	if err != nil {
		log.Error().Err(err).Msg("failed to parse login form")
		data := common.LoginPageData{
			Title:     "Login",
			Error:     "Invalid form data",
			CsrfToken: nosurf.Token(req),
		}
		RenderTemplate(w, "login.html", data)
		return
	}

	token := req.FormValue("token")
	if token != ur.authSecret {
		log.Error().Msg("invalid login token")
		data := common.LoginPageData{
			Title:     "Login",
			Error:     "Invalid authentication token",
			CsrfToken: nosurf.Token(req),
		}
		RenderTemplate(w, "login.html", data)
		return
	}

	sessionId, _ := ur.sessionsService.CreateSession()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionId,
		Path:     "/",
		HttpOnly: true,
		Secure:   req.TLS != nil, // Only secure if HTTPS
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, req, "/ui", http.StatusFound)
}

func (ur *Router) processLogout(w http.ResponseWriter, req *http.Request) {
	sessionCookie, _ := req.Cookie(sessionCookieName)
	if sessionCookie != nil {
		ur.sessionsService.InvalidateSession(sessionCookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // Delete the cookie
		HttpOnly: true,
	})

	http.Redirect(w, req, "/ui/login", http.StatusFound)
}

func (ur *Router) dashboard(w http.ResponseWriter, req *http.Request) {
	stats, err := ur.queueService.GetQueueStats(req.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch queue stats for dashboard")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	deadLetters, err := ur.queueService.GetDeadLetterMessages(dashboardDlqLimit, req.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch dead letters for dashboard")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data := common.DashboardPageData{
		Title:       "Dashboard",
		Stats:       stats,
		DeadLetters: deadLetters,
		CsrfToken:   nosurf.Token(req),
	}
	RenderTemplate(w, "dashboard.html", data)
}

func (ur *Router) retryDeadLetter(w http.ResponseWriter, req *http.Request) {
	messageId := chi.URLParam(req, "messageId")

	requeued, err := ur.queueService.RetryDeadLetter(messageId, req.Context())
	if err != nil {
		log.Error().Err(err).Str("message_id", messageId).Msg("failed to requeue dead letter from UI")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !requeued {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}

	http.Redirect(w, req, "/ui", http.StatusFound)
}
