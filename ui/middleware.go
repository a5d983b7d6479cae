package ui

import (
	"net/http"

	"retryq/services"

	"github.com/justinas/nosurf"
)

// sessionAuth middleware for UI routes
func sessionAuth(sessionsService *services.SessionsService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sessionCookie, err := req.Cookie(sessionCookieName)
			if err != nil {
				http.Redirect(w, req, "/ui/login", http.StatusFound)
				return
			}

			sessionId := sessionCookie.Value
			if !sessionsService.IsSessionValid(sessionId) {
				http.Redirect(w, req, "/ui/login", http.StatusFound)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// csrfProtection guards the UI forms with nosurf tokens
func csrfProtection(next http.Handler) http.Handler {
	csrfHandler := nosurf.New(next)
	csrfHandler.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "invalid CSRF token", http.StatusBadRequest)
	}))
	return csrfHandler
}
