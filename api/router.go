package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"retryq/common"
	"retryq/services"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Router struct {
	queueService      *services.QueueService
	monitoringService *services.MonitoringService
	authSecret        string
}

func NewRouter(queueService *services.QueueService, monitoringService *services.MonitoringService, authSecret string) *Router {
	return &Router{
		queueService:      queueService,
		monitoringService: monitoringService,
		authSecret:        authSecret,
	}
}

func (ar *Router) NewRouter() *chi.Mux {
	router := chi.NewRouter()

	router.Get("/healthcheck", ar.healthcheck)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyTokenAuth(ar.authSecret))

		r.Route("/queue", func(r chi.Router) {
			r.Post("/messages", ar.enqueueMessage)
			r.Get("/stats", ar.queueStats)

			r.Route("/dlq/messages", func(r chi.Router) {
				r.Get("/", ar.deadLetterMessages)
				r.Post("/{messageId}/retry", ar.retryDeadLetter)
			})
		})
	})

	return router
}

func (ar *Router) enqueueMessage(w http.ResponseWriter, req *http.Request) {
	var enqueueReq common.EnqueueRequest
	err := json.NewDecoder(req.Body).Decode(&enqueueReq)
	if err != nil {
		log.Error().Err(err).Msg("failed to decode enqueue request body")
		ar.sendErrorResponse(w, http.StatusBadRequest, common.ErrCodeBadRequestInvalidBody)
		return
	}

	var messageId string
	if enqueueReq.LastError != "" {
		messageId, err = ar.queueService.EnqueueFailed(enqueueReq.Kind, enqueueReq.Payload, enqueueReq.Metadata, enqueueReq.LastError, enqueueReq.MaxRetries, req.Context())
	} else {
		messageId, err = ar.queueService.Enqueue(enqueueReq.Kind, enqueueReq.Payload, enqueueReq.Metadata, enqueueReq.MaxRetries, req.Context())
	}
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}

	ar.sendJsonResponse(w, http.StatusCreated, common.EnqueueResponse{Id: messageId})
}

func (ar *Router) queueStats(w http.ResponseWriter, req *http.Request) {
	stats, err := ar.queueService.GetQueueStats(req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, stats)
}

func (ar *Router) deadLetterMessages(w http.ResponseWriter, req *http.Request) {
	limit := 0
	if limitParam := req.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 0 {
			ar.sendErrorResponse(w, http.StatusBadRequest, common.ErrCodeBadRequestInvalidBody)
			return
		}
		limit = parsed
	}

	messages, err := ar.queueService.GetDeadLetterMessages(limit, req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, messages)
}

func (ar *Router) retryDeadLetter(w http.ResponseWriter, req *http.Request) {
	messageId := chi.URLParam(req, "messageId")

	requeued, err := ar.queueService.RetryDeadLetter(messageId, req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	if !requeued {
		ar.sendErrorResponse(w, http.StatusNotFound, common.ErrCodeNotFoundMessage)
		return
	}
	ar.sendNoContentEmptyResponse(w)
}

func (ar *Router) healthcheck(w http.ResponseWriter, req *http.Request) {
	if !ar.monitoringService.IsHealthy(req.Context()) {
		ar.sendErrorResponse(w, http.StatusServiceUnavailable, common.ErrCodeInternal)
		return
	}
	ar.sendNoContentEmptyResponse(w)
}

func (ar *Router) sendNoContentEmptyResponse(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func (ar *Router) sendJsonResponse(w http.ResponseWriter, httpCode int, payload interface{}) {
	respBody, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("error marshaling response body")
		ar.sendErrorResponse(w, http.StatusInternalServerError, common.ErrCodeInternal)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	w.Write(respBody)
}

func (ar *Router) sendErrorResponse(w http.ResponseWriter, httpCode int, errCode string) {
	ar.sendJsonResponse(w, httpCode, common.ErrorResponse{Code: errCode})
}

func (ar *Router) sendResponseFromError(w http.ResponseWriter, err error) {
	var re common.RetryqError
	if errors.As(err, &re) {
		switch re.Code {
		case common.ErrCodeNotFoundMessage:
			ar.sendErrorResponse(w, http.StatusNotFound, re.Code)
		case common.ErrCodeInternal:
			ar.sendErrorResponse(w, http.StatusInternalServerError, re.Code)
		default:
			ar.sendErrorResponse(w, http.StatusBadRequest, re.Code)
		}
	} else {
		ar.sendErrorResponse(w, http.StatusInternalServerError, common.ErrCodeInternal)
	}
}
