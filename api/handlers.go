package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-scrape-coins/engine"
	"github.com/aluiziolira/go-scrape-coins/models"
)

const maxRequestBody = 1 << 20

func (s *Server) handleScrapeRequest(w http.ResponseWriter, r *http.Request) {
	var req models.ScrapeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.respondWithJSON(w, http.StatusBadRequest, engine.ErrorResponse(engine.CodeInvalidRequest, "invalid request body: "+err.Error()))
		return
	}

	resp, err := s.scraper.Scrape(r.Context(), req)
	var failed *engine.ScrapeFailedError
	switch {
	case err == nil:
		s.respondWithJSON(w, http.StatusOK, resp)
	case errors.Is(err, engine.ErrInvalidRequest):
		s.respondWithJSON(w, http.StatusBadRequest, orError(resp, engine.CodeInvalidRequest, err))
	case errors.As(err, &failed):
		s.respondWithJSON(w, http.StatusBadGateway, orError(resp, engine.CodeScrapeFailed, err))
	case r.Context().Err() != nil:
		// client went away; nothing to write to
		slog.Debug("scrape request abandoned", slog.Any("error", err))
	case errors.Is(err, context.DeadlineExceeded):
		s.respondWithJSON(w, http.StatusGatewayTimeout, engine.ErrorResponse("scrape_timeout", err.Error()))
	default:
		slog.Error("scrape request failed", slog.Any("error", err))
		s.respondWithJSON(w, http.StatusInternalServerError, engine.ErrorResponse("internal_error", "internal error"))
	}
}

func orError(resp *models.ScrapeResponse, code string, err error) *models.ScrapeResponse {
	if resp != nil {
		return resp
	}
	return engine.ErrorResponse(code, err.Error())
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{"engine": "healthy"}
	healthy := true
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			healthStatus[name] = "unhealthy"
			healthy = false
			slog.Error("health check failed", slog.String("dependency", name), slog.Any("error", err))
			continue
		}
		healthStatus[name] = "healthy"
	}

	if !healthy {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("encode response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
