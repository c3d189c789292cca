package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:   "ok",
		Time:     s.now().UTC(),
		Requests: s.tracer.GetMetrics().TotalRequests,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			writeError(w, r, http.StatusServiceUnavailable, "dataset store unavailable")
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.reader.Dataset(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to load dataset", applog.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "failed to load dataset")
		return
	}
	writeJSON(w, r, http.StatusOK, newDatasetResponse(ds))
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	params, err := ParseForecastParams(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	target := core.PeriodOf(s.now())
	if params.Month != "" {
		if target, err = s.reader.ParseTarget(params.Month); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	key, err := s.forecastKey(ctx, target, params.Residents)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read last refresh", applog.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "failed to read dataset state")
		return
	}
	if cached, ok := s.forecastCache.Get(key); ok {
		writeJSON(w, r, http.StatusOK, newForecastResponse(cached, true))
		return
	}

	result, err := s.reader.Forecast(ctx, target, params.Residents)
	if err != nil {
		status := forecastErrorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(ctx, "Forecast failed",
				applog.FieldPeriod, target.String(),
				applog.FieldResidents, params.Residents,
				applog.FieldError, err)
			writeError(w, r, status, "forecast failed")
			return
		}
		writeError(w, r, status, err.Error())
		return
	}

	s.forecastCache.Set(key, result)
	writeJSON(w, r, http.StatusOK, newForecastResponse(result, false))
}

// forecastKey ties a cached forecast to the refresh run it was computed from.
func (s *Server) forecastKey(ctx context.Context, target core.Period, residents int) (string, error) {
	run, ok, err := s.reader.LastRefresh(ctx)
	if err != nil {
		return "", err
	}
	var runID int64
	if ok {
		runID = run.ID
	}
	return fmt.Sprintf("%s|%d|%d", target.Key(), residents, runID), nil
}

func forecastErrorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrNotParseable):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrTargetInPast),
		errors.Is(err, core.ErrInvalidResidents):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrEmptyDataset):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	category, err := ParseCategory(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	points, err := s.reader.History(r.Context(), category)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to load history",
			applog.FieldCategory, category,
			applog.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "failed to load history")
		return
	}
	if len(points) == 0 {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("no history for category %q", category))
		return
	}
	writeJSON(w, r, http.StatusOK, newHistoryResponse(category, points))
}

func (s *Server) handleLastRefresh(w http.ResponseWriter, r *http.Request) {
	run, ok, err := s.reader.LastRefresh(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to read last refresh", applog.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "failed to read last refresh")
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "no refresh has run yet")
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

func (s *Server) handleRequestRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.requester == nil {
		writeError(w, r, http.StatusServiceUnavailable, services.ErrNoPublisher.Error())
		return
	}

	reason := ParseReason(r.URL.Query(), amqp.ReasonManual)
	requestID, err := s.requester.RequestRefresh(ctx, reason)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to queue refresh",
			applog.FieldReason, reason,
			applog.FieldError, err)
		status := http.StatusBadGateway
		if errors.Is(err, services.ErrNoPublisher) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, r, status, "failed to queue refresh")
		return
	}

	applog.FromContext(ctx).InfoContext(ctx, "Refresh queued", applog.FieldReason, reason, "refresh_request_id", requestID)
	writeJSON(w, r, http.StatusAccepted, refreshResponse{RequestID: requestID, Reason: reason, Status: "queued"})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", applog.FieldPath, r.URL.Path)
	writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}
