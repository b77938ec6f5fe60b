package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"contentfactory/internal/domain"
	"contentfactory/internal/middleware"
	"contentfactory/internal/pipeline"
)

const maxBodyBytes = 1 << 20

// StoreStatus reports relational store reachability.
type StoreStatus interface {
	Available(ctx context.Context) bool
	MarkUnavailable()
}

// EngineHealth probes the workflow engine.
type EngineHealth interface {
	Healthy(ctx context.Context) bool
}

type App struct {
	Sessions *pipeline.Sessions
	Ingress  *pipeline.Ingress
	Gate     *pipeline.ResumeGate
	Store    StoreStatus
	Engine   EngineHealth
	Log      zerolog.Logger
	Version  string

	started time.Time
}

func NewApp(sessions *pipeline.Sessions, ingress *pipeline.Ingress, gate *pipeline.ResumeGate, store StoreStatus, engine EngineHealth, log zerolog.Logger, version string) *App {
	return &App{
		Sessions: sessions,
		Ingress:  ingress,
		Gate:     gate,
		Store:    store,
		Engine:   engine,
		Log:      log.With().Str("component", "http").Logger(),
		Version:  version,
		started:  time.Now(),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{"ok": false, "error": errCode, "message": message})
}

// fail maps a service error onto the response envelope.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, errCode := classify(err)
	if code == http.StatusServiceUnavailable && a.Store != nil {
		a.Store.MarkUnavailable()
	}
	ev := a.Log.Warn()
	if code >= http.StatusInternalServerError {
		ev = a.Log.Error()
	}
	ev.Err(err).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("path", r.URL.Path).
		Int("status", code).
		Msg("request failed")

	locale := middleware.LocaleFromContext(r.Context())
	body := map[string]any{
		"ok":      false,
		"error":   errCode,
		"message": message(locale, errCode),
	}
	if code < http.StatusInternalServerError || code == http.StatusBadGateway {
		body["detail"] = err.Error()
	}
	a.json(w, code, body)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, "upstream"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// storeReady answers 503 and returns false when the store is down.
func (a *App) storeReady(w http.ResponseWriter, r *http.Request) bool {
	if a.Store == nil || a.Store.Available(r.Context()) {
		return true
	}
	a.fail(w, r, fmt.Errorf("database: %w", domain.ErrStorageUnavailable))
	return false
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", domain.ErrValidation)
		}
		return fmt.Errorf("%w: invalid json: %v", domain.ErrValidation, err)
	}
	return nil
}

func sessionIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid session id %q", domain.ErrValidation, raw)
	}
	return id, nil
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}
