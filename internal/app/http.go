package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hackstats/hackboard/internal/snapshot"
	"github.com/hackstats/hackboard/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NewHTTPHandler wires the snapshot API, metrics, and health endpoints on a
// single router.
func NewHTTPHandler(store snapshot.Store, metricsHandler http.Handler, healthHandler http.Handler) http.Handler {
	router := chi.NewRouter()
	traceMode := telemetry.TraceMode()

	api := &apiHandler{store: store}
	router.Get("/api/events", wrapHTTPHandler(traceMode, "api.events.list", http.HandlerFunc(api.listEvents)).ServeHTTP)
	router.Get("/api/events/{event}", wrapHTTPHandler(traceMode, "api.events.get", http.HandlerFunc(api.getEvent)).ServeHTTP)

	router.Handle("/metrics", wrapHTTPHandler(traceMode, "metrics", metricsHandler))
	router.Handle("/livez", wrapHTTPHandler(traceMode, "livez", healthHandler))
	router.Handle("/readyz", wrapHTTPHandler(traceMode, "readyz", healthHandler))
	router.Handle("/healthz", wrapHTTPHandler(traceMode, "healthz", healthHandler))
	return router
}

type apiHandler struct {
	store snapshot.Store
}

func (h *apiHandler) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.List(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "list events failed")
		return
	}
	if events == nil {
		events = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *apiHandler) getEvent(w http.ResponseWriter, r *http.Request) {
	eventName := chi.URLParam(r, "event")
	snap, err := h.store.Get(r.Context(), eventName)
	if errors.Is(err, snapshot.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "unknown event: "+eventName)
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "read event failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func wrapHTTPHandler(traceMode, route string, handler http.Handler) http.Handler {
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	if strings.EqualFold(strings.TrimSpace(traceMode), "off") {
		return handler
	}

	operation := strings.TrimSpace(route)
	if operation == "" {
		operation = "handler"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := startServerSpan(r.Context(), operation, r)
		defer span.End()

		recorder := &statusCapturingResponseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}
		handler.ServeHTTP(recorder, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", recorder.status))
		if recorder.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.status))
			return
		}
		span.SetStatus(codes.Ok, "request completed")
	})
}

func startServerSpan(ctx context.Context, operation string, r *http.Request) (context.Context, trace.Span) {
	return otel.Tracer("hackboard/internal/app").Start(
		ctx,
		"http.server."+operation,
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		),
	)
}

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingResponseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
