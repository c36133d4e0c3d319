package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/solatis/logview/internal/core/db"
	"github.com/solatis/logview/internal/rules"
)

// HTTPOptions wires optional cross-cutting handlers into the HTTP API.
type HTTPOptions struct {
	// Auth wraps /api/ routes when set (see auth.Authenticator.Middleware).
	Auth func(http.Handler) http.Handler
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

type httpAPI struct {
	svc     *QueryService
	limiter *rate.Limiter
}

// NewHTTPHandler returns the HTTP API routes:
//
//	POST   /api/query          run a view (JSON body or ?view=<stored name>)
//	GET    /api/views          list stored views
//	POST   /api/views          store a view
//	GET    /api/views/{name}   show a stored view
//	DELETE /api/views/{name}   delete a stored view
//	GET    /healthz            liveness
//	GET    /metrics            Prometheus metrics
func NewHTTPHandler(svc *QueryService, opts HTTPOptions) http.Handler {
	h := &httpAPI{svc: svc}
	if svc.cfg.QueryRate > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(svc.cfg.QueryRate), svc.cfg.QueryBurst)
	}

	protect := func(next http.Handler) http.Handler {
		if opts.Auth == nil {
			return next
		}
		return opts.Auth(next)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/query", protect(h.rateLimited(http.HandlerFunc(h.handleQuery))))
	mux.Handle("GET /api/views", protect(http.HandlerFunc(h.handleListViews)))
	mux.Handle("POST /api/views", protect(http.HandlerFunc(h.handleSaveView)))
	mux.Handle("GET /api/views/{name}", protect(http.HandlerFunc(h.handleGetView)))
	mux.Handle("DELETE /api/views/{name}", protect(http.HandlerFunc(h.handleDeleteView)))

	// Method-less patterns catch the remaining methods so that 405s use the
	// JSON error envelope.
	for _, path := range []string{"/api/query", "/api/views", "/api/views/{name}"} {
		mux.HandleFunc(path, handleWrongMethod)
	}
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, errors.New("Not found"))
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	return h.withRequestID(mux)
}

// RequestIDHeader echoes the caller's request ID, or a generated one.
const RequestIDHeader = "X-Request-ID"

func (h *httpAPI) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		h.svc.logger.Debug("http request", "request_id", id, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func handleWrongMethod(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusMethodNotAllowed, errors.New("Wrong method"))
}

func (h *httpAPI) rateLimited(next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			WriteError(w, http.StatusTooManyRequests, errors.New("Too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// readJSONBody enforces a JSON content type and the body size limit.
func (h *httpAPI) readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, int, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, http.StatusUnsupportedMediaType, errors.New("Input is not JSON")
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.svc.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("failed to read body: %w", err)
	}
	return body, http.StatusOK, nil
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrBadRequest, name, raw)
	}
	return n, nil
}

func (h *httpAPI) handleQuery(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.svc.cfg.RequestTimeout)
	defer cancel()

	var view *rules.View
	if name := r.URL.Query().Get("view"); name != "" {
		view, err = h.svc.LoadStored(ctx, name)
	} else {
		body, code, readErr := h.readJSONBody(w, r)
		if readErr != nil {
			WriteError(w, code, readErr)
			return
		}
		view, err = rules.ParseView(body)
	}
	if err != nil {
		WriteError(w, httpStatus(err), err)
		return
	}

	start := time.Now()
	page, err := h.svc.Query(ctx, view, offset, int(limit))
	if err != nil {
		h.svc.logger.Warn("query failed", "error", err, "remote", r.RemoteAddr)
		WriteError(w, httpStatus(err), err)
		return
	}
	h.svc.logger.Debug("query served",
		"records", len(page.Records),
		"truncated", page.Truncated,
		"elapsed", time.Since(start))
	writeJSON(w, http.StatusOK, page)
}

// viewDetail is a stored view as returned by the views API.
type viewDetail struct {
	db.StoredView
	View *rules.View `json:"view,omitempty"`
	Text string      `json:"text,omitempty"`
}

func (h *httpAPI) handleListViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.Views()
	if err != nil {
		WriteError(w, httpStatus(err), err)
		return
	}
	stored, err := views.List(r.Context())
	if err != nil {
		WriteError(w, httpStatus(err), err)
		return
	}
	if stored == nil {
		stored = []db.StoredView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"views": stored})
}

type saveViewRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	View        json.RawMessage `json:"view"`
}

func (h *httpAPI) handleSaveView(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.Views()
	if err != nil {
		WriteError(w, httpStatus(err), err)
		return
	}

	body, code, err := h.readJSONBody(w, r)
	if err != nil {
		WriteError(w, code, err)
		return
	}
	var req saveViewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if len(req.View) == 0 {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("%w: missing view", ErrBadRequest))
		return
	}
	view, err := rules.ParseView(req.View)
	if err != nil {
		WriteError(w, httpStatus(err), err)
		return
	}

	save := views.Create
	if r.URL.Query().Get("replace") == "true" {
		save = views.Put
	}
	stored, err := save(r.Context(), req.Name, req.Description, view)
	if err != nil {
		WriteError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, viewDetail{StoredView: *stored, View: view})
}

func (h *httpAPI) handleGetView(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.Views()
	if err != nil {
		WriteError(w, httpStatus(err), err)
		return
	}
	stored, err := views.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		WriteError(w, httpStatus(err), err)
		return
	}
	view, err := stored.View()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, viewDetail{StoredView: *stored, View: view, Text: rules.FormatString(view)})
}

func (h *httpAPI) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.Views()
	if err != nil {
		WriteError(w, httpStatus(err), err)
		return
	}
	if err := views.Delete(r.Context(), r.PathValue("name")); err != nil {
		WriteError(w, httpStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
