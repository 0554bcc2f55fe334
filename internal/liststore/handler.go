package liststore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kingrea/roster/internal/employee"
)

const (
	// DefaultSitePath is the site the list lives under unless overridden.
	DefaultSitePath = "/sites/roster"
	// DefaultMaxBodyBytes limits request payloads to 1 MB.
	DefaultMaxBodyBytes int64 = 1 << 20

	contentTypeJSON = "application/json; odata.metadata=minimal"
)

var (
	listSegment = regexp.MustCompile(`^GetByTitle\('(.*)'\)$`)
	itemSegment = regexp.MustCompile(`^items\((\d+)\)$`)
)

type handler struct {
	store    *Store
	logger   *zap.Logger
	tokens   *Tokens
	limiter  *rate.Limiter
	metrics  *Metrics
	sitePath string
	maxBody  int64
}

// Option customizes NewHandler.
type Option func(*handler)

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithTokens requires a valid bearer token on every list request.
func WithTokens(t *Tokens) Option {
	return func(h *handler) {
		h.tokens = t
	}
}

// WithRateLimit throttles list requests to limit per second with burst.
// A non-positive limit disables throttling.
func WithRateLimit(limit float64, burst int) Option {
	return func(h *handler) {
		if limit <= 0 {
			h.limiter = nil
			return
		}
		h.limiter = rate.NewLimiter(rate.Limit(limit), max(burst, 1))
	}
}

// WithMetrics records requests into m and serves it at /metrics.
func WithMetrics(m *Metrics) Option {
	return func(h *handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithSitePath mounts the list API under path instead of DefaultSitePath.
func WithSitePath(path string) Option {
	return func(h *handler) {
		h.sitePath = path
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(h *handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// NewHandler serves store over the list REST surface:
//
//	GET  {site}/_api/web/lists/GetByTitle('{title}')/items
//	POST {site}/_api/web/lists/GetByTitle('{title}')/items
//	GET  {site}/_api/web/lists/GetByTitle('{title}')/items({id})
//	POST {site}/_api/web/lists/GetByTitle('{title}')/items({id})   X-HTTP-Method: MERGE | DELETE
//
// plus GET /healthz and GET /metrics.
func NewHandler(store *Store, opts ...Option) http.Handler {
	h := &handler{
		store:    store,
		logger:   zap.NewNop(),
		metrics:  NewMetrics(),
		sitePath: DefaultSitePath,
		maxBody:  DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.metrics.setItems(store.Len())

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(h.logger))
	r.Use(h.metrics.middleware)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	api := chi.NewRouter()
	if h.tokens != nil {
		api.Use(bearerAuth(h.tokens))
	}
	if h.limiter != nil {
		api.Use(throttle(h.limiter, h.logger))
	}
	api.Route("/web/lists/{list}", func(r chi.Router) {
		r.Get("/items", h.handleList)
		r.Post("/items", h.handleCreate)
		r.Get("/{item}", h.handleGet)
		r.Post("/{item}", h.handleItemPost)
		r.Patch("/{item}", h.handleMerge)
		r.Delete("/{item}", h.handleDelete)
	})
	r.Mount(mountPath(h.sitePath), api)
	return r
}

func mountPath(site string) string {
	site = "/" + strings.Trim(strings.TrimSpace(site), "/")
	if site == "/" {
		return "/_api"
	}
	return site + "/_api"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"list":   h.store.Title(),
		"items":  h.store.Len(),
	})
}

func (h *handler) handleList(w http.ResponseWriter, r *http.Request) {
	if !h.resolveList(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, employee.ItemEnvelope{Value: h.store.List()})
}

func (h *handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !h.resolveList(w, r) {
		return
	}
	var payload employee.Payload
	if !h.decode(w, r, &payload) {
		return
	}
	item, tag, err := h.store.Create(payload)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.metrics.setItems(h.store.Len())
	w.Header().Set("ETag", tag)
	writeJSON(w, http.StatusCreated, item)
}

func (h *handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resolveItem(w, r)
	if !ok {
		return
	}
	item, tag, err := h.store.Get(id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	w.Header().Set("ETag", tag)
	writeJSON(w, http.StatusOK, item)
}

// handleItemPost dispatches on X-HTTP-Method the way SharePoint tunnels
// MERGE and DELETE through POST.
func (h *handler) handleItemPost(w http.ResponseWriter, r *http.Request) {
	switch strings.ToUpper(strings.TrimSpace(r.Header.Get("X-HTTP-Method"))) {
	case "MERGE", http.MethodPatch:
		h.handleMerge(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	case "":
		http.Error(w, "Updating an item requires the X-HTTP-Method header.", http.StatusBadRequest)
	default:
		w.Header().Set("Allow", "MERGE, DELETE")
		http.Error(w, "Unsupported X-HTTP-Method.", http.StatusMethodNotAllowed)
	}
}

func (h *handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resolveItem(w, r)
	if !ok {
		return
	}
	var patch Patch
	if !h.decode(w, r, &patch) {
		return
	}
	_, tag, err := h.store.Merge(id, patch, r.Header.Get("IF-MATCH"))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	w.Header().Set("ETag", tag)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resolveItem(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(id, r.Header.Get("IF-MATCH")); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.metrics.setItems(h.store.Len())
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) resolveList(w http.ResponseWriter, r *http.Request) bool {
	title, ok := listTitle(chi.URLParam(r, "list"))
	if !ok || !h.store.Matches(title) {
		http.Error(w, fmt.Sprintf("List '%s' does not exist at site with URL '%s'.", title, h.sitePath), http.StatusNotFound)
		return false
	}
	return true
}

func (h *handler) resolveItem(w http.ResponseWriter, r *http.Request) (int, bool) {
	if !h.resolveList(w, r) {
		return 0, false
	}
	m := itemSegment.FindStringSubmatch(chi.URLParam(r, "item"))
	if m == nil {
		http.NotFound(w, r)
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

// listTitle extracts the title from a GetByTitle('...') segment, which may
// arrive percent-encoded and uses doubled quotes for a literal quote.
func listTitle(segment string) (string, bool) {
	if unescaped, err := url.PathUnescape(segment); err == nil {
		segment = unescaped
	}
	m := listSegment.FindStringSubmatch(segment)
	if m == nil {
		return segment, false
	}
	return strings.ReplaceAll(m[1], "''", "'"), true
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	reader := http.MaxBytesReader(w, r.Body, h.maxBody)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "The request body exceeds the allowed size.", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "Unable to read the request body.", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, into); err != nil {
		http.Error(w, "Invalid JSON. A token was not recognized in the JSON content.", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr *FieldError
	switch {
	case errors.As(err, &fieldErr):
		http.Error(w, fmt.Sprintf("Field '%s': %s.", fieldErr.Field, fieldErr.Message), http.StatusBadRequest)
	case errors.Is(err, ErrItemNotFound):
		http.Error(w, "Item does not exist. It may have been deleted by another user.", http.StatusNotFound)
	case errors.Is(err, ErrVersionMismatch):
		http.Error(w, "The version of the item does not match", http.StatusPreconditionFailed)
	case errors.Is(err, ErrPreconditionRequired):
		http.Error(w, "An IF-MATCH header is required for this request.", http.StatusPreconditionRequired)
	default:
		h.logger.Error("list operation failed", zap.Error(err), zap.String("request_id", RequestIDFrom(r.Context())))
		http.Error(w, "Internal error.", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
