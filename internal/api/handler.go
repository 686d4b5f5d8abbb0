package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/eventcron/internal/domain"
	"github.com/djlord-it/eventcron/internal/scheduler"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Store covers the read paths and the category table, which has no
// scheduling side effects and so bypasses the managers.
type Store interface {
	GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error)
	ListEvents(ctx context.Context, limit, offset int) ([]domain.Event, error)

	GetGenerator(ctx context.Context, id uuid.UUID) (domain.Generator, error)
	ListGenerators(ctx context.Context) ([]domain.Generator, error)

	GetPool(ctx context.Context, id uuid.UUID) (domain.Pool, error)
	ListPools(ctx context.Context) ([]domain.Pool, error)

	GetCategory(ctx context.Context, id uuid.UUID) (domain.Category, error)
	InsertCategory(ctx context.Context, c domain.Category) error
	UpdateCategory(ctx context.Context, c domain.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// EventManager mutates events through the lifecycle layer so task refs
// stay consistent with the stored records.
type EventManager interface {
	Create(ctx context.Context, ev domain.Event) (domain.Event, error)
	Update(ctx context.Context, ev domain.Event) (domain.Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Join(ctx context.Context, eventID uuid.UUID, userID string) error
	Leave(ctx context.Context, eventID uuid.UUID, userID string) error
}

type GeneratorManager interface {
	Create(ctx context.Context, g domain.Generator) (domain.Generator, error)
	Update(ctx context.Context, g domain.Generator) (domain.Generator, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PoolManager interface {
	Create(ctx context.Context, p domain.Pool) (domain.Pool, error)
	Update(ctx context.Context, p domain.Pool) (domain.Pool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TaskLister exposes the live task table for the /tasks endpoint.
type TaskLister interface {
	Snapshot() []scheduler.TaskInfo
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	store      Store
	events     EventManager
	generators GeneratorManager
	pools      PoolManager
	tasks      TaskLister    // optional
	db         HealthChecker // optional
}

func NewHandler(store Store, events EventManager, generators GeneratorManager, pools PoolManager) *Handler {
	return &Handler{store: store, events: events, generators: generators, pools: pools}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithTaskLister enables the /tasks snapshot endpoint.
func (h *Handler) WithTaskLister(tasks TaskLister) *Handler {
	h.tasks = tasks
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch parts[0] {
	case "health":
		if len(parts) == 1 && r.Method == http.MethodGet {
			h.health(w, r)
			return
		}
	case "events":
		h.routeEvents(w, r, parts)
		return
	case "generators":
		h.routeGenerators(w, r, parts)
		return
	case "pools":
		h.routePools(w, r, parts)
		return
	case "categories":
		h.routeCategories(w, r, parts)
		return
	case "tasks":
		if len(parts) == 1 && r.Method == http.MethodGet && h.tasks != nil {
			writeJSON(w, http.StatusOK, map[string]any{"tasks": h.tasks.Snapshot()})
			return
		}
	}
	writeError(w, http.StatusNotFound, "not found")
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func (h *Handler) routeEvents(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPost:
		h.createEvent(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.listEvents(w, r)
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.getEvent(w, r, parts[1])
	case len(parts) == 2 && r.Method == http.MethodPut:
		h.updateEvent(w, r, parts[1])
	case len(parts) == 2 && r.Method == http.MethodDelete:
		h.deleteEvent(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "join" && r.Method == http.MethodPost:
		h.joinEvent(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "leave" && r.Method == http.MethodPost:
		h.leaveEvent(w, r, parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) routeGenerators(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPost:
		h.createGenerator(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.listGenerators(w, r)
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.getGenerator(w, r, parts[1])
	case len(parts) == 2 && r.Method == http.MethodPut:
		h.updateGenerator(w, r, parts[1])
	case len(parts) == 2 && r.Method == http.MethodDelete:
		h.deleteGenerator(w, r, parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) routePools(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPost:
		h.createPool(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.listPools(w, r)
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.getPool(w, r, parts[1])
	case len(parts) == 2 && r.Method == http.MethodPut:
		h.updatePool(w, r, parts[1])
	case len(parts) == 2 && r.Method == http.MethodDelete:
		h.deletePool(w, r, parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) routeCategories(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == http.MethodPost:
		h.createCategory(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.listCategories(w, r)
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.getCategory(w, r, parts[1])
	case len(parts) == 2 && r.Method == http.MethodPut:
		h.updateCategory(w, r, parts[1])
	case len(parts) == 2 && r.Method == http.MethodDelete:
		h.deleteCategory(w, r, parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ev, err := req.toEvent()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateEvent(ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.events.Create(r.Context(), ev)
	if err != nil {
		log.Printf("api: create event error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, newEventResponse(created))
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.store.ListEvents(r.Context(), limit, offset)
	if err != nil {
		log.Printf("api: list events error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	resp := ListEventsResponse{Events: make([]EventResponse, len(events))}
	for i, ev := range events {
		resp.Events[i] = newEventResponse(ev)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, "event")
	if !ok {
		return
	}

	ev, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "event", "get event")
		return
	}
	writeJSON(w, http.StatusOK, newEventResponse(ev))
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, "event")
	if !ok {
		return
	}

	var req EventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ev, err := req.toEvent()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateEvent(ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev.ID = id

	updated, err := h.events.Update(r.Context(), ev)
	if err != nil {
		respondStoreError(w, err, "event", "update event")
		return
	}
	writeJSON(w, http.StatusOK, newEventResponse(updated))
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, "event")
	if !ok {
		return
	}

	if err := h.events.Delete(r.Context(), id); err != nil {
		respondStoreError(w, err, "event", "delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) joinEvent(w http.ResponseWriter, r *http.Request, rawID string) {
	h.participate(w, r, rawID, h.events.Join)
}

func (h *Handler) leaveEvent(w http.ResponseWriter, r *http.Request, rawID string) {
	h.participate(w, r, rawID, h.events.Leave)
}

func (h *Handler) participate(
	w http.ResponseWriter,
	r *http.Request,
	rawID string,
	op func(ctx context.Context, eventID uuid.UUID, userID string) error,
) {
	id, ok := parseID(w, rawID, "event")
	if !ok {
		return
	}

	var req ParticipationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := op(r.Context(), id, req.UserID); err != nil {
		respondStoreError(w, err, "event", "participation change")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createGenerator(w http.ResponseWriter, r *http.Request) {
	var req GeneratorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	g, err := req.toGenerator()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateGenerator(g); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.generators.Create(r.Context(), g)
	if err != nil {
		log.Printf("api: create generator error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create generator")
		return
	}
	writeJSON(w, http.StatusCreated, newGeneratorResponse(created))
}

func (h *Handler) listGenerators(w http.ResponseWriter, r *http.Request) {
	generators, err := h.store.ListGenerators(r.Context())
	if err != nil {
		log.Printf("api: list generators error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list generators")
		return
	}

	resp := ListGeneratorsResponse{Generators: make([]GeneratorResponse, len(generators))}
	for i, g := range generators {
		resp.Generators[i] = newGeneratorResponse(g)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getGenerator(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, "generator")
	if !ok {
		return
	}

	g, err := h.store.GetGenerator(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "generator", "get generator")
		return
	}
	writeJSON(w, http.StatusOK, newGeneratorResponse(g))
}

func (h *Handler) updateGenerator(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, "generator")
	if !ok {
		return
	}

	var req GeneratorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	g, err := req.toGenerator()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateGenerator(g); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g.ID = id

	updated, err := h.generators.Update(r.Context(), g)
	if err != nil {
		respondStoreError(w, err, "generator", "update generator")
		return
	}
	writeJSON(w, http.StatusOK, newGeneratorResponse(updated))
}

func (h *Handler) deleteGenerator(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, "generator")
	if !ok {
		return
	}

	if err := h.generators.Delete(r.Context(), id); err != nil {
		respondStoreError(w, err, "generator", "delete generator")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createPool(w http.ResponseWriter, r *http.Request) {
	var req PoolRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p := req.toPool()
	if err := validatePool(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.pools.Create(r.Context(), p)
	if err != nil {
		log.Printf("api: create pool error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create pool")
		return
	}
	writeJSON(w, http.StatusCreated, newPoolResponse(created))
}

func (h *Handler) listPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.store.ListPools(r.Context())
	if err != nil {
		log.Printf("api: list pools error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list pools")
		return
	}

	resp := ListPoolsResponse{Pools: make([]PoolResponse, len(pools))}
	for i, p := range pools {
		resp.Pools[i] = newPoolResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getPool(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, "pool")
	if !ok {
		return
	}

	p, err := h.store.GetPool(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "pool", "get pool")
		return
	}
	writeJSON(w, http.StatusOK, newPoolResponse(p))
}

func (h *Handler) updatePool(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, "pool")
	if !ok {
		return
	}

	var req PoolRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p := req.toPool()
	if err := validatePool(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p.ID = id

	updated, err := h.pools.Update(r.Context(), p)
	if err != nil {
		respondStoreError(w, err, "pool", "update pool")
		return
	}
	writeJSON(w, http.StatusOK, newPoolResponse(updated))
}

func (h *Handler) deletePool(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, "pool")
	if !ok {
		return
	}

	if err := h.pools.Delete(r.Context(), id); err != nil {
		respondStoreError(w, err, "pool", "delete pool")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c := req.toCategory()
	if err := validateCategory(c); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	c.ID = uuid.New()
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := h.store.InsertCategory(r.Context(), c); err != nil {
		log.Printf("api: create category error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create category")
		return
	}
	writeJSON(w, http.StatusCreated, newCategoryResponse(c))
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		log.Printf("api: list categories error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	resp := ListCategoriesResponse{Categories: make([]CategoryResponse, len(categories))}
	for i, c := range categories {
		resp.Categories[i] = newCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, "category")
	if !ok {
		return
	}

	c, err := h.store.GetCategory(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "category", "get category")
		return
	}
	writeJSON(w, http.StatusOK, newCategoryResponse(c))
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, "category")
	if !ok {
		return
	}

	var req CategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c := req.toCategory()
	if err := validateCategory(c); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	current, err := h.store.GetCategory(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "category", "update category")
		return
	}

	c.ID = id
	c.CreatedAt = current.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	if err := h.store.UpdateCategory(r.Context(), c); err != nil {
		respondStoreError(w, err, "category", "update category")
		return
	}
	writeJSON(w, http.StatusOK, newCategoryResponse(c))
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, "category")
	if !ok {
		return
	}

	if err := h.store.DeleteCategory(r.Context(), id); err != nil {
		respondStoreError(w, err, "category", "delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody decodes a JSON request body into dst, writing the error
// response itself. Returns false when the request was rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, raw, kind string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+kind+" id")
		return uuid.Nil, false
	}
	return id, true
}

// respondStoreError maps domain.ErrNotFound to 404 and everything else
// to a logged 500.
func respondStoreError(w http.ResponseWriter, err error, kind, op string) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, kind+" not found")
		return
	}
	log.Printf("api: %s error: %v", op, err)
	writeError(w, http.StatusInternalServerError, "failed to "+op)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if
// not specified.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
