package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/eventcron/internal/domain"
	"github.com/djlord-it/eventcron/internal/scheduler"
)

// mockAPIStore implements Store for handler tests.
type mockAPIStore struct {
	mu sync.Mutex

	getEventFn   func(ctx context.Context, id uuid.UUID) (domain.Event, error)
	listEventsFn func(ctx context.Context, limit, offset int) ([]domain.Event, error)

	getGeneratorFn   func(ctx context.Context, id uuid.UUID) (domain.Generator, error)
	listGeneratorsFn func(ctx context.Context) ([]domain.Generator, error)

	getPoolFn   func(ctx context.Context, id uuid.UUID) (domain.Pool, error)
	listPoolsFn func(ctx context.Context) ([]domain.Pool, error)

	getCategoryFn    func(ctx context.Context, id uuid.UUID) (domain.Category, error)
	insertCategoryFn func(ctx context.Context, c domain.Category) error
	updateCategoryFn func(ctx context.Context, c domain.Category) error
	deleteCategoryFn func(ctx context.Context, id uuid.UUID) error
	listCategoriesFn func(ctx context.Context) ([]domain.Category, error)
}

func (s *mockAPIStore) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getEventFn != nil {
		return s.getEventFn(ctx, id)
	}
	return domain.Event{}, domain.ErrNotFound
}

func (s *mockAPIStore) ListEvents(ctx context.Context, limit, offset int) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listEventsFn != nil {
		return s.listEventsFn(ctx, limit, offset)
	}
	return nil, nil
}

func (s *mockAPIStore) GetGenerator(ctx context.Context, id uuid.UUID) (domain.Generator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getGeneratorFn != nil {
		return s.getGeneratorFn(ctx, id)
	}
	return domain.Generator{}, domain.ErrNotFound
}

func (s *mockAPIStore) ListGenerators(ctx context.Context) ([]domain.Generator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listGeneratorsFn != nil {
		return s.listGeneratorsFn(ctx)
	}
	return nil, nil
}

func (s *mockAPIStore) GetPool(ctx context.Context, id uuid.UUID) (domain.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getPoolFn != nil {
		return s.getPoolFn(ctx, id)
	}
	return domain.Pool{}, domain.ErrNotFound
}

func (s *mockAPIStore) ListPools(ctx context.Context) ([]domain.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listPoolsFn != nil {
		return s.listPoolsFn(ctx)
	}
	return nil, nil
}

func (s *mockAPIStore) GetCategory(ctx context.Context, id uuid.UUID) (domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getCategoryFn != nil {
		return s.getCategoryFn(ctx, id)
	}
	return domain.Category{}, domain.ErrNotFound
}

func (s *mockAPIStore) InsertCategory(ctx context.Context, c domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertCategoryFn != nil {
		return s.insertCategoryFn(ctx, c)
	}
	return nil
}

func (s *mockAPIStore) UpdateCategory(ctx context.Context, c domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateCategoryFn != nil {
		return s.updateCategoryFn(ctx, c)
	}
	return nil
}

func (s *mockAPIStore) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteCategoryFn != nil {
		return s.deleteCategoryFn(ctx, id)
	}
	return nil
}

func (s *mockAPIStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listCategoriesFn != nil {
		return s.listCategoriesFn(ctx)
	}
	return nil, nil
}

// mockEventManager implements EventManager for handler tests.
type mockEventManager struct {
	createFn func(ctx context.Context, ev domain.Event) (domain.Event, error)
	updateFn func(ctx context.Context, ev domain.Event) (domain.Event, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
	joinFn   func(ctx context.Context, eventID uuid.UUID, userID string) error
	leaveFn  func(ctx context.Context, eventID uuid.UUID, userID string) error
}

func (m *mockEventManager) Create(ctx context.Context, ev domain.Event) (domain.Event, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ev)
	}
	ev.ID = uuid.New()
	return ev, nil
}

func (m *mockEventManager) Update(ctx context.Context, ev domain.Event) (domain.Event, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, ev)
	}
	return ev, nil
}

func (m *mockEventManager) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockEventManager) Join(ctx context.Context, eventID uuid.UUID, userID string) error {
	if m.joinFn != nil {
		return m.joinFn(ctx, eventID, userID)
	}
	return nil
}

func (m *mockEventManager) Leave(ctx context.Context, eventID uuid.UUID, userID string) error {
	if m.leaveFn != nil {
		return m.leaveFn(ctx, eventID, userID)
	}
	return nil
}

type mockGeneratorManager struct {
	createFn func(ctx context.Context, g domain.Generator) (domain.Generator, error)
	updateFn func(ctx context.Context, g domain.Generator) (domain.Generator, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
}

func (m *mockGeneratorManager) Create(ctx context.Context, g domain.Generator) (domain.Generator, error) {
	if m.createFn != nil {
		return m.createFn(ctx, g)
	}
	g.ID = uuid.New()
	return g, nil
}

func (m *mockGeneratorManager) Update(ctx context.Context, g domain.Generator) (domain.Generator, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, g)
	}
	return g, nil
}

func (m *mockGeneratorManager) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockPoolManager struct {
	createFn func(ctx context.Context, p domain.Pool) (domain.Pool, error)
	updateFn func(ctx context.Context, p domain.Pool) (domain.Pool, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
}

func (m *mockPoolManager) Create(ctx context.Context, p domain.Pool) (domain.Pool, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	p.ID = uuid.New()
	return p, nil
}

func (m *mockPoolManager) Update(ctx context.Context, p domain.Pool) (domain.Pool, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, p)
	}
	return p, nil
}

func (m *mockPoolManager) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockHealthChecker implements HealthChecker for handler tests.
type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

type mockTaskLister struct {
	tasks []scheduler.TaskInfo
}

func (m *mockTaskLister) Snapshot() []scheduler.TaskInfo {
	return m.tasks
}

type testEnv struct {
	store      *mockAPIStore
	events     *mockEventManager
	generators *mockGeneratorManager
	pools      *mockPoolManager
	handler    *Handler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:      &mockAPIStore{},
		events:     &mockEventManager{},
		generators: &mockGeneratorManager{},
		pools:      &mockPoolManager{},
	}
	env.handler = NewHandler(env.store, env.events, env.generators, env.pools)
	return env
}

func doRequest(h *Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// --- Health ---

func TestHandler_Health(t *testing.T) {
	env := newTestEnv()

	w := doRequest(env.handler, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

func TestHandler_Health_VerboseHealthy(t *testing.T) {
	env := newTestEnv()
	env.handler.WithHealthChecker(&mockHealthChecker{})

	w := doRequest(env.handler, http.MethodGet, "/health?verbose=true", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Components["database"] != "healthy" {
		t.Errorf("database component = %q, want healthy", resp.Components["database"])
	}
}

func TestHandler_Health_VerboseDegraded(t *testing.T) {
	env := newTestEnv()
	env.handler.WithHealthChecker(&mockHealthChecker{
		pingFn: func(ctx context.Context) error { return errors.New("connection refused") },
	})

	w := doRequest(env.handler, http.MethodGet, "/health?verbose=true", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
}

// --- Events ---

func TestHandler_CreateEvent_Success(t *testing.T) {
	env := newTestEnv()

	body := `{
		"name": "spring-sale",
		"category_id": "7f8a1f40-6a9c-4a01-9176-5fba311bb71e",
		"start_at": "2026-04-01T10:00:00Z",
		"finish_at": "2026-04-01T12:00:00Z",
		"payload": {"tier": "gold"}
	}`

	w := doRequest(env.handler, http.MethodPost, "/events", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp EventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Name != "spring-sale" {
		t.Errorf("Name = %q, want spring-sale", resp.Name)
	}
	if !resp.IsActive {
		t.Error("IsActive should default to true")
	}
	if resp.ID == "" {
		t.Error("ID should not be empty")
	}
	if resp.StartAt != "2026-04-01T10:00:00Z" {
		t.Errorf("StartAt = %q", resp.StartAt)
	}
}

func TestHandler_CreateEvent_MissingName(t *testing.T) {
	env := newTestEnv()

	body := `{
		"category_id": "7f8a1f40-6a9c-4a01-9176-5fba311bb71e",
		"start_at": "2026-04-01T10:00:00Z",
		"finish_at": "2026-04-01T12:00:00Z"
	}`

	w := doRequest(env.handler, http.MethodPost, "/events", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp.Error, "name") {
		t.Errorf("error should mention name: %q", resp.Error)
	}
}

func TestHandler_CreateEvent_FinishBeforeStart(t *testing.T) {
	env := newTestEnv()

	body := `{
		"name": "backwards",
		"category_id": "7f8a1f40-6a9c-4a01-9176-5fba311bb71e",
		"start_at": "2026-04-01T12:00:00Z",
		"finish_at": "2026-04-01T10:00:00Z"
	}`

	w := doRequest(env.handler, http.MethodPost, "/events", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_CreateEvent_InvalidJSON(t *testing.T) {
	env := newTestEnv()

	w := doRequest(env.handler, http.MethodPost, "/events", "{invalid")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_CreateEvent_BodyTooLarge(t *testing.T) {
	env := newTestEnv()

	body := `{"name": "` + strings.Repeat("x", maxRequestBodySize+1) + `"}`
	w := doRequest(env.handler, http.MethodPost, "/events", body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

func TestHandler_ListEvents(t *testing.T) {
	env := newTestEnv()

	var gotLimit, gotOffset int
	env.store.listEventsFn = func(ctx context.Context, limit, offset int) ([]domain.Event, error) {
		gotLimit, gotOffset = limit, offset
		return []domain.Event{
			{ID: uuid.New(), Name: "a", CategoryID: uuid.New()},
			{ID: uuid.New(), Name: "b", CategoryID: uuid.New()},
		}, nil
	}

	w := doRequest(env.handler, http.MethodGet, "/events?limit=5&offset=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotLimit != 5 || gotOffset != 10 {
		t.Errorf("pagination = (%d, %d), want (5, 10)", gotLimit, gotOffset)
	}

	var resp ListEventsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(resp.Events))
	}
}

func TestHandler_GetEvent_NotFound(t *testing.T) {
	env := newTestEnv()

	w := doRequest(env.handler, http.MethodGet, "/events/"+uuid.NewString(), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandler_GetEvent_InvalidID(t *testing.T) {
	env := newTestEnv()

	w := doRequest(env.handler, http.MethodGet, "/events/not-a-uuid", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_UpdateEvent_Success(t *testing.T) {
	env := newTestEnv()

	id := uuid.New()
	var gotID uuid.UUID
	env.events.updateFn = func(ctx context.Context, ev domain.Event) (domain.Event, error) {
		gotID = ev.ID
		return ev, nil
	}

	body := `{
		"name": "renamed",
		"category_id": "7f8a1f40-6a9c-4a01-9176-5fba311bb71e",
		"start_at": "2026-04-02T10:00:00Z",
		"finish_at": "2026-04-02T12:00:00Z"
	}`

	w := doRequest(env.handler, http.MethodPut, "/events/"+id.String(), body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotID != id {
		t.Errorf("manager got id %s, want %s", gotID, id)
	}
}

func TestHandler_UpdateEvent_NotFound(t *testing.T) {
	env := newTestEnv()
	env.events.updateFn = func(ctx context.Context, ev domain.Event) (domain.Event, error) {
		return domain.Event{}, domain.ErrNotFound
	}

	body := `{
		"name": "ghost",
		"category_id": "7f8a1f40-6a9c-4a01-9176-5fba311bb71e",
		"start_at": "2026-04-02T10:00:00Z",
		"finish_at": "2026-04-02T12:00:00Z"
	}`

	w := doRequest(env.handler, http.MethodPut, "/events/"+uuid.NewString(), body)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandler_DeleteEvent(t *testing.T) {
	env := newTestEnv()

	w := doRequest(env.handler, http.MethodDelete, "/events/"+uuid.NewString(), "")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
}

func TestHandler_DeleteEvent_NotFound(t *testing.T) {
	env := newTestEnv()
	env.events.deleteFn = func(ctx context.Context, id uuid.UUID) error {
		return domain.ErrNotFound
	}

	w := doRequest(env.handler, http.MethodDelete, "/events/"+uuid.NewString(), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// --- Participation ---

func TestHandler_JoinEvent(t *testing.T) {
	env := newTestEnv()

	id := uuid.New()
	var gotEventID uuid.UUID
	var gotUserID string
	env.events.joinFn = func(ctx context.Context, eventID uuid.UUID, userID string) error {
		gotEventID, gotUserID = eventID, userID
		return nil
	}

	w := doRequest(env.handler, http.MethodPost, "/events/"+id.String()+"/join", `{"user_id": "u-42"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if gotEventID != id || gotUserID != "u-42" {
		t.Errorf("join called with (%s, %q)", gotEventID, gotUserID)
	}
}

func TestHandler_JoinEvent_MissingUserID(t *testing.T) {
	env := newTestEnv()

	w := doRequest(env.handler, http.MethodPost, "/events/"+uuid.NewString()+"/join", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_LeaveEvent_NotFound(t *testing.T) {
	env := newTestEnv()
	env.events.leaveFn = func(ctx context.Context, eventID uuid.UUID, userID string) error {
		return domain.ErrNotFound
	}

	w := doRequest(env.handler, http.MethodPost, "/events/"+uuid.NewString()+"/leave", `{"user_id": "u-42"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// --- Generators ---

func TestHandler_CreateGenerator_Success(t *testing.T) {
	env := newTestEnv()

	body := `{
		"name": "nightly",
		"plan": "0 3 * * *",
		"category_id": "7f8a1f40-6a9c-4a01-9176-5fba311bb71e",
		"start_at": "2026-04-01T10:00:00Z",
		"finish_at": "2026-04-01T12:00:00Z"
	}`

	w := doRequest(env.handler, http.MethodPost, "/generators", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp GeneratorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Plan != "0 3 * * *" {
		t.Errorf("Plan = %q", resp.Plan)
	}
	if !resp.Enabled {
		t.Error("Enabled should default to true")
	}
}

func TestHandler_CreateGenerator_InvalidPlan(t *testing.T) {
	env := newTestEnv()

	body := `{
		"name": "broken",
		"plan": "not a crontab",
		"category_id": "7f8a1f40-6a9c-4a01-9176-5fba311bb71e",
		"start_at": "2026-04-01T10:00:00Z",
		"finish_at": "2026-04-01T12:00:00Z"
	}`

	w := doRequest(env.handler, http.MethodPost, "/generators", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp.Error, "plan") {
		t.Errorf("error should mention plan: %q", resp.Error)
	}
}

func TestHandler_GetGenerator(t *testing.T) {
	env := newTestEnv()

	id := uuid.New()
	lastRun := time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)
	env.store.getGeneratorFn = func(ctx context.Context, gid uuid.UUID) (domain.Generator, error) {
		if gid != id {
			return domain.Generator{}, domain.ErrNotFound
		}
		return domain.Generator{
			ID: id, Name: "nightly", Plan: "0 3 * * *",
			Enabled: true, IsActive: true,
			LastRunAt: &lastRun, TotalRunCount: 7,
			CategoryID: uuid.New(),
		}, nil
	}

	w := doRequest(env.handler, http.MethodGet, "/generators/"+id.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp GeneratorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.TotalRunCount != 7 {
		t.Errorf("TotalRunCount = %d, want 7", resp.TotalRunCount)
	}
	if resp.LastRunAt != "2026-04-01T03:00:00Z" {
		t.Errorf("LastRunAt = %q", resp.LastRunAt)
	}
}

func TestHandler_DeleteGenerator(t *testing.T) {
	env := newTestEnv()

	w := doRequest(env.handler, http.MethodDelete, "/generators/"+uuid.NewString(), "")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
}

// --- Pools ---

func TestHandler_CreatePool_Success(t *testing.T) {
	env := newTestEnv()

	body := `{"name": "rotation", "run_scheme": "any", "plan": "*/15 * * * *"}`

	w := doRequest(env.handler, http.MethodPost, "/pools", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp PoolResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.RunScheme != "any" {
		t.Errorf("RunScheme = %q, want any", resp.RunScheme)
	}
	if !resp.IsActive {
		t.Error("IsActive should default to true")
	}
}

func TestHandler_CreatePool_InvalidRunScheme(t *testing.T) {
	env := newTestEnv()

	body := `{"name": "rotation", "run_scheme": "most", "plan": "*/15 * * * *"}`

	w := doRequest(env.handler, http.MethodPost, "/pools", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp.Error, "run_scheme") {
		t.Errorf("error should mention run_scheme: %q", resp.Error)
	}
}

func TestHandler_ListPools(t *testing.T) {
	env := newTestEnv()
	env.store.listPoolsFn = func(ctx context.Context) ([]domain.Pool, error) {
		return []domain.Pool{
			{ID: uuid.New(), Name: "a", RunScheme: domain.RunSchemeAll},
		}, nil
	}

	w := doRequest(env.handler, http.MethodGet, "/pools", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp ListPoolsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Pools) != 1 {
		t.Errorf("expected 1 pool, got %d", len(resp.Pools))
	}
}

// --- Categories ---

func TestHandler_CreateCategory(t *testing.T) {
	env := newTestEnv()

	var inserted domain.Category
	env.store.insertCategoryFn = func(ctx context.Context, c domain.Category) error {
		inserted = c
		return nil
	}

	w := doRequest(env.handler, http.MethodPost, "/categories", `{"name": "sales"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if inserted.Name != "sales" {
		t.Errorf("inserted Name = %q, want sales", inserted.Name)
	}
	if inserted.ID == uuid.Nil {
		t.Error("ID should be assigned")
	}
}

func TestHandler_UpdateCategory_PreservesCreatedAt(t *testing.T) {
	env := newTestEnv()

	id := uuid.New()
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	env.store.getCategoryFn = func(ctx context.Context, cid uuid.UUID) (domain.Category, error) {
		return domain.Category{ID: id, Name: "old", CreatedAt: createdAt}, nil
	}
	var updated domain.Category
	env.store.updateCategoryFn = func(ctx context.Context, c domain.Category) error {
		updated = c
		return nil
	}

	w := doRequest(env.handler, http.MethodPut, "/categories/"+id.String(), `{"name": "new"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !updated.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt = %v, want %v", updated.CreatedAt, createdAt)
	}
	if updated.Name != "new" {
		t.Errorf("Name = %q, want new", updated.Name)
	}
}

func TestHandler_DeleteCategory_NotFound(t *testing.T) {
	env := newTestEnv()
	env.store.deleteCategoryFn = func(ctx context.Context, id uuid.UUID) error {
		return domain.ErrNotFound
	}

	w := doRequest(env.handler, http.MethodDelete, "/categories/"+uuid.NewString(), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// --- Tasks ---

func TestHandler_Tasks(t *testing.T) {
	env := newTestEnv()
	env.handler.WithTaskLister(&mockTaskLister{
		tasks: []scheduler.TaskInfo{
			{ID: uuid.New(), Kind: domain.TaskKindOneShot, Handler: "event.start"},
		},
	})

	w := doRequest(env.handler, http.MethodGet, "/tasks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "event.start") {
		t.Errorf("response should contain the task handler: %s", w.Body.String())
	}
}

func TestHandler_Tasks_NoLister(t *testing.T) {
	env := newTestEnv()

	w := doRequest(env.handler, http.MethodGet, "/tasks", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// --- Routing ---

func TestHandler_UnknownRoute(t *testing.T) {
	env := newTestEnv()

	w := doRequest(env.handler, http.MethodGet, "/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	env := newTestEnv()

	w := doRequest(env.handler, http.MethodPatch, "/events", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
