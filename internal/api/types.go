package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/eventcron/internal/domain"
)

type EventRequest struct {
	Name       string         `json:"name"`
	CategoryID string         `json:"category_id"`
	StartAt    string         `json:"start_at"`  // RFC3339
	FinishAt   string         `json:"finish_at"` // RFC3339
	Payload    map[string]any `json:"payload,omitempty"`
	IsActive   *bool          `json:"is_active,omitempty"` // default true
}

func (req EventRequest) toEvent() (domain.Event, error) {
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("invalid category_id: %w", err)
	}
	startAt, err := parseTime("start_at", req.StartAt)
	if err != nil {
		return domain.Event{}, err
	}
	finishAt, err := parseTime("finish_at", req.FinishAt)
	if err != nil {
		return domain.Event{}, err
	}
	return domain.Event{
		Name:       req.Name,
		CategoryID: categoryID,
		StartAt:    startAt,
		FinishAt:   finishAt,
		Payload:    req.Payload,
		IsActive:   boolOrTrue(req.IsActive),
	}, nil
}

type EventResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	CategoryID  string         `json:"category_id"`
	GeneratorID string         `json:"generator_id,omitempty"`
	StartAt     string         `json:"start_at"`
	FinishAt    string         `json:"finish_at"`
	Payload     map[string]any `json:"payload,omitempty"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

func newEventResponse(ev domain.Event) EventResponse {
	return EventResponse{
		ID:          ev.ID.String(),
		Name:        ev.Name,
		CategoryID:  ev.CategoryID.String(),
		GeneratorID: uuidPtrString(ev.GeneratorID),
		StartAt:     formatTime(ev.StartAt),
		FinishAt:    formatTime(ev.FinishAt),
		Payload:     ev.Payload,
		IsActive:    ev.IsActive,
		CreatedAt:   formatTime(ev.CreatedAt),
		UpdatedAt:   formatTime(ev.UpdatedAt),
	}
}

type GeneratorRequest struct {
	Name       string         `json:"name"`
	PoolID     string         `json:"pool_id,omitempty"`
	Enabled    *bool          `json:"enabled,omitempty"` // default true
	Plan       string         `json:"plan"`
	CategoryID string         `json:"category_id"`
	StartAt    string         `json:"start_at"`  // RFC3339, template for generated events
	FinishAt   string         `json:"finish_at"` // RFC3339
	Payload    map[string]any `json:"payload,omitempty"`
}

func (req GeneratorRequest) toGenerator() (domain.Generator, error) {
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return domain.Generator{}, fmt.Errorf("invalid category_id: %w", err)
	}
	startAt, err := parseTime("start_at", req.StartAt)
	if err != nil {
		return domain.Generator{}, err
	}
	finishAt, err := parseTime("finish_at", req.FinishAt)
	if err != nil {
		return domain.Generator{}, err
	}
	g := domain.Generator{
		Name:       req.Name,
		Enabled:    boolOrTrue(req.Enabled),
		Plan:       req.Plan,
		CategoryID: categoryID,
		StartAt:    startAt,
		FinishAt:   finishAt,
		Payload:    req.Payload,
	}
	if req.PoolID != "" {
		poolID, err := uuid.Parse(req.PoolID)
		if err != nil {
			return domain.Generator{}, fmt.Errorf("invalid pool_id: %w", err)
		}
		g.PoolID = &poolID
	}
	return g, nil
}

type GeneratorResponse struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	PoolID        string         `json:"pool_id,omitempty"`
	IsActive      bool           `json:"is_active"`
	Enabled       bool           `json:"enabled"`
	Plan          string         `json:"plan"`
	LastRunAt     string         `json:"last_run_at,omitempty"`
	TotalRunCount int            `json:"total_run_count"`
	CategoryID    string         `json:"category_id"`
	StartAt       string         `json:"start_at"`
	FinishAt      string         `json:"finish_at"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

func newGeneratorResponse(g domain.Generator) GeneratorResponse {
	return GeneratorResponse{
		ID:            g.ID.String(),
		Name:          g.Name,
		PoolID:        uuidPtrString(g.PoolID),
		IsActive:      g.IsActive,
		Enabled:       g.Enabled,
		Plan:          g.Plan,
		LastRunAt:     formatTimePtr(g.LastRunAt),
		TotalRunCount: g.TotalRunCount,
		CategoryID:    g.CategoryID.String(),
		StartAt:       formatTime(g.StartAt),
		FinishAt:      formatTime(g.FinishAt),
		Payload:       g.Payload,
		CreatedAt:     formatTime(g.CreatedAt),
		UpdatedAt:     formatTime(g.UpdatedAt),
	}
}

type PoolRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	RunScheme   string `json:"run_scheme"`
	Plan        string `json:"plan"`
	IsActive    *bool  `json:"is_active,omitempty"` // default true
}

func (req PoolRequest) toPool() domain.Pool {
	return domain.Pool{
		Name:        req.Name,
		Description: req.Description,
		RunScheme:   domain.RunScheme(req.RunScheme),
		Plan:        req.Plan,
		IsActive:    boolOrTrue(req.IsActive),
	}
}

type PoolResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	IsActive      bool   `json:"is_active"`
	RunScheme     string `json:"run_scheme"`
	Plan          string `json:"plan"`
	LastRunAt     string `json:"last_run_at,omitempty"`
	TotalRunCount int    `json:"total_run_count"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func newPoolResponse(p domain.Pool) PoolResponse {
	return PoolResponse{
		ID:            p.ID.String(),
		Name:          p.Name,
		Description:   p.Description,
		IsActive:      p.IsActive,
		RunScheme:     string(p.RunScheme),
		Plan:          p.Plan,
		LastRunAt:     formatTimePtr(p.LastRunAt),
		TotalRunCount: p.TotalRunCount,
		CreatedAt:     formatTime(p.CreatedAt),
		UpdatedAt:     formatTime(p.UpdatedAt),
	}
}

type CategoryRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

func (req CategoryRequest) toCategory() domain.Category {
	return domain.Category{
		Name:        req.Name,
		Description: req.Description,
		Payload:     req.Payload,
	}
}

type CategoryResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

func newCategoryResponse(c domain.Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		Payload:     c.Payload,
		CreatedAt:   formatTime(c.CreatedAt),
		UpdatedAt:   formatTime(c.UpdatedAt),
	}
}

type ParticipationRequest struct {
	UserID string `json:"user_id"`
}

type ListEventsResponse struct {
	Events []EventResponse `json:"events"`
}

type ListGeneratorsResponse struct {
	Generators []GeneratorResponse `json:"generators"`
}

type ListPoolsResponse struct {
	Pools []PoolResponse `json:"pools"`
}

type ListCategoriesResponse struct {
	Categories []CategoryResponse `json:"categories"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func uuidPtrString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func parseTime(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return t, nil
}

func boolOrTrue(b *bool) bool {
	return b == nil || *b
}
