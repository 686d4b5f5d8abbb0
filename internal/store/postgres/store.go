// Package postgres persists events, generators, pools, categories and
// participations. All not-found lookups are reported as
// domain.ErrNotFound so callers never see sql.ErrNoRows.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/eventcron/internal/api"
	"github.com/djlord-it/eventcron/internal/domain"
	"github.com/djlord-it/eventcron/internal/generator"
	"github.com/djlord-it/eventcron/internal/lifecycle"
)

// Store implements lifecycle.Store and generator.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL store with the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Events

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	row := s.db.QueryRowContext(ctx, queryGetEvent, id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return domain.Event{}, domain.ErrNotFound
	}
	return ev, err
}

func (s *Store) InsertEvent(ctx context.Context, ev domain.Event) error {
	payload, err := marshalPayload(ev.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, queryInsertEvent,
		ev.ID,
		ev.Name,
		ev.CategoryID,
		nullUUID(ev.GeneratorID),
		ev.StartAt,
		ev.FinishAt,
		payload,
		ev.IsActive,
		nullUUID(ev.StartTaskID),
		nullUUID(ev.FinishTaskID),
		ev.CreatedAt,
		ev.UpdatedAt,
	)
	return err
}

func (s *Store) UpdateEvent(ctx context.Context, ev domain.Event) error {
	payload, err := marshalPayload(ev.Payload)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, queryUpdateEvent,
		ev.ID,
		ev.Name,
		ev.CategoryID,
		nullUUID(ev.GeneratorID),
		ev.StartAt,
		ev.FinishAt,
		payload,
		ev.IsActive,
		ev.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	var deletedID uuid.UUID
	err := s.db.QueryRowContext(ctx, queryDeleteEvent, id).Scan(&deletedID)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	return err
}

func (s *Store) SetEventTaskIDs(ctx context.Context, id uuid.UUID, start, finish *uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, querySetEventTaskIDs, id, nullUUID(start), nullUUID(finish))
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *Store) ListUpcomingEvents(ctx context.Context, after time.Time) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, queryListUpcomingEvents, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *Store) ListEvents(ctx context.Context, limit, offset int) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, queryListEvents, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// Participations

func (s *Store) GetParticipation(ctx context.Context, eventID uuid.UUID, userID string) (domain.Participation, error) {
	var p domain.Participation
	var status string
	var payload []byte

	err := s.db.QueryRowContext(ctx, queryGetParticipation, eventID, userID).Scan(
		&p.ID,
		&p.UserID,
		&p.EventID,
		&status,
		&payload,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Participation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Participation{}, err
	}
	p.Status = domain.ParticipationStatus(status)
	if p.Payload, err = unmarshalPayload(payload); err != nil {
		return domain.Participation{}, err
	}
	return p, nil
}

func (s *Store) InsertParticipation(ctx context.Context, p domain.Participation) error {
	payload, err := marshalPayload(p.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, queryInsertParticipation,
		p.ID,
		p.UserID,
		p.EventID,
		string(p.Status),
		payload,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (s *Store) UpdateParticipation(ctx context.Context, p domain.Participation) error {
	payload, err := marshalPayload(p.Payload)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, queryUpdateParticipation,
		p.ID,
		string(p.Status),
		payload,
		p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *Store) ListJoinedParticipations(ctx context.Context, eventID uuid.UUID) ([]domain.Participation, error) {
	rows, err := s.db.QueryContext(ctx, queryListJoinedParticipations, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Participation
	for rows.Next() {
		var p domain.Participation
		var status string
		var payload []byte

		err := rows.Scan(&p.ID, &p.UserID, &p.EventID, &status, &payload, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		p.Status = domain.ParticipationStatus(status)
		if p.Payload, err = unmarshalPayload(payload); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Generators

func (s *Store) GetGenerator(ctx context.Context, id uuid.UUID) (domain.Generator, error) {
	row := s.db.QueryRowContext(ctx, queryGetGenerator, id)
	g, err := scanGenerator(row)
	if err == sql.ErrNoRows {
		return domain.Generator{}, domain.ErrNotFound
	}
	return g, err
}

func (s *Store) InsertGenerator(ctx context.Context, g domain.Generator) error {
	payload, err := marshalPayload(g.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, queryInsertGenerator,
		g.ID,
		g.Name,
		nullUUID(g.PoolID),
		g.IsActive,
		g.Enabled,
		nullTime(g.LastRunAt),
		g.TotalRunCount,
		g.Plan,
		g.CategoryID,
		g.StartAt,
		g.FinishAt,
		payload,
		nullUUID(g.TaskID),
		g.CreatedAt,
		g.UpdatedAt,
	)
	return err
}

func (s *Store) UpdateGenerator(ctx context.Context, g domain.Generator) error {
	payload, err := marshalPayload(g.Payload)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, queryUpdateGenerator,
		g.ID,
		g.Name,
		nullUUID(g.PoolID),
		g.IsActive,
		g.Enabled,
		nullTime(g.LastRunAt),
		g.TotalRunCount,
		g.Plan,
		g.CategoryID,
		g.StartAt,
		g.FinishAt,
		payload,
		g.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *Store) DeleteGenerator(ctx context.Context, id uuid.UUID) error {
	var deletedID uuid.UUID
	err := s.db.QueryRowContext(ctx, queryDeleteGenerator, id).Scan(&deletedID)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	return err
}

func (s *Store) SetGeneratorTaskID(ctx context.Context, id uuid.UUID, taskID *uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, querySetGeneratorTaskID, id, nullUUID(taskID))
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *Store) ListGenerators(ctx context.Context) ([]domain.Generator, error) {
	rows, err := s.db.QueryContext(ctx, queryListGenerators)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGenerators(rows)
}

func (s *Store) ListPoolGenerators(ctx context.Context, poolID uuid.UUID, enabledOnly bool) ([]domain.Generator, error) {
	rows, err := s.db.QueryContext(ctx, queryListPoolGenerators, poolID, enabledOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGenerators(rows)
}

// Pools

func (s *Store) GetPool(ctx context.Context, id uuid.UUID) (domain.Pool, error) {
	row := s.db.QueryRowContext(ctx, queryGetPool, id)
	p, err := scanPool(row)
	if err == sql.ErrNoRows {
		return domain.Pool{}, domain.ErrNotFound
	}
	return p, err
}

func (s *Store) InsertPool(ctx context.Context, p domain.Pool) error {
	_, err := s.db.ExecContext(ctx, queryInsertPool,
		p.ID,
		p.Name,
		p.Description,
		p.IsActive,
		string(p.RunScheme),
		nullTime(p.LastRunAt),
		p.TotalRunCount,
		p.Plan,
		nullUUID(p.TaskID),
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (s *Store) UpdatePool(ctx context.Context, p domain.Pool) error {
	result, err := s.db.ExecContext(ctx, queryUpdatePool,
		p.ID,
		p.Name,
		p.Description,
		p.IsActive,
		string(p.RunScheme),
		nullTime(p.LastRunAt),
		p.TotalRunCount,
		p.Plan,
		p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *Store) DeletePool(ctx context.Context, id uuid.UUID) error {
	var deletedID uuid.UUID
	err := s.db.QueryRowContext(ctx, queryDeletePool, id).Scan(&deletedID)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	return err
}

func (s *Store) SetPoolTaskID(ctx context.Context, id uuid.UUID, taskID *uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, querySetPoolTaskID, id, nullUUID(taskID))
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *Store) ListPools(ctx context.Context) ([]domain.Pool, error) {
	rows, err := s.db.QueryContext(ctx, queryListPools)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Categories

func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (domain.Category, error) {
	var c domain.Category
	var payload []byte

	err := s.db.QueryRowContext(ctx, queryGetCategory, id).Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&payload,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Category{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Category{}, err
	}
	if c.Payload, err = unmarshalPayload(payload); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

func (s *Store) InsertCategory(ctx context.Context, c domain.Category) error {
	payload, err := marshalPayload(c.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, queryInsertCategory,
		c.ID,
		c.Name,
		c.Description,
		payload,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (s *Store) UpdateCategory(ctx context.Context, c domain.Category) error {
	payload, err := marshalPayload(c.Payload)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, queryUpdateCategory,
		c.ID,
		c.Name,
		c.Description,
		payload,
		c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *Store) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	var deletedID uuid.UUID
	err := s.db.QueryRowContext(ctx, queryDeleteCategory, id).Scan(&deletedID)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	return err
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, queryListCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Category
	for rows.Next() {
		var c domain.Category
		var payload []byte

		err := rows.Scan(&c.ID, &c.Name, &c.Description, &payload, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if c.Payload, err = unmarshalPayload(payload); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (domain.Event, error) {
	var ev domain.Event
	var generatorID, startTaskID, finishTaskID uuid.NullUUID
	var payload []byte

	err := row.Scan(
		&ev.ID,
		&ev.Name,
		&ev.CategoryID,
		&generatorID,
		&ev.StartAt,
		&ev.FinishAt,
		&payload,
		&ev.IsActive,
		&startTaskID,
		&finishTaskID,
		&ev.CreatedAt,
		&ev.UpdatedAt,
	)
	if err != nil {
		return domain.Event{}, err
	}
	ev.GeneratorID = fromNullUUID(generatorID)
	ev.StartTaskID = fromNullUUID(startTaskID)
	ev.FinishTaskID = fromNullUUID(finishTaskID)
	if ev.Payload, err = unmarshalPayload(payload); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

func collectEvents(rows *sql.Rows) ([]domain.Event, error) {
	var result []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

func scanGenerator(row scanner) (domain.Generator, error) {
	var g domain.Generator
	var poolID, taskID uuid.NullUUID
	var lastRunAt sql.NullTime
	var payload []byte

	err := row.Scan(
		&g.ID,
		&g.Name,
		&poolID,
		&g.IsActive,
		&g.Enabled,
		&lastRunAt,
		&g.TotalRunCount,
		&g.Plan,
		&g.CategoryID,
		&g.StartAt,
		&g.FinishAt,
		&payload,
		&taskID,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return domain.Generator{}, err
	}
	g.PoolID = fromNullUUID(poolID)
	g.TaskID = fromNullUUID(taskID)
	g.LastRunAt = fromNullTime(lastRunAt)
	if g.Payload, err = unmarshalPayload(payload); err != nil {
		return domain.Generator{}, err
	}
	return g, nil
}

func collectGenerators(rows *sql.Rows) ([]domain.Generator, error) {
	var result []domain.Generator
	for rows.Next() {
		g, err := scanGenerator(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func scanPool(row scanner) (domain.Pool, error) {
	var p domain.Pool
	var taskID uuid.NullUUID
	var lastRunAt sql.NullTime
	var runScheme string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.IsActive,
		&runScheme,
		&lastRunAt,
		&p.TotalRunCount,
		&p.Plan,
		&taskID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.Pool{}, err
	}
	p.RunScheme = domain.RunScheme(runScheme)
	p.TaskID = fromNullUUID(taskID)
	p.LastRunAt = fromNullTime(lastRunAt)
	return p, nil
}

// requireAffected maps a zero-row UPDATE to domain.ErrNotFound.
func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func marshalPayload(p map[string]any) ([]byte, error) {
	if p == nil {
		p = map[string]any{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return b, nil
}

func unmarshalPayload(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return map[string]any{}, nil
	}
	var p map[string]any
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return p, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func fromNullUUID(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func fromNullTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// Compile-time interface assertions
var (
	_ lifecycle.Store = (*Store)(nil)
	_ generator.Store = (*Store)(nil)
	_ api.Store       = (*Store)(nil)
)
