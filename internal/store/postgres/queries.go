package postgres

const queryGetEvent = `
SELECT
    id, name, category_id, generator_id,
    start_at, finish_at, payload, is_active,
    start_task_id, finish_task_id,
    created_at, updated_at
FROM events
WHERE id = $1
`

const queryInsertEvent = `
INSERT INTO events (id, name, category_id, generator_id, start_at, finish_at, payload, is_active, start_task_id, finish_task_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

const queryUpdateEvent = `
UPDATE events
SET name = $2, category_id = $3, generator_id = $4,
    start_at = $5, finish_at = $6, payload = $7, is_active = $8,
    updated_at = $9
WHERE id = $1
`

const queryDeleteEvent = `
WITH deleted_participations AS (
    DELETE FROM event_participations WHERE event_id = $1
)
DELETE FROM events WHERE id = $1
RETURNING id`

const querySetEventTaskIDs = `
UPDATE events
SET start_task_id = $2, finish_task_id = $3
WHERE id = $1
`

const queryListUpcomingEvents = `
SELECT
    id, name, category_id, generator_id,
    start_at, finish_at, payload, is_active,
    start_task_id, finish_task_id,
    created_at, updated_at
FROM events
WHERE finish_at > $1
ORDER BY start_at
`

const queryListEvents = `
SELECT
    id, name, category_id, generator_id,
    start_at, finish_at, payload, is_active,
    start_task_id, finish_task_id,
    created_at, updated_at
FROM events
ORDER BY start_at DESC
LIMIT $1 OFFSET $2
`

const queryGetParticipation = `
SELECT id, user_id, event_id, status, payload, created_at, updated_at
FROM event_participations
WHERE event_id = $1 AND user_id = $2
`

const queryInsertParticipation = `
INSERT INTO event_participations (id, user_id, event_id, status, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const queryUpdateParticipation = `
UPDATE event_participations
SET status = $2, payload = $3, updated_at = $4
WHERE id = $1
`

const queryListJoinedParticipations = `
SELECT id, user_id, event_id, status, payload, created_at, updated_at
FROM event_participations
WHERE event_id = $1 AND status = 'joined'
ORDER BY created_at
`

const queryGetGenerator = `
SELECT
    id, name, pool_id, is_active, enabled,
    last_run_at, total_run_count, plan,
    category_id, start_at, finish_at, payload,
    task_id, created_at, updated_at
FROM event_generators
WHERE id = $1
`

const queryInsertGenerator = `
INSERT INTO event_generators (id, name, pool_id, is_active, enabled, last_run_at, total_run_count, plan, category_id, start_at, finish_at, payload, task_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

const queryUpdateGenerator = `
UPDATE event_generators
SET name = $2, pool_id = $3, is_active = $4, enabled = $5,
    last_run_at = $6, total_run_count = $7, plan = $8,
    category_id = $9, start_at = $10, finish_at = $11, payload = $12,
    updated_at = $13
WHERE id = $1
`

const queryDeleteGenerator = `
DELETE FROM event_generators WHERE id = $1
RETURNING id`

const querySetGeneratorTaskID = `
UPDATE event_generators
SET task_id = $2
WHERE id = $1
`

const queryListGenerators = `
SELECT
    id, name, pool_id, is_active, enabled,
    last_run_at, total_run_count, plan,
    category_id, start_at, finish_at, payload,
    task_id, created_at, updated_at
FROM event_generators
ORDER BY created_at
`

const queryListPoolGenerators = `
SELECT
    id, name, pool_id, is_active, enabled,
    last_run_at, total_run_count, plan,
    category_id, start_at, finish_at, payload,
    task_id, created_at, updated_at
FROM event_generators
WHERE pool_id = $1 AND ($2 = false OR enabled = true)
ORDER BY created_at
`

const queryGetPool = `
SELECT
    id, name, description, is_active, run_scheme,
    last_run_at, total_run_count, plan,
    task_id, created_at, updated_at
FROM generator_pools
WHERE id = $1
`

const queryInsertPool = `
INSERT INTO generator_pools (id, name, description, is_active, run_scheme, last_run_at, total_run_count, plan, task_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

const queryUpdatePool = `
UPDATE generator_pools
SET name = $2, description = $3, is_active = $4, run_scheme = $5,
    last_run_at = $6, total_run_count = $7, plan = $8,
    updated_at = $9
WHERE id = $1
`

const queryDeletePool = `
WITH detached AS (
    UPDATE event_generators SET pool_id = NULL WHERE pool_id = $1
)
DELETE FROM generator_pools WHERE id = $1
RETURNING id`

const querySetPoolTaskID = `
UPDATE generator_pools
SET task_id = $2
WHERE id = $1
`

const queryListPools = `
SELECT
    id, name, description, is_active, run_scheme,
    last_run_at, total_run_count, plan,
    task_id, created_at, updated_at
FROM generator_pools
ORDER BY created_at
`

const queryGetCategory = `
SELECT id, name, description, payload, created_at, updated_at
FROM event_categories
WHERE id = $1
`

const queryInsertCategory = `
INSERT INTO event_categories (id, name, description, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

const queryUpdateCategory = `
UPDATE event_categories
SET name = $2, description = $3, payload = $4, updated_at = $5
WHERE id = $1
`

const queryDeleteCategory = `
DELETE FROM event_categories WHERE id = $1
RETURNING id`

const queryListCategories = `
SELECT id, name, description, payload, created_at, updated_at
FROM event_categories
ORDER BY name
`
