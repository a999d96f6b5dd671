// Copyright 2026 The turisb2b Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/turisb2b/marketplace/internal/jobs"
)

const jobColumns = `
	id, corporation_id, title, description, category, location,
	price_cents, created_by, created_at, updated_at`

// JobRepository implements jobs.Repository
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// List returns a page of jobs matching search, newest first
func (r *JobRepository) List(ctx context.Context, search string, limit, offset int) ([]*jobs.Job, int, error) {
	pattern := "%" + escapeLike(search) + "%"
	const where = `WHERE title ILIKE $1 OR description ILIKE $1`

	var total int
	if err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs `+where, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	rows, err := r.db.pool.Query(ctx, `SELECT `+jobColumns+`
		FROM jobs `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*jobs.Job, error) {
		return scanJobRow(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan jobs: %w", err)
	}

	return items, total, nil
}

// GetByID retrieves a job by ID
func (r *JobRepository) GetByID(ctx context.Context, id string) (*jobs.Job, error) {
	job, err := scanJobRow(r.db.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, jobs.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// Create stores a new job
func (r *JobRepository) Create(ctx context.Context, job *jobs.Job) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		job.ID, job.CorporationID, job.Title, job.Description, job.Category, job.Location,
		job.PriceCents, job.CreatedBy, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// Update replaces the mutable fields of a job
func (r *JobRepository) Update(ctx context.Context, job *jobs.Job) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE jobs SET
			corporation_id = $2,
			title = $3,
			description = $4,
			category = $5,
			location = $6,
			price_cents = $7,
			updated_at = $8
		WHERE id = $1
	`,
		job.ID, job.CorporationID, job.Title, job.Description, job.Category, job.Location,
		job.PriceCents, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return jobs.ErrJobNotFound
	}
	return nil
}

// Delete removes a job
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return jobs.ErrJobNotFound
	}
	return nil
}

func scanJobRow(row pgx.Row) (*jobs.Job, error) {
	var job jobs.Job
	err := row.Scan(
		&job.ID, &job.CorporationID, &job.Title, &job.Description, &job.Category, &job.Location,
		&job.PriceCents, &job.CreatedBy, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
