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

	"github.com/jackc/pgx/v5"
	"github.com/turisb2b/marketplace/internal/authz"
)

// PolicyRepository loads authorization tables from permission_levels and role_levels
type PolicyRepository struct {
	db *DB
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// Load reads both tables from one consistent snapshot and builds a Policy.
func (r *PolicyRepository) Load(ctx context.Context, opts ...authz.PolicyOption) (*authz.Policy, error) {
	tx, err := r.db.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin policy transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	permissions, err := readLevels(ctx, tx, `SELECT name, min_level FROM permission_levels`)
	if err != nil {
		return nil, fmt.Errorf("failed to load permission levels: %w", err)
	}
	roles, err := readLevels(ctx, tx, `SELECT name, min_level FROM role_levels`)
	if err != nil {
		return nil, fmt.Errorf("failed to load role levels: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit policy transaction: %w", err)
	}

	return authz.NewPolicy(permissions, roles, opts...)
}

// Save replaces both tables with the contents of p.
func (r *PolicyRepository) Save(ctx context.Context, p *authz.Policy) error {
	return pgx.BeginFunc(ctx, r.db.pool, func(tx pgx.Tx) error {
		if err := writeLevels(ctx, tx, "permission_levels", p.Permissions()); err != nil {
			return err
		}
		return writeLevels(ctx, tx, "role_levels", p.Roles())
	})
}

func readLevels(ctx context.Context, tx pgx.Tx, query string) (map[string]int, error) {
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := make(map[string]int)
	for rows.Next() {
		var name string
		var level int
		if err := rows.Scan(&name, &level); err != nil {
			return nil, err
		}
		levels[name] = level
	}
	return levels, rows.Err()
}

func writeLevels(ctx context.Context, tx pgx.Tx, table string, levels map[string]int) error {
	if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	batch := &pgx.Batch{}
	for name, level := range levels {
		batch.Queue("INSERT INTO "+table+" (name, min_level) VALUES ($1, $2)", name, level)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", table, err)
	}
	return nil
}
