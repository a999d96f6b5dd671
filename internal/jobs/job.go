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

package jobs

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrJobNotFound = errors.New("job not found")
	ErrInvalidJob  = errors.New("invalid job")
)

// Job is a service listing published on the marketplace
type Job struct {
	ID            string
	CorporationID *string
	Title         string
	Description   string
	Category      string
	Location      string
	PriceCents    int64
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Input carries the mutable fields of a job
type Input struct {
	CorporationID *string `json:"corporation_id,omitempty" validate:"omitempty,uuid"`
	Title         string  `json:"title" validate:"required,min=3,max=200"`
	Description   string  `json:"description" validate:"max=5000"`
	Category      string  `json:"category" validate:"max=100"`
	Location      string  `json:"location" validate:"max=200"`
	PriceCents    int64   `json:"price_cents" validate:"gte=0"`
}

// Query selects a page of jobs
type Query struct {
	Search   string
	Page     int
	PageSize int
}

// Page is one page of list results
type Page struct {
	Items    []*Job
	Total    int
	Page     int
	PageSize int
}

// Repository defines the interface for job persistence
type Repository interface {
	// List returns jobs whose title or description contains search (case-insensitive),
	// newest first, along with the total number of matches.
	List(ctx context.Context, search string, limit, offset int) ([]*Job, int, error)

	// GetByID retrieves a job by ID
	GetByID(ctx context.Context, id string) (*Job, error)

	// Create stores a new job
	Create(ctx context.Context, job *Job) error

	// Update replaces the mutable fields of a job
	Update(ctx context.Context, job *Job) error

	// Delete removes a job
	Delete(ctx context.Context, id string) error
}
