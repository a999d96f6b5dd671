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
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/turisb2b/marketplace/internal/audit"
)

// Pagination bounds
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Service provides job listing business logic
type Service struct {
	repo        Repository
	auditLogger audit.Logger
	validate    *validator.Validate
	now         func() time.Time
}

// NewService creates a new job service
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		now:         time.Now,
	}
}

// Normalize applies pagination defaults and bounds.
func (q Query) Normalize() Query {
	q.Search = strings.TrimSpace(q.Search)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// List returns one page of jobs matching the query
func (s *Service) List(ctx context.Context, q Query) (*Page, error) {
	q = q.Normalize()

	items, total, err := s.repo.List(ctx, q.Search, q.PageSize, (q.Page-1)*q.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	if items == nil {
		items = []*Job{}
	}

	return &Page{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// Get retrieves a job by ID. IDs that are not UUIDs cannot exist and
// report ErrJobNotFound without reaching storage.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrJobNotFound
	}

	job, err := s.repo.GetByID(ctx, uid.String())
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// Create publishes a new job on behalf of actorID
func (s *Service) Create(ctx context.Context, actorID string, in Input) (*Job, error) {
	in = trim(in)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	now := s.now()
	job := &Job{
		ID:            uuid.Must(uuid.NewV7()).String(),
		CorporationID: in.CorporationID,
		Title:         in.Title,
		Description:   in.Description,
		Category:      in.Category,
		Location:      in.Location,
		PriceCents:    in.PriceCents,
		CreatedBy:     actorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.log(ctx, audit.TypeJobCreated, actorID, job)
	return job, nil
}

// Update replaces the mutable fields of an existing job
func (s *Service) Update(ctx context.Context, actorID, id string, in Input) (*Job, error) {
	in = trim(in)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	job.CorporationID = in.CorporationID
	job.Title = in.Title
	job.Description = in.Description
	job.Category = in.Category
	job.Location = in.Location
	job.PriceCents = in.PriceCents
	job.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, job); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	s.log(ctx, audit.TypeJobUpdated, actorID, job)
	return job, nil
}

// Delete removes a job
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, job.ID); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("failed to delete job: %w", err)
	}

	s.log(ctx, audit.TypeJobDeleted, actorID, job)
	return nil
}

func (s *Service) log(ctx context.Context, eventType, actorID string, job *Job) {
	corporationID := ""
	if job.CorporationID != nil {
		corporationID = *job.CorporationID
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:          eventType,
		CorporationID: corporationID,
		ActorID:       actorID,
		Resource:      "job:" + job.ID,
	})
}

func trim(in Input) Input {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Location = strings.TrimSpace(in.Location)
	return in
}
