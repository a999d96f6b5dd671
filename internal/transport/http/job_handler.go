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

package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/turisb2b/marketplace/internal/jobs"
	"github.com/turisb2b/marketplace/internal/observability/logger"
)

// JobResponse is the wire form of a job
type JobResponse struct {
	ID            string    `json:"id"`
	CorporationID *string   `json:"corporation_id,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Location      string    `json:"location"`
	PriceCents    int64     `json:"price_cents"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// JobListResponse is one page of jobs
type JobListResponse struct {
	Items    []JobResponse `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

func toJobResponse(j *jobs.Job) JobResponse {
	return JobResponse{
		ID:            j.ID,
		CorporationID: j.CorporationID,
		Title:         j.Title,
		Description:   j.Description,
		Category:      j.Category,
		Location:      j.Location,
		PriceCents:    j.PriceCents,
		CreatedBy:     j.CreatedBy,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

// ListJobs handles GET /jobs?q=&page=&page_size=
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	result, err := h.jobService.List(r.Context(), jobs.Query{
		Search:   q.Get("q"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.respondJobError(w, r, err)
		return
	}

	items := make([]JobResponse, 0, len(result.Items))
	for _, j := range result.Items {
		items = append(items, toJobResponse(j))
	}
	respondJSON(w, http.StatusOK, JobListResponse{
		Items:    items,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	})
}

// GetJob handles GET /jobs/{jobID}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobService.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondJobError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toJobResponse(job))
}

// CreateJob handles POST /jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var in jobs.Input
	if !h.decodeAndValidate(w, r, &in) {
		return
	}

	job, err := h.jobService.Create(r.Context(), GetUserID(r.Context()), in)
	if err != nil {
		h.respondJobError(w, r, err)
		return
	}

	attrs := []any{logger.JobID(job.ID), logger.UserID(job.CreatedBy)}
	if job.CorporationID != nil {
		attrs = append(attrs, logger.CorporationID(*job.CorporationID))
	}
	slog.InfoContext(r.Context(), "job published", attrs...)

	respondJSON(w, http.StatusCreated, toJobResponse(job))
}

// UpdateJob handles PUT /jobs/{jobID}
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	var in jobs.Input
	if !h.decodeAndValidate(w, r, &in) {
		return
	}

	job, err := h.jobService.Update(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "jobID"), in)
	if err != nil {
		h.respondJobError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toJobResponse(job))
}

// DeleteJob handles DELETE /jobs/{jobID}
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.jobService.Delete(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "jobID")); err != nil {
		h.respondJobError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondJobError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		respondError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, jobs.ErrInvalidJob):
		respondError(w, http.StatusBadRequest, "invalid job")
	default:
		slog.ErrorContext(r.Context(), "job operation failed",
			logger.Error(err),
			logger.JobID(chi.URLParam(r, "jobID")),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
