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

package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Decision results
const (
	ResultAllow           = "allow"
	ResultUnauthenticated = "unauthenticated"
	ResultForbidden       = "forbidden"
	ResultError           = "error"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance. When disabled, instruments are no-ops.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{meter: noop.NewMeterProvider().Meter(serviceName)}, nil
	}

	// Uses the global provider; exporters are configured by the process.
	return &Meter{meter: otel.Meter(serviceName)}, nil
}

// NewWithMeter wraps an existing meter (used by tests with an SDK reader).
func NewWithMeter(m metric.Meter) *Meter {
	return &Meter{meter: m}
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// AuthzMetrics records authorization outcomes.
type AuthzMetrics struct {
	decisions        metric.Int64Counter
	decisionDuration metric.Float64Histogram
	policyReloads    metric.Int64Counter
}

// NewAuthzMetrics registers the authorization instruments on m.
func NewAuthzMetrics(m *Meter) (*AuthzMetrics, error) {
	decisions, err := m.CreateCounter("authz.decisions", "Authorization decisions by operation and result")
	if err != nil {
		return nil, err
	}
	duration, err := m.CreateHistogram("authz.decision.duration", "Time spent evaluating a requirement", "ms")
	if err != nil {
		return nil, err
	}
	reloads, err := m.CreateCounter("authz.policy.reloads", "Authorization policy reload attempts by result")
	if err != nil {
		return nil, err
	}
	return &AuthzMetrics{decisions: decisions, decisionDuration: duration, policyReloads: reloads}, nil
}

// RecordDecision counts one authorization decision.
func (a *AuthzMetrics) RecordDecision(ctx context.Context, operation, result string) {
	if a == nil {
		return
	}
	a.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
}

// RecordDecisionDuration records how long a decision took.
func (a *AuthzMetrics) RecordDecisionDuration(ctx context.Context, operation string, elapsed time.Duration) {
	if a == nil {
		return
	}
	a.decisionDuration.Record(ctx, float64(elapsed.Microseconds())/1000,
		metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordPolicyReload counts one reload attempt.
func (a *AuthzMetrics) RecordPolicyReload(ctx context.Context, ok bool) {
	if a == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	a.policyReloads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
