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

package authz

import (
	"context"
	"fmt"
	"time"
)

// PolicyLoader produces a fresh Policy from some backing source.
type PolicyLoader interface {
	Load(ctx context.Context, opts ...PolicyOption) (*Policy, error)
}

// StaticLoader always yields the built-in tables.
type StaticLoader struct{}

// Load returns DefaultPolicy built with opts.
func (StaticLoader) Load(_ context.Context, opts ...PolicyOption) (*Policy, error) {
	return NewPolicy(DefaultPermissionLevels, DefaultRoleLevels, opts...)
}

// ReloadObserver is notified after every reload attempt.
type ReloadObserver func(ctx context.Context, p *Policy, err error)

// Reloader loads policies and publishes them on a Decider.
// A failed load leaves the active policy in place.
type Reloader struct {
	decider  *Decider
	loader   PolicyLoader
	opts     []PolicyOption
	observer ReloadObserver
}

// NewReloader creates a reloader publishing to d.
func NewReloader(d *Decider, loader PolicyLoader, observer ReloadObserver, opts ...PolicyOption) *Reloader {
	return &Reloader{decider: d, loader: loader, opts: opts, observer: observer}
}

// Reload loads one policy snapshot and swaps it in.
func (r *Reloader) Reload(ctx context.Context) (*Policy, error) {
	p, err := r.loader.Load(ctx, r.opts...)
	if err == nil && p == nil {
		err = fmt.Errorf("%w: loader returned no policy", ErrInvalidPolicy)
	}
	if err != nil {
		err = fmt.Errorf("failed to load policy: %w", err)
		r.notify(ctx, nil, err)
		return nil, err
	}

	r.decider.Swap(p)
	r.notify(ctx, p, nil)
	return p, nil
}

// Run reloads every interval until ctx is done. A non-positive interval returns immediately.
func (r *Reloader) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.Reload(ctx)
		}
	}
}

func (r *Reloader) notify(ctx context.Context, p *Policy, err error) {
	if r.observer != nil {
		r.observer(ctx, p, err)
	}
}
