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
	"slices"
	"sync/atomic"
)

// Requirement is the explicit authorization declaration of one operation.
type Requirement struct {
	Roles       []string
	Permissions []string
}

// IsZero reports whether the requirement imposes no restriction.
func (r Requirement) IsZero() bool {
	return len(r.Roles) == 0 && len(r.Permissions) == 0
}

// Override merges an enclosing-scope requirement with an operation-level one.
// For roles and permissions independently, a non-empty operation list replaces
// the scope list.
func (r Requirement) Override(op Requirement) Requirement {
	merged := Requirement{
		Roles:       slices.Clone(r.Roles),
		Permissions: slices.Clone(r.Permissions),
	}
	if len(op.Roles) > 0 {
		merged.Roles = slices.Clone(op.Roles)
	}
	if len(op.Permissions) > 0 {
		merged.Permissions = slices.Clone(op.Permissions)
	}
	return merged
}

// Decider makes allow/deny decisions against the active Policy.
// It is safe for concurrent use; Swap publishes a new Policy atomically.
type Decider struct {
	policy atomic.Pointer[Policy]
}

// NewDecider creates a decider. A nil policy selects DefaultPolicy.
func NewDecider(p *Policy) *Decider {
	if p == nil {
		p = DefaultPolicy()
	}
	d := &Decider{}
	d.policy.Store(p)
	return d
}

// Policy returns the active snapshot.
func (d *Decider) Policy() *Policy {
	return d.policy.Load()
}

// Swap replaces the active policy and returns the previous one.
// In-flight decisions keep the snapshot they started with.
func (d *Decider) Swap(p *Policy) *Policy {
	if p == nil {
		return d.policy.Load()
	}
	return d.policy.Swap(p)
}

// CheckPermissions allows iff the principal meets every required permission in the active policy.
func (d *Decider) CheckPermissions(principal *Principal, required []string) error {
	return d.Policy().CheckPermissions(principal, required)
}

// CheckRoles allows iff the principal meets at least one required role in the active policy.
func (d *Decider) CheckRoles(principal *Principal, required []string) error {
	return d.Policy().CheckRoles(principal, required)
}

// Authorize evaluates req against a single policy snapshot.
func (d *Decider) Authorize(principal *Principal, req Requirement) error {
	return d.Policy().Authorize(principal, req)
}
