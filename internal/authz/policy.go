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
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Principal is the authenticated caller of an operation.
// It is produced by credential verification and never mutated afterwards.
type Principal struct {
	ID          string
	AccessLevel int
}

// Policy is an immutable snapshot of the permission and role level tables.
// A Policy is never modified after construction; reloads build a new one.
type Policy struct {
	permissions map[string]int
	roles       map[string]int
	strict      bool
}

// PolicyOption configures a Policy at construction time.
type PolicyOption func(*Policy)

// WithStrictPermissions makes permission and role names missing from the
// tables unmet instead of requiring level 0.
func WithStrictPermissions(strict bool) PolicyOption {
	return func(p *Policy) {
		p.strict = strict
	}
}

// NewPolicy builds a Policy from the given tables. The maps are copied.
func NewPolicy(permissions, roles map[string]int, opts ...PolicyOption) (*Policy, error) {
	if err := validateTable("permission", permissions); err != nil {
		return nil, err
	}
	if err := validateTable("role", roles); err != nil {
		return nil, err
	}

	p := &Policy{
		permissions: maps.Clone(permissions),
		roles:       maps.Clone(roles),
	}
	if p.permissions == nil {
		p.permissions = map[string]int{}
	}
	if p.roles == nil {
		p.roles = map[string]int{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// DefaultPolicy returns the tables the marketplace ships with.
func DefaultPolicy(opts ...PolicyOption) *Policy {
	p, err := NewPolicy(DefaultPermissionLevels, DefaultRoleLevels, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func validateTable(kind string, table map[string]int) error {
	for name, level := range table {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty %s name", ErrInvalidPolicy, kind)
		}
		if level < 0 {
			return fmt.Errorf("%w: %s %q has negative level %d", ErrInvalidPolicy, kind, name, level)
		}
	}
	return nil
}

// PermissionLevel returns the minimum level for a permission and whether it is known.
func (p *Policy) PermissionLevel(name string) (int, bool) {
	level, ok := p.permissions[name]
	return level, ok
}

// RoleLevel returns the minimum level for a role and whether it is known.
func (p *Policy) RoleLevel(name string) (int, bool) {
	level, ok := p.roles[name]
	return level, ok
}

// Strict reports whether unknown permissions and roles are treated as unmet.
func (p *Policy) Strict() bool {
	return p.strict
}

// Permissions returns a copy of the permission table.
func (p *Policy) Permissions() map[string]int {
	return maps.Clone(p.permissions)
}

// Roles returns a copy of the role table.
func (p *Policy) Roles() map[string]int {
	return maps.Clone(p.roles)
}

// Unknown returns the permission names absent from the table, sorted and deduplicated.
func (p *Policy) Unknown(permissions []string) []string {
	return missingFrom(p.permissions, permissions)
}

// UnknownRoles returns the role names absent from the table, sorted and deduplicated.
func (p *Policy) UnknownRoles(roles []string) []string {
	return missingFrom(p.roles, roles)
}

func missingFrom(table map[string]int, names []string) []string {
	var unknown []string
	for _, name := range names {
		if _, ok := table[name]; !ok && !slices.Contains(unknown, name) {
			unknown = append(unknown, name)
		}
	}
	slices.Sort(unknown)
	return unknown
}

// CheckPermissions allows iff the principal meets the level of every required permission.
func (p *Policy) CheckPermissions(principal *Principal, required []string) error {
	if len(required) == 0 {
		return nil
	}
	if principal == nil {
		return ErrUnauthenticated
	}

	var missing []string
	for _, name := range required {
		level, ok := p.permissions[name]
		// Unknown names require level 0 unless the policy is strict.
		unmet := principal.AccessLevel < level || (!ok && p.strict)
		if unmet && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &PermissionError{Missing: missing}
	}
	return nil
}

// CheckRoles allows iff the principal meets the level of at least one required role.
func (p *Policy) CheckRoles(principal *Principal, required []string) error {
	if len(required) == 0 {
		return nil
	}
	if principal == nil {
		return ErrUnauthenticated
	}

	for _, name := range required {
		level, ok := p.roles[name]
		if !ok && p.strict {
			continue
		}
		if principal.AccessLevel >= level {
			return nil
		}
	}
	return &RoleError{Required: slices.Clone(required)}
}

// Authorize evaluates a full requirement: roles first, then permissions.
func (p *Policy) Authorize(principal *Principal, req Requirement) error {
	if err := p.CheckRoles(principal, req.Roles); err != nil {
		return err
	}
	return p.CheckPermissions(principal, req.Permissions)
}
