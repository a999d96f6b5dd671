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
	"errors"
	"strings"
)

// Denial kinds. Typed denials below match these via errors.Is.
var (
	ErrUnauthenticated        = errors.New("authentication required")
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrInsufficientRole       = errors.New("insufficient role")
	ErrInvalidPolicy          = errors.New("invalid policy")
)

// PermissionError reports the permissions a principal failed to satisfy.
// It never carries the principal's access level.
type PermissionError struct {
	Missing []string
}

func (e *PermissionError) Error() string {
	return "insufficient permission: missing " + strings.Join(e.Missing, ", ")
}

func (e *PermissionError) Unwrap() error {
	return ErrInsufficientPermission
}

// RoleError reports a failed role check. Required lists every role that
// would have been accepted.
type RoleError struct {
	Required []string
}

func (e *RoleError) Error() string {
	return "insufficient role: requires one of " + strings.Join(e.Required, ", ")
}

func (e *RoleError) Unwrap() error {
	return ErrInsufficientRole
}

// IsDenied reports whether err is any authorization denial.
func IsDenied(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrInsufficientPermission) ||
		errors.Is(err, ErrInsufficientRole)
}
