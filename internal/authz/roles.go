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

// -----------------------------------------------------------------------------
// Access Levels
// The integer rank carried by every principal ("nivel").
// -----------------------------------------------------------------------------

const (
	LevelAnonymous  = 0
	LevelUser       = 1
	LevelModerator  = 2
	LevelAdmin      = 3
	LevelSuperAdmin = 4
)

// -----------------------------------------------------------------------------
// Role Name Constants
// Coarse privilege tiers. Role checks are satisfied by ANY listed role.
// -----------------------------------------------------------------------------

const (
	// RoleUser is a standard marketplace member (prestador or corporation staff).
	RoleUser = "user"

	// RoleModerator reviews listings and proposals.
	RoleModerator = "moderator"

	// RoleAdmin administers corporations and users.
	RoleAdmin = "admin"

	// RoleSuperAdmin has platform-wide control, including the authorization tables.
	RoleSuperAdmin = "super_admin"
)

// -----------------------------------------------------------------------------
// Permission Name Constants
// Fine-grained capabilities. Permission checks require ALL listed permissions.
// -----------------------------------------------------------------------------

const (
	PermReadJobs   = "read:jobs"
	PermWriteJobs  = "write:jobs"
	PermDeleteJobs = "delete:jobs"

	PermReadProposals   = "read:proposals"
	PermWriteProposals  = "write:proposals"
	PermDeleteProposals = "delete:proposals"

	PermReadContacts   = "read:contacts"
	PermWriteContacts  = "write:contacts"
	PermDeleteContacts = "delete:contacts"

	PermReadChat  = "read:chat"
	PermWriteChat = "write:chat"

	PermReadNotifications = "read:notifications"

	PermManageCorporations = "manage:corporations"
	PermManageUsers        = "manage:users"
	PermManagePolicy       = "manage:policy"
)

// DefaultRoleLevels is the role table the marketplace ships with.
var DefaultRoleLevels = map[string]int{
	RoleUser:       LevelUser,
	RoleModerator:  LevelModerator,
	RoleAdmin:      LevelAdmin,
	RoleSuperAdmin: LevelSuperAdmin,
}

// DefaultPermissionLevels is the permission table the marketplace ships with.
var DefaultPermissionLevels = map[string]int{
	PermReadJobs:   LevelUser,
	PermWriteJobs:  LevelUser,
	PermDeleteJobs: LevelModerator,

	PermReadProposals:   LevelUser,
	PermWriteProposals:  LevelUser,
	PermDeleteProposals: LevelModerator,

	PermReadContacts:   LevelUser,
	PermWriteContacts:  LevelUser,
	PermDeleteContacts: LevelModerator,

	PermReadChat:  LevelUser,
	PermWriteChat: LevelUser,

	PermReadNotifications: LevelUser,

	PermManageCorporations: LevelAdmin,
	PermManageUsers:        LevelAdmin,
	PermManagePolicy:       LevelSuperAdmin,
}

// LevelForRole returns the access level a freshly provisioned principal of the
// given role receives. Unknown roles map to LevelUser.
func LevelForRole(role string) int {
	if level, ok := DefaultRoleLevels[role]; ok {
		return level
	}
	return LevelUser
}
