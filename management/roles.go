package management

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-admin-console/listing"
	"github.com/jrsteele09/go-admin-console/users"
)

const (
	kindAddRole    = "add-role"
	kindRemoveRole = "remove-role"
)

// RolesAPI is the slice of the admin API the role screen needs.
// adminapi.Client satisfies it.
type RolesAPI interface {
	Roles(ctx context.Context, token, userID string) ([]users.Role, error)
	AddRole(ctx context.Context, token, userID string, role users.Role) error
	RemoveRole(ctx context.Context, token, userID string, role users.Role) error
}

// RoleAssignments owns the role dialog's state for one selected user at
// a time. Selecting a user reloads the role list; grants and revokes do
// not reload it automatically. Callers re-select the user when they
// want fresh membership flags.
type RoleAssignments struct {
	api      RolesAPI
	pipeline *listing.Pipeline[users.Role]
	coord    *Coordinator

	mu       sync.Mutex
	selected string
}

// NewRoleAssignments wires the role screen over api.
func NewRoleAssignments(tokens listing.TokenFunc, api RolesAPI, log zerolog.Logger) *RoleAssignments {
	r := &RoleAssignments{api: api}

	fetch := func(ctx context.Context, token string, _ listing.Pagination, _ string) (listing.Page[users.Role], error) {
		roles, err := api.Roles(ctx, token, r.selectedUser())
		if err != nil {
			return listing.Page[users.Role]{}, err
		}
		return listing.Page[users.Role]{Items: roles, Total: len(roles)}, nil
	}

	// No load until a user is selected.
	r.pipeline = listing.New(tokens, fetch,
		listing.WithLogger[users.Role](log),
		listing.WithoutInitialReload[users.Role](),
	)
	r.coord = NewCoordinator(tokens, log)
	return r
}

// Start launches the pipeline. Call once per dialog lifetime.
func (r *RoleAssignments) Start(ctx context.Context) {
	r.pipeline.Start(ctx)
}

// Close tears the dialog down.
func (r *RoleAssignments) Close() {
	r.pipeline.Close()
}

// SelectUser switches the dialog to userID and reloads its roles. A
// rapid re-selection supersedes the previous load.
func (r *RoleAssignments) SelectUser(userID string) {
	r.mu.Lock()
	r.selected = userID
	r.mu.Unlock()
	r.pipeline.RequestReload()
}

// Roles returns a snapshot of the role-list state.
func (r *RoleAssignments) Roles() listing.State[users.Role] {
	return r.pipeline.Snapshot()
}

// Clear empties the role list, e.g. when the dialog closes.
func (r *RoleAssignments) Clear() {
	r.pipeline.Clear()
}

// Apply grants or revokes one role according to cmd.Checked.
func (r *RoleAssignments) Apply(ctx context.Context, cmd users.EditRoleCommand) {
	if cmd.Checked {
		r.Grant(ctx, cmd)
		return
	}
	r.Revoke(ctx, cmd)
}

// Grant adds the role to the user.
func (r *RoleAssignments) Grant(ctx context.Context, cmd users.EditRoleCommand) {
	r.coord.Run(ctx, kindAddRole, r.pipeline,
		func(ctx context.Context, token string) error {
			return r.api.AddRole(ctx, token, cmd.UserID, cmd.Role())
		},
		r.pipeline.ClearLoading,
	)
}

// Revoke removes the role from the user.
func (r *RoleAssignments) Revoke(ctx context.Context, cmd users.EditRoleCommand) {
	r.coord.Run(ctx, kindRemoveRole, r.pipeline,
		func(ctx context.Context, token string) error {
			return r.api.RemoveRole(ctx, token, cmd.UserID, cmd.Role())
		},
		r.pipeline.ClearLoading,
	)
}

func (r *RoleAssignments) selectedUser() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}
