package management

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-admin-console/adminapi"
	"github.com/jrsteele09/go-admin-console/listing"
	"github.com/jrsteele09/go-admin-console/users"
)

// Mutation kinds handled by the user directory.
const (
	kindCreate        = "create-user"
	kindToggle        = "toggle-enabled"
	kindResetPassword = "reset-password"
)

// DirectoryAPI is the slice of the admin API the user directory needs.
// adminapi.Client satisfies it.
type DirectoryAPI interface {
	Users(ctx context.Context, token string, first, max int, username string) (adminapi.UserPage, error)
	CreateUser(ctx context.Context, token string, user users.CreateUser) error
	ToggleEnabled(ctx context.Context, token, id string) error
	ResetPassword(ctx context.Context, token, id, credential string) error
}

// UserDirectory owns the user-list screen's state: a filtered,
// paginated pipeline plus create/toggle/reset-password mutations.
// One instance per screen; Close on teardown.
type UserDirectory struct {
	api      DirectoryAPI
	pipeline *listing.Pipeline[users.User]
	coord    *Coordinator
}

// DirectoryOption configures a UserDirectory.
type DirectoryOption func(*directorySettings)

type directorySettings struct {
	pipelineOpts []listing.Option[users.User]
	log          zerolog.Logger
}

// WithDirectoryLogger sets the directory's logger.
func WithDirectoryLogger(log zerolog.Logger) DirectoryOption {
	return func(s *directorySettings) { s.log = log }
}

// WithDirectoryPipelineOptions forwards options to the underlying
// pipeline (debounce, page size).
func WithDirectoryPipelineOptions(opts ...listing.Option[users.User]) DirectoryOption {
	return func(s *directorySettings) { s.pipelineOpts = append(s.pipelineOpts, opts...) }
}

// NewUserDirectory wires a directory over api, fetching a fresh token
// per request through tokens.
func NewUserDirectory(tokens listing.TokenFunc, api DirectoryAPI, options ...DirectoryOption) *UserDirectory {
	settings := &directorySettings{log: zerolog.Nop()}
	for _, opt := range options {
		opt(settings)
	}

	d := &UserDirectory{api: api}

	fetch := func(ctx context.Context, token string, pag listing.Pagination, filter string) (listing.Page[users.User], error) {
		page, err := api.Users(ctx, token, pag.First(), pag.Max(), filter)
		if err != nil {
			return listing.Page[users.User]{}, err
		}
		return listing.Page[users.User]{Items: page.Users, Total: page.Count}, nil
	}

	opts := append([]listing.Option[users.User]{listing.WithLogger[users.User](settings.log)}, settings.pipelineOpts...)
	d.pipeline = listing.New(tokens, fetch, opts...)
	d.coord = NewCoordinator(tokens, settings.log)
	return d
}

// Start begins loading; the first page is fetched immediately.
func (d *UserDirectory) Start(ctx context.Context) {
	d.pipeline.Start(ctx)
}

// Close tears the screen down.
func (d *UserDirectory) Close() {
	d.pipeline.Close()
}

// Users returns a snapshot of the list state.
func (d *UserDirectory) Users() listing.State[users.User] {
	return d.pipeline.Snapshot()
}

// SetFilter narrows the list by username. Debounced.
func (d *UserDirectory) SetFilter(filter string) {
	d.pipeline.SetFilter(filter)
}

// SetPage moves the pagination window.
func (d *UserDirectory) SetPage(pageIndex, pageSize int) {
	d.pipeline.SetPage(pageIndex, pageSize)
}

// Create registers a new user and reloads the list on success.
func (d *UserDirectory) Create(ctx context.Context, user users.CreateUser) {
	d.coord.Run(ctx, kindCreate, d.pipeline,
		func(ctx context.Context, token string) error {
			return d.api.CreateUser(ctx, token, user)
		},
		d.pipeline.RequestReload,
	)
}

// ToggleEnabled flips a user's enabled flag and reloads on success.
func (d *UserDirectory) ToggleEnabled(ctx context.Context, id string) {
	d.coord.Run(ctx, kindToggle, d.pipeline,
		func(ctx context.Context, token string) error {
			return d.api.ToggleEnabled(ctx, token, id)
		},
		d.pipeline.RequestReload,
	)
}

// ResetPassword replaces a user's credential. The list is not reloaded
// afterwards: credentials are not a listed field. Weak credentials are
// rejected before any network access.
func (d *UserDirectory) ResetPassword(ctx context.Context, req users.ResetPassword) {
	if err := users.ValidatePasswordStrength(req.Credential); err != nil {
		d.pipeline.Fail(err.Error())
		return
	}
	d.coord.Run(ctx, kindResetPassword, d.pipeline,
		func(ctx context.Context, token string) error {
			return d.api.ResetPassword(ctx, token, req.ID, req.Credential)
		},
		d.pipeline.ClearLoading,
	)
}
