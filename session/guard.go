package session

// Route names understood by the presentation layer.
const (
	RouteHome           = "home"
	RouteUserManagement = "user-management"
	RouteUnauthorized   = "unauthorized"
)

// Decision is the outcome of a route-entry check: either allowed, or a
// redirect target.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func redirect(route string) Decision {
	return Decision{RedirectTo: route}
}

// Gate evaluates route-entry predicates against already-loaded session
// state. Every check is synchronous; when the store has not been
// initialized yet the gate fails closed.
type Gate struct {
	store       *Store
	managerRole string
}

// NewGate returns a Gate consulting store, using managerRole as the
// capability required for user management.
func NewGate(store *Store, managerRole string) *Gate {
	return &Gate{store: store, managerRole: managerRole}
}

// RequireAuthenticated permits any logged-in user; otherwise redirects
// to the unauthorized screen.
func (g *Gate) RequireAuthenticated() Decision {
	if g.store == nil || !g.store.Initialized() {
		return redirect(RouteUnauthorized)
	}
	if g.store.CurrentUser() == "" {
		return redirect(RouteUnauthorized)
	}
	return allow()
}

// RequireManager permits users holding the management capability;
// otherwise redirects to the home screen.
func (g *Gate) RequireManager() Decision {
	if g.store == nil || !g.store.Initialized() {
		return redirect(RouteHome)
	}
	if !g.store.IsAuthorized(g.managerRole) {
		return redirect(RouteHome)
	}
	return allow()
}
