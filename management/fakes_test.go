package management_test

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jrsteele09/go-admin-console/adminapi"
	"github.com/jrsteele09/go-admin-console/users"
)

func tokenOK(ctx context.Context) (string, error) { return "tok", nil }

// fakeAdminAPI is an in-memory administration API.
type fakeAdminAPI struct {
	mu      sync.Mutex
	users   []users.User
	members map[string]map[string]bool // userID -> roleID -> member
	catalog []users.Role

	listCalls  int
	roleCalls  int
	resetCalls int

	failCreate error
	failToggle error
	failReset  error
	failRoles  error
	failEdit   error

	createGate chan struct{}
}

func newFakeAdminAPI() *fakeAdminAPI {
	return &fakeAdminAPI{
		members: map[string]map[string]bool{},
		catalog: []users.Role{
			{ID: "r1", Name: "manager"},
			{ID: "r2", Name: "viewer"},
		},
	}
}

func (f *fakeAdminAPI) seedUsers(names ...string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(names))
	for _, n := range names {
		id := uuid.NewString()
		f.users = append(f.users, users.User{ID: id, Username: n, Enabled: true})
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeAdminAPI) Users(ctx context.Context, token string, first, max int, username string) (adminapi.UserPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	matched := make([]users.User, 0, len(f.users))
	for _, u := range f.users {
		if strings.Contains(u.Username, username) {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Username < matched[j].Username })

	count := len(matched)
	if first > count {
		first = count
	}
	if max > count {
		max = count
	}
	return adminapi.UserPage{Users: matched[first:max], Count: count}, nil
}

func (f *fakeAdminAPI) CreateUser(ctx context.Context, token string, user users.CreateUser) error {
	f.mu.Lock()
	gate := f.createGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	f.users = append(f.users, users.User{ID: uuid.NewString(), Username: user.Username, Enabled: user.Enabled})
	return nil
}

func (f *fakeAdminAPI) ToggleEnabled(ctx context.Context, token, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failToggle != nil {
		return f.failToggle
	}
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].Enabled = !f.users[i].Enabled
		}
	}
	return nil
}

func (f *fakeAdminAPI) ResetPassword(ctx context.Context, token, id, credential string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	return f.failReset
}

func (f *fakeAdminAPI) Roles(ctx context.Context, token, userID string) ([]users.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleCalls++
	if f.failRoles != nil {
		return nil, f.failRoles
	}

	roles := make([]users.Role, 0, len(f.catalog))
	for _, r := range f.catalog {
		roles = append(roles, users.Role{ID: r.ID, Name: r.Name, IsInRole: f.members[userID][r.ID]})
	}
	return roles, nil
}

func (f *fakeAdminAPI) AddRole(ctx context.Context, token, userID string, role users.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEdit != nil {
		return f.failEdit
	}
	if f.members[userID] == nil {
		f.members[userID] = map[string]bool{}
	}
	f.members[userID][role.ID] = true
	return nil
}

func (f *fakeAdminAPI) RemoveRole(ctx context.Context, token, userID string, role users.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEdit != nil {
		return f.failEdit
	}
	delete(f.members[userID], role.ID)
	return nil
}

func (f *fakeAdminAPI) userListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeAdminAPI) roleListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roleCalls
}

func (f *fakeAdminAPI) passwordResets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resetCalls
}

func (f *fakeAdminAPI) blockCreate() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.createGate = gate
	return gate
}

func (f *fakeAdminAPI) setFailToggle(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failToggle = err
}

func (f *fakeAdminAPI) setFailRoles(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRoles = err
}
