package users

// Role is a realm role reported relative to a selected user: IsInRole
// says whether that user currently holds it, it is not a global
// property of the role.
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsInRole bool   `json:"isInRole"`
}

// EditRoleCommand grants or revokes a single role for a user.
// Checked=true means grant, false means revoke.
type EditRoleCommand struct {
	UserID   string
	RoleID   string
	RoleName string
	Checked  bool
}

// Role returns the role referenced by the command, without the
// user-scoped membership flag.
func (c EditRoleCommand) Role() Role {
	return Role{ID: c.RoleID, Name: c.RoleName}
}
