package auth

import (
	"context"

	"github.com/examstack/examstack/internal/rbac"
)

// Context identifies the caller of a lifecycle operation. It is passed
// explicitly into every service call; the service layer never reads request
// state on its own.
type Context struct {
	UserID string
	Role   string
}

func (c Context) IsAdmin() bool { return rbac.IsAdmin(c.Role) }

// ActorFromContext assembles the caller identity placed in the request
// context by JWTMiddleware and AttachRoleFromDB.
func ActorFromContext(ctx context.Context) Context {
	return Context{
		UserID: rbac.SubjectFromContext(ctx),
		Role:   rbac.RoleFromContext(ctx),
	}
}
