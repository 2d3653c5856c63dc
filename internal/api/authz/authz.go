package authz

import (
	"context"
	"errors"
	"strconv"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	// RoleOrgAdmin is the organization admin role carried by Clerk session claims.
	RoleOrgAdmin = "org:admin"
)

// AuthUser is the identity attached to a request by the auth middleware.
// ExternalID is set for identities issued by an external provider.
type AuthUser struct {
	ID         int64
	ExternalID string
	Role       string
}

// IsPrivileged reports whether the user may change the global theme.
func (u *AuthUser) IsPrivileged() bool {
	if u == nil {
		return false
	}
	return u.Role == RoleAdmin || u.Role == RoleOrgAdmin
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}
	user, _ := ctx.Value(userContextKey{}).(*AuthUser)
	return user
}

func RequireUser(ctx context.Context) (*AuthUser, error) {
	user := UserFromContext(ctx)
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

func RequirePrivileged(ctx context.Context) (*AuthUser, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsPrivileged() {
		return user, ErrForbidden
	}
	return user, nil
}

// ThemeKey is the identity key a user's theme is stored under.
func ThemeKey(user *AuthUser) string {
	if user == nil {
		return ""
	}
	if user.ExternalID != "" {
		return user.ExternalID
	}
	return strconv.FormatInt(user.ID, 10)
}
