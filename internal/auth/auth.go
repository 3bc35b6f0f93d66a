// FilePath: internal/auth/auth.go
package auth

import "context"

// Context is the authenticated caller attached to a request
type Context struct {
	UserID   string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

type contextKey struct{}

// GuestRoles apply when no caller is attached to the context.
var GuestRoles = []string{"guest"}

// WithContext returns a copy of ctx carrying ac.
func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the caller attached to ctx, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	ac, ok := ctx.Value(contextKey{}).(*Context)
	return ac, ok && ac != nil
}

// Roles returns the roles of the caller, or GuestRoles.
func Roles(ctx context.Context) []string {
	if ac, ok := FromContext(ctx); ok && len(ac.Roles) > 0 {
		return ac.Roles
	}
	return GuestRoles
}

// HasAnyRole reports whether the caller holds one of required. An empty
// required list or a "*" entry matches every caller.
func (c *Context) HasAnyRole(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	held := make(map[string]bool, len(c.Roles))
	for _, role := range c.Roles {
		held[role] = true
	}
	for _, role := range required {
		if role == "*" || held[role] {
			return true
		}
	}
	return false
}
