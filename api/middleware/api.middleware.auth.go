package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Nerzal/gocloak/v13"
	"github.com/itsatony/lumen/internal/auth"
	"github.com/itsatony/lumen/internal/errors"
	nuts "github.com/vaudience/go-nuts"
)

type KeycloakConfig struct {
	Enabled      bool
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

// keycloakClient is the subset of *gocloak.GoCloak used for authentication
type keycloakClient interface {
	RetrospectToken(ctx context.Context, accessToken, clientID, clientSecret, realm string) (*gocloak.IntroSpectTokenResult, error)
	GetRealmRoles(ctx context.Context, accessToken, realm string, params gocloak.GetRoleParams) ([]*gocloak.Role, error)
	GetUserInfo(ctx context.Context, accessToken, realm string) (*gocloak.UserInfo, error)
}

type KeycloakMiddleware struct {
	client keycloakClient
	config KeycloakConfig
}

// LocalContext is attached to every request when Keycloak is disabled
var LocalContext = &auth.Context{UserID: "local", Username: "local", Roles: []string{"system"}}

func NewKeycloakMiddleware(config KeycloakConfig) *KeycloakMiddleware {
	if !config.Enabled {
		nuts.L.Warnf("[Auth] Keycloak is disabled, requests run as %q", LocalContext.Username)
		return &KeycloakMiddleware{config: config}
	}
	return &KeycloakMiddleware{
		client: gocloak.NewClient(config.URL),
		config: config,
	}
}

// Authenticate validates the token and adds the caller to the context
func (k *KeycloakMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !k.config.Enabled {
			next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), LocalContext)))
			return
		}

		token := extractToken(r)
		if token == "" {
			handleError(w, errors.NewAuthError("no token provided", nil))
			return
		}

		// Verify token
		result, err := k.client.RetrospectToken(r.Context(), token, k.config.ClientID, k.config.ClientSecret, k.config.Realm)
		if err != nil || result == nil || !gocloak.PBool(result.Active) {
			handleError(w, errors.NewAuthError("invalid token", err))
			return
		}

		roles, err := k.client.GetRealmRoles(r.Context(), token, k.config.Realm, gocloak.GetRoleParams{})
		if err != nil {
			handleError(w, errors.NewAuthError("failed to get realm roles", err))
			return
		}
		userInfo, err := k.client.GetUserInfo(r.Context(), token, k.config.Realm)
		if err != nil {
			handleError(w, errors.NewAuthError("failed to get user info", err))
			return
		}

		ctx := auth.WithContext(r.Context(), createAuthContext(userInfo, roles))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles ensures the caller holds at least one of roles
func (k *KeycloakMiddleware) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := auth.FromContext(r.Context())
			if !ok {
				handleError(w, errors.NewAuthError("no user context found", nil))
				return
			}
			if !caller.HasAnyRole(roles...) {
				handleError(w, errors.NewAuthorizationError("insufficient permissions", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func createAuthContext(userInfo *gocloak.UserInfo, roles []*gocloak.Role) *auth.Context {
	return &auth.Context{
		UserID:   gocloak.PString(userInfo.Sub),
		Username: gocloak.PString(userInfo.PreferredUsername),
		Email:    gocloak.PString(userInfo.Email),
		Roles:    extractRoles(roles),
	}
}

func extractToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func extractRoles(roles []*gocloak.Role) []string {
	roleStrings := make([]string, 0, len(roles))
	for _, role := range roles {
		if role != nil && role.Name != nil {
			roleStrings = append(roleStrings, *role.Name)
		}
	}
	return roleStrings
}

func handleError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
}
