package auth

import (
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/rs/zerolog/log"

	"github.com/codr1/themekit/internal/api/authz"
)

const clerkSessionCookie = "__session"

// clerkInitialized indicates whether the Clerk SDK has been initialized
var clerkInitialized bool

// InitClerk initializes Clerk SDK with the secret key
func InitClerk(secretKey string) bool {
	if secretKey == "" {
		log.Info().Msg("Clerk secret key not configured; Clerk sessions disabled")
		return false
	}
	clerk.SetKey(secretKey)
	clerkInitialized = true
	log.Info().Msg("Clerk SDK initialized")
	return true
}

func ClerkEnabled() bool { return clerkInitialized }

// VerifyClerkSession verifies a Clerk session token from the __session cookie or a
// Bearer JWT. It returns (nil, nil) when Clerk is disabled or no token is present.
func VerifyClerkSession(r *http.Request) (*clerk.SessionClaims, error) {
	if !clerkInitialized || r == nil {
		return nil, nil
	}

	token := bearerToken(r)
	if !looksLikeJWT(token) {
		token = ""
	}
	if token == "" {
		cookie, err := r.Cookie(clerkSessionCookie)
		if err != nil {
			return nil, nil
		}
		token = cookie.Value
	}
	if token == "" {
		return nil, nil
	}

	claims, err := jwt.Verify(r.Context(), &jwt.VerifyParams{
		Token: token,
	})
	if err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Msg("Invalid Clerk session token")
		return nil, err
	}
	return claims, nil
}

// UserFromClerkClaims maps verified claims to a user. The Clerk subject becomes the
// identity key and the org:admin organization role grants global writes.
func UserFromClerkClaims(claims *clerk.SessionClaims) *authz.AuthUser {
	if claims == nil || strings.TrimSpace(claims.Subject) == "" {
		return nil
	}
	role := authz.RoleMember
	if claims.ActiveOrganizationRole == authz.RoleOrgAdmin {
		role = authz.RoleOrgAdmin
	}
	return &authz.AuthUser{ExternalID: claims.Subject, Role: role}
}
