package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/codr1/themekit/internal/api/authz"
)

const (
	AuthCookieName  = "themekit_auth"
	DefaultTokenTTL = 24 * time.Hour
)

var (
	errAuthConfigMissing = errors.New("auth secret not configured")
	errInvalidToken      = errors.New("invalid auth token")
	errTokenExpired      = errors.New("auth token expired")
)

type tokenPayload struct {
	UserID    int64  `json:"uid"`
	Role      string `json:"role,omitempty"`
	ExpiresAt int64  `json:"exp"`
}

// Authenticator issues and verifies signed identity tokens.
// A token is base64url(payload) + "." + base64url(HMAC-SHA256(payload)).
type Authenticator struct {
	secret       []byte
	ttl          time.Duration
	secureCookie bool
	now          func() time.Time
}

func NewAuthenticator(secret string, ttl time.Duration, secureCookie bool) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authenticator{
		secret:       []byte(secret),
		ttl:          ttl,
		secureCookie: secureCookie,
		now:          time.Now,
	}
}

func (a *Authenticator) TTL() time.Duration { return a.ttl }

// IssueToken signs a token for user that expires after the configured TTL.
func (a *Authenticator) IssueToken(user authz.AuthUser) (string, time.Time, error) {
	expiresAt := a.now().Add(a.ttl)
	payload, err := json.Marshal(tokenPayload{
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return "", time.Time{}, err
	}

	encodedPayload := base64.RawURLEncoding.EncodeToString(payload)
	signature, err := a.signPayload(encodedPayload)
	if err != nil {
		return "", time.Time{}, err
	}
	return encodedPayload + "." + signature, expiresAt, nil
}

func (a *Authenticator) ParseToken(token string) (*authz.AuthUser, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return nil, errInvalidToken
	}

	encodedPayload := parts[0]
	signature := parts[1]
	expectedSignature, err := a.signPayload(encodedPayload)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal([]byte(signature), []byte(expectedSignature)) {
		return nil, errInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return nil, errInvalidToken
	}

	var claims tokenPayload
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, errInvalidToken
	}
	if claims.UserID <= 0 {
		return nil, errInvalidToken
	}
	if claims.ExpiresAt <= a.now().Unix() {
		return nil, errTokenExpired
	}

	role := claims.Role
	if role == "" {
		role = authz.RoleMember
	}
	return &authz.AuthUser{ID: claims.UserID, Role: role}, nil
}

// UserFromRequest reads a token from the Authorization header or the auth cookie.
// It returns (nil, nil) when the request carries no token of ours; a Clerk JWT in the
// Authorization header counts as "not ours".
func (a *Authenticator) UserFromRequest(r *http.Request) (*authz.AuthUser, error) {
	if r == nil {
		return nil, nil
	}

	token := bearerToken(r)
	if token == "" {
		cookie, err := r.Cookie(AuthCookieName)
		if err != nil {
			if errors.Is(err, http.ErrNoCookie) {
				return nil, nil
			}
			return nil, err
		}
		token = cookie.Value
	}
	if token == "" || looksLikeJWT(token) {
		return nil, nil
	}
	return a.ParseToken(token)
}

func (a *Authenticator) SetAuthCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   a.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *Authenticator) signPayload(payload string) (string, error) {
	if len(a.secret) == 0 {
		return "", errAuthConfigMissing
	}

	mac := hmac.New(sha256.New, a.secret)
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}
