package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"docvault/internal/model"
)

const (
	// IdentityLocalKey stores the resolved model.AccessContext in Fiber locals.
	IdentityLocalKey = "identity"

	// UserIDHeader and UserRolesHeader carry the caller when a trusted gateway
	// authenticates requests in front of the service.
	UserIDHeader    = "X-User-ID"
	UserRolesHeader = "X-User-Roles"
)

// ErrInvalidToken is returned for a bearer token that fails verification.
var ErrInvalidToken = errors.New("invalid bearer token")

// Claims is the JWT payload understood by Identity. The caller id is the
// standard "sub" claim.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Identity resolves the caller of a request. With a secret, only HS256 bearer
// tokens signed with it are accepted and a bad token fails the request with 401.
// Without a secret, the caller is taken from X-User-ID and X-User-Roles.
// Requests without any identity pass through; handlers that need one reject them.
func Identity(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			ac  model.AccessContext
			err error
		)
		if len(secret) > 0 {
			ac, err = fromBearer(c.Get(fiber.HeaderAuthorization), secret)
			if err != nil {
				return fiber.NewError(fiber.StatusUnauthorized, err.Error())
			}
		} else {
			ac = model.AccessContext{
				UserID: strings.TrimSpace(c.Get(UserIDHeader)),
				Roles:  splitRoles(c.Get(UserRolesHeader)),
			}
		}
		if ac.UserID != "" {
			c.Locals(IdentityLocalKey, ac)
		}
		return c.Next()
	}
}

// AccessContextFrom returns the caller resolved by Identity.
func AccessContextFrom(c *fiber.Ctx) (model.AccessContext, bool) {
	ac, ok := c.Locals(IdentityLocalKey).(model.AccessContext)
	return ac, ok && ac.UserID != ""
}

func fromBearer(header string, secret []byte) (model.AccessContext, error) {
	if header == "" {
		return model.AccessContext{}, nil
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return model.AccessContext{}, ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return model.AccessContext{}, errors.Join(ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return model.AccessContext{}, ErrInvalidToken
	}
	return model.AccessContext{UserID: claims.Subject, Roles: claims.Roles}, nil
}

func splitRoles(v string) []string {
	var roles []string
	for _, r := range strings.Split(v, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
