package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// TierKey is the echo context key holding the caller's subscription tier.
const TierKey = "subscriber_tier"

// TierClaims is the bearer token payload.
type TierClaims struct {
	Tier string `json:"tier"`
	jwt.RegisteredClaims
}

// TierAuth extracts the subscription tier from an HS256 bearer token. A
// request without a token passes through with no tier set; a present but
// invalid token is rejected.
func TierAuth(secret []byte, issuer string) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header.Get(echo.HeaderAuthorization)
			if h == "" {
				return next(c)
			}
			raw, ok := strings.CutPrefix(h, "Bearer ")
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "malformed authorization header")
			}

			var claims TierClaims
			_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil {
				msg := "token is invalid"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token has expired"
				}
				return echo.NewHTTPError(http.StatusUnauthorized, msg)
			}
			c.Set(TierKey, strings.ToUpper(claims.Tier))
			return next(c)
		}
	}
}

// Tier returns the tier set by TierAuth, or "" for anonymous callers.
func Tier(c echo.Context) string {
	s, _ := c.Get(TierKey).(string)
	return s
}
