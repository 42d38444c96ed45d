package server

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// SignJWT issues a signed token with the provided subject and TTL.
func SignJWT(subject string, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// AuthMiddleware validates JWT tokens from the Authorization header or the
// auth cookie and stores the subject on the echo context.
func AuthMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := extractToken(c)
			if tok == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			parsed, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) { return secret, nil })
			if err != nil || !parsed.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims, ok := parsed.Claims.(jwt.MapClaims); ok {
				if sub, ok := claims["sub"].(string); ok {
					c.Set("subject", sub)
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
	}
}

func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	if ck, err := c.Cookie("auth"); err == nil {
		return ck.Value
	}
	return ""
}

// AuthHandler exchanges the shared intake secret for a short-lived JWT.
// There are no user accounts; intake callers (UI, cron) hold the secret.
type AuthHandler struct {
	Secret       []byte
	IntakeSecret string
	TokenTTL     time.Duration
}

func (a *AuthHandler) Register(g *echo.Group) {
	g.POST("/token", a.token)
}

type tokenRequest struct {
	IntakeSecret string `json:"intake_secret"`
	Subject      string `json:"subject"`
}

func (a *AuthHandler) token(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if a.IntakeSecret == "" || subtle.ConstantTimeCompare([]byte(req.IntakeSecret), []byte(a.IntakeSecret)) != 1 {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid intake secret")
	}
	subject := req.Subject
	if subject == "" {
		subject = "intake"
	}
	signed, err := SignJWT(subject, a.Secret, a.TokenTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set("Authorization", "Bearer "+signed)
	return c.JSON(http.StatusOK, map[string]string{"token": signed})
}
