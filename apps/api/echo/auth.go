package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/syllabus/core"
)

const (
	contextTokenKey = "userToken"
	// TokenExpirationDelta is the default lifetime of the tokens issued by NewClaims.
	TokenExpirationDelta = 7 * 24 * time.Hour
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	IsAdmin  bool   `json:"is_admin,omitempty"` // may edit the task set
}

// Person returns the identity carried by the claims, for error reports.
func (c Claims) Person() core.Person {
	return core.Person{ID: c.Subject, Username: c.Username, Email: c.Email}
}

// Auth issues and verifies the API tokens.
type Auth struct {
	appName string
	config  middleware.JWTConfig
}

func NewAuth(conf *core.Config) *Auth {
	return &Auth{
		appName: conf.AppName,
		config: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

// NewClaims returns the claims of `p`, valid for `expiration`.
func (a *Auth) NewClaims(p core.Person, isAdmin bool, expiration time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.appName,
			Subject:   p.ID,
			Audience:  "Academia",
			ExpiresAt: now.Add(expiration).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: p.Username,
		Email:    p.Email,
		IsAdmin:  isAdmin,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (a *Auth) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.config.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.config.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Middleware verifies the bearer token of the request.
func (a *Auth) Middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(a.config)
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// requireAdmin refuses the requests of non-admins; it runs after Middleware.
func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		if !claims.IsAdmin {
			return errHttpForbidden
		}
		return next(ctx)
	}
}
