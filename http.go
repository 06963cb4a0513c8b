package register

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-register/middleware/jwtware"
	"github.com/goliatone/go-router"
)

// RouteAuthenticator wires bearer token authentication into routes and
// maps token failures to JSON error responses.
type RouteAuthenticator struct {
	auth         *Auther
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

// NewHTTPAuthenticator builds the HTTP route guard.
func NewHTTPAuthenticator(auther *Auther, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		cfg:    cfg,
		auth:   auther,
		Logger: defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// ProtectedRoute returns middleware that requires a valid bearer access
// token. Claims are stored under the configured context key.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(jwtware.Config{
			ErrorHandler: errorHandler,
			SigningKey: jwtware.SigningKey{
				Key:    []byte(cfg.GetSigningKey()),
				JWTAlg: cfg.GetSigningMethod(),
			},
			AuthScheme:     cfg.GetAuthScheme(),
			ContextKey:     cfg.GetContextKey(),
			TokenLookup:    cfg.GetTokenLookup(),
			TokenValidator: accessTokenValidator{a.auth.TokenService()},
			SuccessHandler: func(c router.Context) error {
				return hf(c)
			},
		})
	}
}

// accessTokenValidator adapts the TokenService to the middleware's
// validator interface and rejects anything but access tokens: a refresh
// token is never a valid bearer credential for protected routes.
type accessTokenValidator struct {
	tokens TokenService
}

func (v accessTokenValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := v.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Kind() != TokenKindAccess {
		return nil, ErrTokenMalformed.WithMetadata(map[string]any{
			"kind": claims.Kind(),
		})
	}

	return claims.(*JWTClaims), nil
}

// RequireCompletedRegistration returns middleware that rejects
// registration scoped tokens. Routes behind it are only reachable once
// the profile is done.
func (a *RouteAuthenticator) RequireCompletedRegistration() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			claims, ok := GetRouterClaims(c, a.cfg.GetContextKey())
			if !ok {
				return a.ErrorHandler(c, ErrTokenMalformed)
			}

			if claims.HasScope(ScopeRegistration) {
				return a.ErrorHandler(c, ErrIncompleteRegistration)
			}

			return hf(c)
		}
	}
}

// MakeAuthErrorHandler maps middleware token failures to the stable
// token error taxonomy before rendering.
func (a *RouteAuthenticator) MakeAuthErrorHandler() func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *goerrors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = goerrors.Wrap(err, goerrors.CategoryAuth, "invalid authentication token").
				WithCode(goerrors.CodeUnauthorized)
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	return WriteError(c, a.Logger, err)
}

// WriteError renders any error as the stable JSON error envelope. Rich
// errors keep their category, text code and HTTP status; everything else
// becomes an internal error.
func WriteError(c router.Context, logger Logger, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "an unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = categoryStatus(richErr.Category)
	}

	if logger != nil {
		logger.Info(
			"request error status=%d category=%s text_code=%s details=%s",
			status,
			richErr.Category,
			richErr.TextCode,
			print.MaybePrettyJSON(richErr.Metadata),
		)
	}

	return c.JSON(status, map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"category":  richErr.Category,
			"text_code": richErr.TextCode,
		},
	})
}

func categoryStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return router.StatusBadRequest
	case goerrors.CategoryAuth:
		return router.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return router.StatusForbidden
	case goerrors.CategoryNotFound:
		return router.StatusNotFound
	case goerrors.CategoryConflict:
		return router.StatusConflict
	default:
		return router.StatusInternalServerError
	}
}
