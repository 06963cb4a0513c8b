package register_test

import (
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-register"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type configStub struct{}

func (configStub) GetSigningKey() string              { return "test-signing-key" }
func (configStub) GetSigningMethod() string           { return "HS256" }
func (configStub) GetContextKey() string              { return "user" }
func (configStub) GetAccessTokenTTL() time.Duration   { return time.Hour }
func (configStub) GetRefreshTokenTTL() time.Duration  { return 24 * time.Hour }
func (configStub) GetTokenLookup() string             { return "header:Authorization" }
func (configStub) GetAuthScheme() string              { return "Bearer" }
func (configStub) GetIssuer() string                  { return "test-app" }
func (configStub) GetAudience() []string              { return nil }

func newRouteGuard(t *testing.T) (*register.RouteAuthenticator, *register.Auther) {
	t.Helper()

	repo := NewMockRepositoryManager()
	tokens := register.NewTokenService([]byte("test-signing-key"), "test-app", nil)
	auther := register.NewAuthenticator(repo, tokens)

	guard, err := register.NewHTTPAuthenticator(auther, configStub{})
	require.NoError(t, err)
	return guard, auther
}

func TestProtectedRouteAcceptsAccessToken(t *testing.T) {
	guard, auther := newRouteGuard(t)

	pair, err := auther.TokenService().IssuePair(newTestIdentity())
	require.NoError(t, err)

	handlerCalled := false
	protected := guard.ProtectedRoute(configStub{}, guard.MakeAuthErrorHandler())
	handler := protected(func(c router.Context) error {
		handlerCalled = true
		return nil
	})

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer " + pair.AccessToken
	ctx.On("GetString", "Authorization", "").Return("Bearer " + pair.AccessToken)
	ctx.On("Locals", "user", mock.Anything).Return(nil).Maybe()

	require.NoError(t, handler(ctx))
	assert.True(t, handlerCalled)
}

func TestProtectedRouteRejectsRefreshToken(t *testing.T) {
	guard, auther := newRouteGuard(t)

	pair, err := auther.TokenService().IssuePair(newTestIdentity())
	require.NoError(t, err)

	protected := guard.ProtectedRoute(configStub{}, guard.MakeAuthErrorHandler())
	handler := protected(func(c router.Context) error {
		t.Fatal("handler must not run for a refresh token")
		return nil
	})

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer " + pair.RefreshToken
	ctx.On("GetString", "Authorization", "").Return("Bearer " + pair.RefreshToken)

	var payload map[string]any
	ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, handler(ctx))
	require.NotNil(t, payload)
	errBody := payload["error"].(map[string]any)
	assert.Equal(t, register.TextCodeTokenMalformed, errBody["text_code"])
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	guard, _ := newRouteGuard(t)

	protected := guard.ProtectedRoute(configStub{}, guard.MakeAuthErrorHandler())
	handler := protected(func(c router.Context) error {
		t.Fatal("handler must not run without a token")
		return nil
	})

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("")
	ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Return(nil)

	require.NoError(t, handler(ctx))
}

func TestRequireCompletedRegistrationBlocksScopedTokens(t *testing.T) {
	guard, _ := newRouteGuard(t)

	completed := guard.RequireCompletedRegistration()
	handler := completed(func(c router.Context) error {
		t.Fatal("handler must not run for a registration scoped token")
		return nil
	})

	ctx := router.NewMockContext()
	ctx.LocalsMock["user"] = &register.JWTClaims{
		UID:    "acc-1",
		Scopes: []string{register.ScopeRegistration},
	}

	var payload map[string]any
	ctx.On("JSON", router.StatusForbidden, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, handler(ctx))
	require.NotNil(t, payload)
	errBody := payload["error"].(map[string]any)
	assert.Equal(t, register.TextCodeIncompleteRegistration, errBody["text_code"])
}

func TestRequireCompletedRegistrationAllowsFullTokens(t *testing.T) {
	guard, _ := newRouteGuard(t)

	completed := guard.RequireCompletedRegistration()
	handlerCalled := false
	handler := completed(func(c router.Context) error {
		handlerCalled = true
		return nil
	})

	ctx := router.NewMockContext()
	ctx.LocalsMock["user"] = &register.JWTClaims{UID: "acc-1"}

	require.NoError(t, handler(ctx))
	assert.True(t, handlerCalled)
}

type recordingRegistrar struct {
	routes map[string]int
}

func newRecordingRegistrar() *recordingRegistrar {
	return &recordingRegistrar{routes: map[string]int{}}
}

func (r *recordingRegistrar) record(method, path string, mw []router.MiddlewareFunc) (ri router.RouteInfo) {
	r.routes[method+" "+path] = len(mw)
	return ri
}

func (r *recordingRegistrar) Get(path string, h router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	return r.record("GET", path, mw)
}

func (r *recordingRegistrar) Post(path string, h router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	return r.record("POST", path, mw)
}

func (r *recordingRegistrar) Put(path string, h router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	return r.record("PUT", path, mw)
}

func TestRegisterRoutesGuardsAuthenticatedEndpoints(t *testing.T) {
	guard, auther := newRouteGuard(t)
	controller := register.NewHTTPController(configStub{}, auther, guard, nil, nil, nil, nil, nil, nil, nil)

	reg := newRecordingRegistrar()
	controller.RegisterRoutes(reg)

	// every authenticated route sits behind the bearer guard, logout included
	assert.Equal(t, 1, reg.routes["POST /auth/verify"])
	assert.Equal(t, 1, reg.routes["GET /auth/verify/resend"])
	assert.Equal(t, 1, reg.routes["PUT /auth/profile"])
	assert.Equal(t, 1, reg.routes["PUT /auth/photo"])
	assert.Equal(t, 1, reg.routes["POST /auth/logout"])

	// password reset additionally requires a completed registration
	assert.Equal(t, 2, reg.routes["POST /auth/password/reset"])

	// public entry points take no middleware
	assert.Equal(t, 0, reg.routes["POST /auth/signup"])
	assert.Equal(t, 0, reg.routes["POST /auth/login"])
	assert.Equal(t, 0, reg.routes["POST /auth/login/refresh"])
	assert.Equal(t, 0, reg.routes["POST /auth/password/forgot"])
}

func TestWriteErrorRendersRichError(t *testing.T) {
	ctx := router.NewMockContext()

	var payload map[string]any
	ctx.On("JSON", router.StatusConflict, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, register.WriteError(ctx, nil, register.ErrDuplicateEmail))
	require.NotNil(t, payload)
	errBody := payload["error"].(map[string]any)
	assert.Equal(t, register.TextCodeDuplicateEmail, errBody["text_code"])
	assert.Equal(t, "email address is already registered", errBody["message"])
}

func TestWriteErrorWrapsPlainError(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.On("JSON", router.StatusInternalServerError, mock.Anything).Return(nil)

	require.NoError(t, register.WriteError(ctx, nil, errors.New("boom")))
	ctx.AssertExpectations(t)
}
