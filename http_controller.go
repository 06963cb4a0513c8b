package register

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPControllerRoutes holds the route paths for the JSON API.
type HTTPControllerRoutes struct {
	Signup         string
	Verify         string
	ResendCode     string
	Profile        string
	Photo          string
	Login          string
	Refresh        string
	Logout         string
	PasswordForgot string
	PasswordReset  string
}

// HTTPController exposes the registration and authentication flows as a
// JSON API. Registration scoped tokens are accepted only on the routes
// that finish registration.
type HTTPController struct {
	Debug        bool
	Logger       Logger
	Config       Config
	Routes       *HTTPControllerRoutes
	Auther       *Auther
	Guard        *RouteAuthenticator
	Signup       *SignupHandler
	Verify       *VerifyCodeHandler
	Resend       *ResendCodeHandler
	Profile      *CompleteProfileHandler
	Photo        *AttachPhotoHandler
	ResetInit    *InitializePasswordResetHandler
	ResetFinal   *FinalizePasswordResetHandler
	ErrorHandler router.ErrorHandler
}

type HTTPControllerOption func(*HTTPController) *HTTPController

func WithControllerLogger(logger Logger) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.Debug = debug
		return c
	}
}

func WithControllerErrorHandler(handler router.ErrorHandler) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

// NewHTTPController builds the JSON controller. The auther, guard, config
// and every command handler are required.
func NewHTTPController(cfg Config, auther *Auther, guard *RouteAuthenticator, signup *SignupHandler, verify *VerifyCodeHandler, resend *ResendCodeHandler, profile *CompleteProfileHandler, photo *AttachPhotoHandler, resetInit *InitializePasswordResetHandler, resetFinal *FinalizePasswordResetHandler, opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		Logger:     defLogger{},
		Config:     cfg,
		Auther:     auther,
		Guard:      guard,
		Signup:     signup,
		Verify:     verify,
		Resend:     resend,
		Profile:    profile,
		Photo:      photo,
		ResetInit:  resetInit,
		ResetFinal: resetFinal,
		Routes: &HTTPControllerRoutes{
			Signup:         "/auth/signup",
			Verify:         "/auth/verify",
			ResendCode:     "/auth/verify/resend",
			Profile:        "/auth/profile",
			Photo:          "/auth/photo",
			Login:          "/auth/login",
			Refresh:        "/auth/login/refresh",
			Logout:         "/auth/logout",
			PasswordForgot: "/auth/password/forgot",
			PasswordReset:  "/auth/password/reset",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Auther in registration controller...")
	}

	if c.Guard == nil {
		panic("Missing RouteAuthenticator in registration controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = func(ctx router.Context, err error) error {
			return WriteError(ctx, c.Logger, err)
		}
	}

	return c
}

// RegisterRoutes mounts the JSON API. Routes behind the bearer guard see
// both registration scoped and full tokens; password reset additionally
// requires a completed registration.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	authErr := c.Guard.MakeAuthErrorHandler()
	protected := c.Guard.ProtectedRoute(c.Config, authErr)
	completed := c.Guard.RequireCompletedRegistration()

	group.Post(c.Routes.Signup, c.SignupPost)
	group.Post(c.Routes.Verify, c.VerifyPost, protected)
	group.Get(c.Routes.ResendCode, c.ResendCodeGet, protected)
	group.Put(c.Routes.Profile, c.ProfilePut, protected)
	group.Put(c.Routes.Photo, c.PhotoPut, protected)
	group.Post(c.Routes.Login, c.LoginPost)
	group.Post(c.Routes.Refresh, c.RefreshPost)
	group.Post(c.Routes.Logout, c.LogoutPost, protected)
	group.Post(c.Routes.PasswordForgot, c.PasswordForgotPost)
	group.Post(c.Routes.PasswordReset, c.PasswordResetPost, protected, completed)
}

// SignupRequest payload
type SignupRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// SignupPost creates a NEW account and sends the first verification code.
// The issued token pair carries the registration scope.
func (c *HTTPController) SignupPost(ctx router.Context) error {
	payload := new(SignupRequest)

	if err := ctx.Bind(payload); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	if c.Debug {
		fmt.Println("======= AUTH SIGNUP ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("==========================")
	}

	var res *SignupResponse
	msg := SignupMessage{
		Email: payload.Email,
		OnResponse: func(resp *SignupResponse) {
			res = resp
		},
	}

	if err := c.Signup.Execute(ctx.Context(), msg); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, map[string]any{
		"account": res.Account,
		"tokens":  res.Tokens,
	})
}

// VerifyRequest payload
type VerifyRequest struct {
	Code string `form:"code" json:"code"`
}

// Validate will run validation rules
func (r VerifyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required, validation.Length(4, 4), is.Digit),
	)
}

// VerifyPost confirms the submitted code for the authenticated account.
func (c *HTTPController) VerifyPost(ctx router.Context) error {
	accountID, err := c.accountIDFromToken(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	payload := new(VerifyRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	var res *VerifyCodeResponse
	msg := VerifyCodeMessage{
		AccountID: accountID,
		Code:      payload.Code,
		OnResponse: func(resp *VerifyCodeResponse) {
			res = resp
		},
	}

	if err := c.Verify.Execute(ctx.Context(), msg); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"account": res.Account,
		"tokens":  res.Tokens,
	})
}

// ResendCodeGet issues a fresh verification code for the authenticated
// account, subject to the single active code rule.
func (c *HTTPController) ResendCodeGet(ctx router.Context) error {
	accountID, err := c.accountIDFromToken(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	var res *ResendCodeResponse
	msg := ResendCodeMessage{
		AccountID: accountID,
		OnResponse: func(resp *ResendCodeResponse) {
			res = resp
		},
	}

	if err := c.Resend.Execute(ctx.Context(), msg); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success":    res.Success,
		"expires_at": res.Code.ExpiresAt,
	})
}

// ProfileRequest payload
type ProfileRequest struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Username        string `form:"username" json:"username"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will run validation rules
func (r ProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

// ProfilePut completes the profile for the authenticated account and
// returns the first fully scoped token pair.
func (c *HTTPController) ProfilePut(ctx router.Context) error {
	accountID, err := c.accountIDFromToken(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	payload := new(ProfileRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	var res *CompleteProfileResponse
	msg := CompleteProfileMessage{
		AccountID:       accountID,
		FirstName:       payload.FirstName,
		LastName:        payload.LastName,
		Username:        payload.Username,
		Phone:           payload.Phone,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
		OnResponse: func(resp *CompleteProfileResponse) {
			res = resp
		},
	}

	if err := c.Profile.Execute(ctx.Context(), msg); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"account": res.Account,
		"tokens":  res.Tokens,
	})
}

// PhotoRequest payload
type PhotoRequest struct {
	Photo string `form:"photo" json:"photo"`
}

// Validate will run validation rules
func (r PhotoRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Photo, validation.Required),
	)
}

// PhotoPut stores a photo reference for the authenticated account.
func (c *HTTPController) PhotoPut(ctx router.Context) error {
	accountID, err := c.accountIDFromToken(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	payload := new(PhotoRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	var res *AttachPhotoResponse
	msg := AttachPhotoMessage{
		AccountID: accountID,
		Photo:     payload.Photo,
		OnResponse: func(resp *AttachPhotoResponse) {
			res = resp
		},
	}

	if err := c.Photo.Execute(ctx.Context(), msg); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"account": res.Account,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// Validate will run validation rules. The identifier is an email or a
// username so only presence is checked here.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// LoginPost authenticates credentials and returns a full token pair.
func (c *HTTPController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	result, err := c.Auther.Login(ctx.Context(), payload.Identifier, payload.Password)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"account_id": result.Account.ID,
		"full_name":  result.FullName,
		"status":     result.Status,
		"tokens":     result.Tokens,
	})
}

// RefreshRequest payload
type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// RefreshPost exchanges a refresh token for a new access token.
func (c *HTTPController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	pair, err := c.Auther.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"tokens": pair,
	})
}

// LogoutPost revokes the presented refresh token.
func (c *HTTPController) LogoutPost(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	if err := c.Auther.Logout(ctx.Context(), payload.RefreshToken); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success": true,
	})
}

// PasswordForgotRequest payload
type PasswordForgotRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r PasswordForgotRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// PasswordForgotPost starts the reset flow by mailing a code to the
// account's email.
func (c *HTTPController) PasswordForgotPost(ctx router.Context) error {
	payload := new(PasswordForgotRequest)

	if err := ctx.Bind(payload); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	var res *InitializePasswordResetResponse
	msg := InitializePasswordResetMessage{
		Email: payload.Email,
		OnResponse: func(resp *InitializePasswordResetResponse) {
			res = resp
		},
	}

	if err := c.ResetInit.Execute(ctx.Context(), msg); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"account_id": res.AccountID,
		"success":    res.Success,
	})
}

// PasswordResetRequest payload
type PasswordResetRequest struct {
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will run validation rules
func (r PasswordResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

// PasswordResetPost replaces the password for the authenticated account.
func (c *HTTPController) PasswordResetPost(ctx router.Context) error {
	accountID, err := c.accountIDFromToken(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	payload := new(PasswordResetRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return c.handleError(ctx, invalidPayload(err))
	}

	var res *FinalizePasswordResetResponse
	msg := FinalizePasswordResetMessage{
		AccountID:       accountID,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
		OnResponse: func(resp *FinalizePasswordResetResponse) {
			res = resp
		},
	}

	if err := c.ResetFinal.Execute(ctx.Context(), msg); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"id":      res.AccountID,
		"success": res.Success,
	})
}

func (c *HTTPController) accountIDFromToken(ctx router.Context) (uuid.UUID, error) {
	raw, ok := AccountIDFromRouter(ctx, c.Config.GetContextKey())
	if !ok {
		return uuid.Nil, ErrTokenMalformed
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrTokenMalformed
	}

	return id, nil
}

func (c *HTTPController) handleError(ctx router.Context, err error) error {
	return c.ErrorHandler(ctx, err)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
