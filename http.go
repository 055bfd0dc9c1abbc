package auth

import (
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	"github.com/nyaruka/phonenumbers"
)

// AuthControllerRoutes are the mount points for the JSON API.
type AuthControllerRoutes struct {
	Register string
	Login    string
	Refresh  string
	Revoke   string
}

// AuthController exposes the credential lifecycle over HTTP. It binds and
// validates payloads, calls the Auther, and maps error kinds to status
// codes; nothing else happens at this layer.
type AuthController struct {
	Logger Logger
	Auth   Authenticator
	Codec  TokenCodec
	Routes *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(auther Authenticator, codec TokenCodec, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Auth:   auther,
		Codec:  codec,
		Routes: &AuthControllerRoutes{
			Register: "/auth/register",
			Login:    "/auth/login",
			Refresh:  "/auth/refresh",
			Revoke:   "/auth/revoke",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = logger
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

// RegisterAuthRoutes mounts the auth endpoints. Revoke sits behind the
// bearer middleware; the token names the account being revoked.
func RegisterAuthRoutes(app fiber.Router, controller *AuthController) {
	app.Post(controller.Routes.Register, controller.RegisterPost)
	app.Post(controller.Routes.Login, controller.LoginPost)
	app.Post(controller.Routes.Refresh, controller.RefreshPost)
	app.Post(controller.Routes.Revoke, controller.RequireAuth, controller.RevokePost)
}

// RegistrationCreatePayload is the register request body
type RegistrationCreatePayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Phone     string `json:"phone_number"`
	Password  string `json:"password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Username, validation.Required, validation.Length(3, 60)),
		validation.Field(&r.Phone, validation.By(validPhoneNumber)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 200)),
	)
}

func validPhoneNumber(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}

	num, err := phonenumbers.Parse(raw, "")
	if err != nil {
		return err
	}

	if !phonenumbers.IsValidNumber(num) {
		return validation.NewError("validation_phone", "must be a valid phone number")
	}

	return nil
}

// LoginRequestPayload is the login request body
type LoginRequestPayload struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// Validate will validate the payload
func (r LoginRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// RefreshRequestPayload is the refresh request body
type RefreshRequestPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Validate will validate the payload
func (r RefreshRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AccessToken, validation.Required),
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *AuthController) RegisterPost(c *fiber.Ctx) error {
	payload := RegistrationCreatePayload{}
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "unable to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  err,
		})
	}

	err := a.Auth.Register(c.UserContext(), RegisterPayload{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Username:  payload.Username,
		Phone:     payload.Phone,
		Password:  payload.Password,
	})
	if err != nil {
		return a.renderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "registration successful",
	})
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := LoginRequestPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "unable to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  err,
		})
	}

	token, err := a.Auth.Login(c.UserContext(), payload.Email, payload.Password, payload.RememberMe)
	if err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "login successful",
		"token":   token,
	})
}

func (a *AuthController) RefreshPost(c *fiber.Ctx) error {
	payload := RefreshRequestPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "unable to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  err,
		})
	}

	token, err := a.Auth.RefreshToken(c.UserContext(), payload.AccessToken, payload.RefreshToken)
	if err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "token refreshed successfully",
		"token":   token,
	})
}

func (a *AuthController) RevokePost(c *fiber.Ctx) error {
	claims, ok := c.Locals(claimsLocalKey).(AuthClaims)
	if !ok || claims.Username() == "" {
		return unauthorized(c)
	}

	revoked, err := a.Auth.RevokeToken(c.UserContext(), claims.Username())
	if err != nil {
		return a.renderError(c, err)
	}

	if !revoked {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "failed to revoke token",
		})
	}

	return c.JSON(fiber.Map{
		"message": "token revoked successfully",
	})
}

const claimsLocalKey = "auth_claims"

// RequireAuth verifies the bearer token on the request and stashes the
// verified claims for downstream handlers.
func (a *AuthController) RequireAuth(c *fiber.Ctx) error {
	raw := bearerToken(c.Get(fiber.HeaderAuthorization))
	if raw == "" {
		return unauthorized(c)
	}

	claims, err := a.Codec.Validate(raw)
	if err != nil {
		a.Logger.Debug("bearer token rejected: %v", err)
		return unauthorized(c)
	}

	c.Locals(claimsLocalKey, claims)
	c.SetUserContext(WithClaimsContext(c.UserContext(), claims))

	return c.Next()
}

func bearerToken(header string) string {
	const scheme = "Bearer "
	if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		return header[len(scheme):]
	}
	return ""
}

func (a *AuthController) renderError(c *fiber.Ctx, err error) error {
	switch {
	case IsAccountBlocked(err):
		if remaining, ok := BlockedRemaining(err); ok {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(remaining/time.Second)))
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"message": err.Error(),
			"code":    TextCodeAccountBlocked,
		})

	case IsInvalidCredentials(err), IsInvalidToken(err):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": err.Error(),
		})

	case hasTextCode(err, TextCodeDuplicateEmail), hasTextCode(err, TextCodeDuplicateUsername):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": err.Error(),
		})

	case IsStoreUnavailable(err), IsConcurrentUpdate(err):
		a.Logger.Error("store failure serving auth request: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "service temporarily unavailable",
		})

	default:
		a.Logger.Error("unexpected auth error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal error",
		})
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": message,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": "invalid or missing credentials",
	})
}
