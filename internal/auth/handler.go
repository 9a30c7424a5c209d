package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/authfront/authfront/internal/identity"
)

const (
	detailDuplicateUser      = "Username already registered"
	detailInvalidCredentials = "Incorrect username or password"
	detailInvalidToken       = "Invalid token"

	// LocalsUsername is the fiber.Ctx locals key holding the authenticated subject.
	LocalsUsername = "username"
)

// Recorder observes the outcome of each auth operation.
type Recorder interface {
	Observe(operation, outcome string)
}

// Handler exposes the register, token, and verify endpoints.
type Handler struct {
	svc      *Service
	recorder Recorder
}

// NewHandler builds the auth HTTP handler. recorder may be nil.
func NewHandler(svc *Service, recorder Recorder) *Handler {
	return &Handler{svc: svc, recorder: recorder}
}

type credentialsRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// credentials copies the parsed fields out of the request buffer, which
// fasthttp reuses once the handler returns.
func (r credentialsRequest) credentials() identity.Credentials {
	return identity.Credentials{
		Username: strings.Clone(r.Username),
		Password: strings.Clone(r.Password),
	}
}

// Register handles POST /register.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		h.observe("register", ErrInvalidRequest)
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}

	marker, err := h.svc.Register(c.UserContext(), req.credentials())
	h.observe("register", err)
	switch {
	case errors.Is(err, ErrDuplicateUser):
		return fiber.NewError(http.StatusBadRequest, detailDuplicateUser)
	case errors.Is(err, ErrInvalidRequest):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}
	return c.Status(http.StatusOK).JSON(marker)
}

// Token handles POST /token. The body is normally form-encoded, as OAuth2
// password-grant clients send it, but JSON is accepted too.
func (h *Handler) Token(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		h.observe("login", ErrInvalidRequest)
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}

	token, err := h.svc.Login(c.UserContext(), req.credentials())
	h.observe("login", err)
	if errors.Is(err, ErrInvalidCredentials) {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return fiber.NewError(http.StatusUnauthorized, detailInvalidCredentials)
	}
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(token)
}

// VerifyToken handles GET /verify_token/:token.
func (h *Handler) VerifyToken(c *fiber.Ctx) error {
	username, err := h.svc.VerifyToken(c.UserContext(), c.Params("token"))
	h.observe("verify", err)
	if err != nil {
		return fiber.NewError(http.StatusForbidden, detailInvalidToken)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":  "Token is valid",
		"username": username,
	})
}

// Me handles GET /users/me behind the bearer middleware.
func (h *Handler) Me(c *fiber.Ctx) error {
	username, _ := c.Locals(LocalsUsername).(string)
	if username == "" {
		return fiber.NewError(http.StatusForbidden, detailInvalidToken)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"username": username})
}

func (h *Handler) observe(operation string, err error) {
	if h.recorder == nil {
		return
	}
	h.recorder.Observe(operation, Outcome(err))
}

// Outcome classifies an auth error into a stable label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateUser):
		return "duplicate_user"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "error"
	}
}
