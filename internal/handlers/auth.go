package handlers

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/phoneauth/internal/middleware"
	"github.com/example/phoneauth/internal/services"
)

var phonePattern = regexp.MustCompile(`^(\+91[\-\s]?)?[6-9]\d{9}$`)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type generateOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// GenerateOTP issues a fresh code for a phone number.
func (h *AuthHandler) GenerateOTP(c *fiber.Ctx) error {
	var req generateOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	phone := strings.TrimSpace(req.PhoneNumber)
	if errs := validatePhone(phone); errs != nil {
		return errs
	}

	result, err := h.auth.RequestOTP(c.UserContext(), phone)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, fiber.Map{"userId": result.UserID}, result.Message)
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

// VerifyOTP consumes a code and returns a session token.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	phone := strings.TrimSpace(req.PhoneNumber)
	errs := validatePhone(phone)
	if strings.TrimSpace(req.OTP) == "" {
		errs = append(errs, FieldError{Field: "otp", Message: "otp is required"})
	}
	if errs != nil {
		return errs
	}

	result, err := h.auth.VerifyOTP(c.UserContext(), phone, strings.TrimSpace(req.OTP))
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, result, "otp verified")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an email and password identity.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var errs ValidationErrors
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		errs = append(errs, FieldError{Field: "email", Message: "a valid email is required"})
	}
	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	if errs != nil {
		return errs
	}

	result, err := h.auth.Login(c.UserContext(), email, req.Password)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, result, "login successful")
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized access")
	}
	return respond(c, fiber.StatusOK, principal, "")
}

// VerifyStatus reports the account status of a user.
func (h *AuthHandler) VerifyStatus(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return ValidationErrors{{Field: "userId", Message: "must be a uuid"}}
	}

	status, err := h.auth.UserStatus(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, fiber.Map{"status": status}, "")
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus changes the status of an identity. Admin only.
func (h *AuthHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ValidationErrors{{Field: "id", Message: "must be a uuid"}}
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	status := strings.ToLower(strings.TrimSpace(req.Status))
	if err := h.auth.SetStatus(c.UserContext(), id, status); err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, fiber.Map{"id": id, "status": status}, "status updated")
}

// MarkOnboarded records that the caller finished onboarding.
func (h *AuthHandler) MarkOnboarded(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized access")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ValidationErrors{{Field: "id", Message: "must be a uuid"}}
	}
	if id != principal.IdentityID {
		return fiber.NewError(fiber.StatusForbidden, "cannot onboard another identity")
	}

	if err := h.auth.MarkOnboarded(c.UserContext(), principal.UserID.String(), id.String()); err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, fiber.Map{"onboarded": true}, "onboarding recorded")
}

func validatePhone(phone string) ValidationErrors {
	switch {
	case phone == "":
		return ValidationErrors{{Field: "phoneNumber", Message: "phone number is required"}}
	case !phonePattern.MatchString(phone):
		return ValidationErrors{{Field: "phoneNumber", Message: "Invalid Indian phone number"}}
	}
	return nil
}
