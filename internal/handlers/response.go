package handlers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/phoneauth/internal/apperror"
)

// envelope is the body shape of every response.
type envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Message   string      `json:"message"`
	Errors    interface{} `json:"errors"`
	Timestamp string      `json:"timestamp"`
}

func respond(c *fiber.Ctx, status int, data interface{}, message string) error {
	return c.Status(status).JSON(envelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func fail(c *fiber.Ctx, status int, message string, errs interface{}) error {
	return c.Status(status).JSON(envelope{
		Success:   false,
		Message:   message,
		Errors:    errs,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// FieldError names one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned by handlers when the request body is invalid.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ErrorHandler renders errors returned by handlers and middleware in the
// response envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fieldErrs ValidationErrors
	if errors.As(err, &fieldErrs) {
		return fail(c, fiber.StatusBadRequest, "Validation failed", fieldErrs)
	}

	if appErr, ok := apperror.As(err); ok {
		status := appErr.HTTPStatus()
		if status >= fiber.StatusInternalServerError {
			log.Printf("[http] %s %s: %v", c.Method(), c.Path(), err)
		}
		return fail(c, status, appErr.Message, nil)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fail(c, fiberErr.Code, fiberErr.Message, nil)
	}

	log.Printf("[http] %s %s: %v", c.Method(), c.Path(), err)
	return fail(c, fiber.StatusInternalServerError, "Internal Server Error", nil)
}
