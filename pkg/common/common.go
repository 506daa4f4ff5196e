package common

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrLoanNotFound   = errors.New("loan not found")
	ErrMemberNotFound = errors.New("member not found or inactive")
	ErrChargeNotFound = errors.New("charge not found")

	ErrInvalidLoanState    = errors.New("operation not allowed in current loan status")
	ErrOutstandingBalance  = errors.New("loan still has an outstanding balance")
	ErrMinTenureNotReached = errors.New("minimum weeks before closure not reached")
	ErrTermsLocked         = errors.New("loan terms are locked once payments exist")

	ErrMemberHasActiveLoan = errors.New("member already has an active loan")
	ErrDuplicateAccountNo  = errors.New("loan account number already exists")

	ErrChargeFullyCollected = errors.New("charge already fully collected")
	ErrChargeOverpayment    = errors.New("amount exceeds pending charge")
	ErrInvalidAmount        = errors.New("amount must be positive")

	ErrAllocationInvariant = errors.New("allocation produced a negative remainder")
)

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func SuccessResponse(c *fiber.Ctx, statusCode int, data any) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status": "success",
		"data":   data,
	})
}

func ErrorResponse(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  "error",
		"message": message,
	})
}
