package handlers

import (
	"crypto/subtle"
	"log"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/app/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AuthHandlerInterface defines the contract for auth handlers
type AuthHandlerInterface interface {
	IssueToken(c fiber.Ctx) error
}

// AuthHandler exchanges the shared console key for a JWT
type AuthHandler struct {
	tokenService services.TokenService
	consoleKey   string
	tokenTTLSecs int64
	validator    *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(tokenService services.TokenService, consoleKey string, tokenTTLSecs int64) *AuthHandler {
	return &AuthHandler{
		tokenService: tokenService,
		consoleKey:   consoleKey,
		tokenTTLSecs: tokenTTLSecs,
		validator:    validator.New(),
	}
}

// IssueToken validates the console key and returns a bearer token
func (h *AuthHandler) IssueToken(c fiber.Ctx) error {
	var req dto.IssueTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
			Success: false,
			Message: "Invalid request body",
			Error:   dto.ErrorDetail{Code: "INVALID_REQUEST"},
		})
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
			Success: false,
			Message: "Validation failed",
			Error:   dto.ErrorDetail{Code: "VALIDATION_ERROR", Details: validationErrors},
		})
	}

	if subtle.ConstantTimeCompare([]byte(req.ConsoleKey), []byte(h.consoleKey)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Invalid console key",
			Error:   dto.ErrorDetail{Code: "INVALID_CONSOLE_KEY"},
		})
	}

	token, err := h.tokenService.GenerateToken(req.Operator)
	if err != nil {
		log.Println("Token generation failed", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Token generation failed",
			Error:   dto.ErrorDetail{Code: "TOKEN_GENERATION_FAILED"},
		})
	}

	return c.Status(fiber.StatusOK).JSON(dto.APIResponse{
		Success: true,
		Message: "Token issued successfully",
		Data: dto.IssueTokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   h.tokenTTLSecs,
		},
	})
}
