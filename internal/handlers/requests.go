package handlers

import (
	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the go-playground/validator library to implement
// Echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// PublishRequest is the DTO for the HTTP publish endpoint. It mirrors
// the WebSocket publish payload.
type PublishRequest struct {
	Topic string `json:"topic" validate:"required"`
	Data  string `json:"data"`
}
