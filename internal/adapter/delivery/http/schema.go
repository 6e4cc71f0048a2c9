package http

import (
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/surl/internal/entity"
)

const statusError = "error"

// newLinkForm is the form-encoded body of POST /new.
type newLinkForm struct {
	URL string `json:"url" validate:"required"`
}

// newLinkResponse carries the full short URL returned by POST /new.
type newLinkResponse struct {
	URL string `json:"url"`
}

// shortenRequest is the JSON body of POST /api/v1/shorten.
// The URL is stored as submitted, so only its presence is checked.
type shortenRequest struct {
	URL string `json:"url" validate:"required"`
}

type linkResponse struct {
	ShortCode   string `json:"short_code"`
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
}

func toLinkResponse(link *entity.Link, website string) linkResponse {
	return linkResponse{
		ShortCode:   link.ShortCode,
		ShortURL:    website + link.ShortCode,
		OriginalURL: link.OriginalURL,
	}
}

type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	urlNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "url not found",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	default:
		return "invalid value"
	}
}

func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	errs, ok := err.(validator.ValidationErrors)
	if ok {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}

// emptyURLResponse mirrors the validator output for a usecase-level rejection.
var emptyURLResponse = errorResponse{
	Status:  statusError,
	Message: "validation error",
	Errors: []validationError{{
		Field:   "url",
		Message: messageForTag("required"),
	}},
}
