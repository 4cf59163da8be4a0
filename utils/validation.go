package utils

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AllowedImageContentTypes is the set of allowed content types for image uploads.
var AllowedImageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// MaxUploadSize is the maximum allowed file size for uploads (5MB).
const MaxUploadSize = 5 << 20 // 5MB

// ValidateFileUpload checks that the uploaded file has a valid image content type
// and extension and does not exceed the maximum file size.
func ValidateFileUpload(fh *multipart.FileHeader) error {
	if fh.Size > MaxUploadSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of 5MB", fh.Size)
	}

	contentType := fh.Header.Get("Content-Type")
	if !AllowedImageContentTypes[contentType] {
		return fmt.Errorf("invalid file type '%s'; allowed types: image/jpeg, image/png, image/webp, image/gif", contentType)
	}

	if ext := strings.ToLower(filepath.Ext(fh.Filename)); !allowedImageExtensions[ext] {
		return fmt.Errorf("invalid file extension '%s'", ext)
	}

	return nil
}

// SanitizeValidationError takes a validator error and returns a user-friendly message
// without leaking internal Go struct names.
func SanitizeValidationError(err error) string {
	if err == nil {
		return ""
	}

	fields := FieldErrors(err)
	if len(fields) == 0 {
		return "Invalid request body"
	}

	var validationErrors validator.ValidationErrors
	errors.As(err, &validationErrors)

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fields[fieldName(fe)])
	}
	return strings.Join(messages, "; ")
}

// FieldErrors maps each failing field to a user-friendly message. Errors that
// are not validation errors yield an empty map.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return out
	}

	for _, fe := range validationErrors {
		field := fieldName(fe)
		switch fe.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "email":
			out[field] = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			out[field] = minMaxMessage(fe, "at least")
		case "max":
			out[field] = minMaxMessage(fe, "at most")
		case "gt":
			out[field] = fmt.Sprintf("%s must be greater than %s", field, fe.Param())
		case "gte":
			out[field] = fmt.Sprintf("%s must be %s or more", field, fe.Param())
		case "uuid", "uuid4":
			out[field] = fmt.Sprintf("%s must be a valid id", field)
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}

func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return "field"
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func minMaxMessage(fe validator.FieldError, bound string) string {
	field := fieldName(fe)
	if fe.Kind().String() == "string" {
		return fmt.Sprintf("%s must be %s %s characters", field, bound, fe.Param())
	}
	return fmt.Sprintf("%s must be %s %s", field, bound, fe.Param())
}
