package intake

import (
	"fmt"

	dErrors "cvintake/pkg/domain-errors"
)

// allowedTypes is the fixed MIME allow-list shared by every entry point that
// adds files: PDF, legacy Word, OOXML Word, and web image formats.
var allowedTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// AllowedTypes returns the allow-list for documentation surfaces.
func AllowedTypes() []string {
	out := make([]string, 0, len(allowedTypes))
	for t := range allowedTypes {
		out = append(out, t)
	}
	return out
}

// Validator gates candidate files by MIME type and size. The size threshold
// is configuration, not a constant: the API handler and interactive sessions
// run different limits under one policy.
type Validator struct {
	maxSize int64
}

// NewValidator creates a validator with the given max file size in bytes.
func NewValidator(maxSize int64) *Validator {
	return &Validator{maxSize: maxSize}
}

// MaxSize returns the configured threshold.
func (v *Validator) MaxSize() int64 { return v.maxSize }

// Validate returns nil for acceptable files and a coded domain error for
// rejections. Rejected files are never staged.
func (v *Validator) Validate(name, mime string, size int64) error {
	if _, ok := allowedTypes[mime]; !ok {
		return dErrors.New(dErrors.CodeUnsupportedMedia,
			"Only PDF, Word documents, and images (JPEG, PNG, GIF, WebP) are allowed")
	}
	if size > v.maxSize {
		return dErrors.New(dErrors.CodePayloadTooLarge,
			fmt.Sprintf("File size must be less than %dMB", v.maxSize>>20))
	}
	return nil
}
