package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

const (
	// MaxNodeNameLength is the maximum length for asset and folder names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxNodeNameLength = 255

	// MaxLinkLength is the maximum length for a link attribute.
	MaxLinkLength = 2048

	// DefaultMaxDepth bounds how deep a dropped folder is walked.
	DefaultMaxDepth = 10

	// DefaultMaxFiles is the ceiling on files in a single batch.
	DefaultMaxFiles = 100

	// DefaultMaxFileSize is 5 MiB.
	DefaultMaxFileSize int64 = 5 << 20
)

// DefaultAllowedContentTypes is the image allow-list.
var DefaultAllowedContentTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"image/svg+xml",
	"image/bmp",
	"image/avif",
}

// Limits are the constraints the entry scanner enforces during a walk.
type Limits struct {
	MaxDepth            int      `yaml:"max_depth"`
	MaxFiles            int      `yaml:"max_files"`
	MaxFileSize         int64    `yaml:"max_file_size"`
	AllowedContentTypes []string `yaml:"allowed_content_types"`
}

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:            DefaultMaxDepth,
		MaxFiles:            DefaultMaxFiles,
		MaxFileSize:         DefaultMaxFileSize,
		AllowedContentTypes: slices.Clone(DefaultAllowedContentTypes),
	}
}

// Validate checks the limits are usable.
func (l Limits) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.MaxDepth, validation.Required, validation.Min(1)),
		validation.Field(&l.MaxFiles, validation.Required, validation.Min(1)),
		validation.Field(&l.MaxFileSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&l.AllowedContentTypes, validation.Required),
	)
}

// Allows reports whether a content type is on the allow-list.
// Parameters such as "; charset=utf-8" are ignored.
func (l Limits) Allows(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	for _, allowed := range l.AllowedContentTypes {
		if strings.EqualFold(allowed, mediaType) {
			return true
		}
	}
	return false
}

// LoadLimitsFile overlays values from a YAML file onto base.
// Keys missing from the file keep their base value.
func LoadLimitsFile(path string, base Limits) (Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read limits file: %w", err)
	}

	limits := base
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return base, fmt.Errorf("parse limits file: %w", err)
	}
	if err := limits.Validate(); err != nil {
		return base, fmt.Errorf("invalid limits in %s: %w", path, err)
	}
	return limits, nil
}
