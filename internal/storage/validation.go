// Package storage persists pieces, their images and committed annotations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrInvalidID         = errors.New("id must be positive")
	ErrInvalidAnnotation = errors.New("invalid annotation")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateLabel rejects labels that could not name a single directory.
func validateLabel(label string) error {
	if err := validateString(label, "label"); err != nil {
		return err
	}
	if strings.ContainsAny(label, `/\`) || strings.Contains(label, "..") {
		return common.InvalidPrecondition("validate label", "label %q is not a single path element", label)
	}
	return nil
}

func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s=%d", ErrInvalidID, paramName, id)
	}
	return nil
}

func validateAnnotation(a *model.Annotation) error {
	if a.ImageID <= 0 {
		return fmt.Errorf("%w: image id %d", ErrInvalidAnnotation, a.ImageID)
	}
	if strings.TrimSpace(a.LabelFile) == "" {
		return fmt.Errorf("%w: empty label file name", ErrInvalidAnnotation)
	}
	if a.Width <= 0 || a.Height <= 0 {
		return fmt.Errorf("%w: size %gx%g", ErrInvalidAnnotation, a.Width, a.Height)
	}
	return nil
}
