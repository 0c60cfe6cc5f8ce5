package validator

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// All reports every non-nil error in errs, or nil if there is none.
func All(errs ...error) error {
	return errors.Join(errs...)
}

type Validatable interface {
	Validate() error
}

func Each[T Validatable](items []T, description string) error {
	var errs []error
	for i, item := range items {
		if err := item.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s[%d]: %w", description, i, err))
		}
	}
	return errors.Join(errs...)
}

func Map[T any](items []T, f func(T, string) error, description string) error {
	for i, item := range items {
		if err := f(item, fmt.Sprintf("%s[%d]", description, i)); err != nil {
			return err
		}
	}
	return nil
}

func MapDict[T any](items map[string]T, f func(string, T) error, description string) error {
	for key, item := range items {
		if err := f(key, item); err != nil {
			return fmt.Errorf("%s: %w", description, err)
		}
	}
	return nil
}

func NotEmpty(field, description string) error {
	if field == "" {
		return fmt.Errorf("%s must not be empty", description)
	}
	return nil
}

func Positive(n int, description string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", description, n)
	}
	return nil
}

func NoDuplicates[T comparable](slice []T, description string) error {
	seen := make(map[T]struct{})
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%s contains duplicate value: %v", description, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func MatchesAllowed[T comparable](field T, allowed []T, description string) error {
	if !slices.Contains(allowed, field) {
		return fmt.Errorf("%s must be one of %v, got %v", description, allowed, field)
	}
	return nil
}

// HasExtension checks that a file name ends in one of the given extensions.
func HasExtension(field string, exts []string, description string) error {
	for _, ext := range exts {
		if strings.HasSuffix(field, ext) {
			return nil
		}
	}
	return fmt.Errorf("%s must end in one of %v, got %q", description, exts, field)
}
