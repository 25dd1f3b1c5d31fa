package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)

	ErrUnknownFeature  = errors.New("unknown feature")
	ErrEmptyFeatureSet = errors.New("feature set is empty")
	ErrLeakage         = errors.New("data leakage detected")
)

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewLeakageError(trainMax, testMin string) error {
	return fmt.Errorf("%w: train ends %s after test starts %s", ErrLeakage, trainMax, testMin)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
