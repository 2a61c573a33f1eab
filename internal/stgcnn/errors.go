package stgcnn

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrEvenKernel    = errors.New("temporal kernel size must be odd")
	ErrShapeMismatch = errors.New("shape mismatch")
)

// panicShape aborts a forward pass whose inputs violate a shape contract.
// The panic value is an error wrapping ErrShapeMismatch.
func panicShape(component, format string, args ...any) {
	panic(fmt.Errorf("%s: %w: %s", component, ErrShapeMismatch, fmt.Sprintf(format, args...)))
}
