// Package errors provides categorized, contextual errors for the sync
// playback engine, independent of any outward-facing telemetry system.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrorCategory groups errors for logging and metrics purposes.
type ErrorCategory string

const (
	CategoryAudio         ErrorCategory = "audio-processing"
	CategoryValidation    ErrorCategory = "validation"
	CategoryState         ErrorCategory = "state"
	CategoryTimeout       ErrorCategory = "timeout"
	CategorySync          ErrorCategory = "sync-correction"
	CategoryCalibration   ErrorCategory = "calibration"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryResource      ErrorCategory = "system-resource"
	CategoryGeneric       ErrorCategory = "generic"
)

// ComponentUnknown is used when no component was supplied to the builder.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with component/category/context metadata.
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time

	mu sync.RWMutex
}

func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is supports errors.Is by category when the target is also an *EnhancedError.
func (ee *EnhancedError) Is(target error) bool {
	var other *EnhancedError
	if stderrors.As(target, &other) {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetContext returns a defensive copy of the error's context map.
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	if ee.Context == nil {
		return nil
	}
	out := make(map[string]any, len(ee.Context))
	maps.Copy(out, ee.Context)
	return out
}

// ErrorBuilder provides a fluent interface for constructing an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts building an enhanced error wrapping err (err may be nil, in
// which case Build wraps a generic "unspecified error").
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf is New(fmt.Errorf(format, args...)).
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build finalizes the error, applying defaults for unset fields.
func (eb *ErrorBuilder) Build() *EnhancedError {
	err := eb.err
	if err == nil {
		err = stderrors.New("unspecified error")
	}
	component := eb.component
	if component == "" {
		component = ComponentUnknown
	}
	category := eb.category
	if category == "" {
		category = CategoryGeneric
	}
	return &EnhancedError{
		Err:       err,
		Component: component,
		Category:  category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// Is is a package-level convenience wrapping errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is a package-level convenience wrapping errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
