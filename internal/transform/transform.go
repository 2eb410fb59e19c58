// Package transform holds composable edits of a payslip request. Compare
// builds its what-if alternatives from them and the CLI parses them from
// "name:key=value,..." specs.
package transform

import (
	"fmt"

	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
)

// RequestTransform modifies a payslip request in a predictable way
type RequestTransform interface {
	// Apply returns a modified copy of base; base is never mutated.
	Apply(base *domain.PayslipRequest) (*domain.PayslipRequest, error)

	// Name returns a short identifier such as "raise_gross"
	Name() string

	Description() string

	// Validate checks the parameters against base without applying them
	Validate(base *domain.PayslipRequest) error
}

// ApplyTransforms applies transforms in order, each receiving the output of
// the previous one
func ApplyTransforms(base *domain.PayslipRequest, transforms []RequestTransform) (*domain.PayslipRequest, error) {
	if base == nil {
		return nil, fmt.Errorf("base request cannot be nil")
	}

	current := DeepCopy(base)
	for i, t := range transforms {
		if t == nil {
			return nil, fmt.Errorf("transform at index %d is nil", i)
		}
		if err := t.Validate(current); err != nil {
			return nil, fmt.Errorf("transform %s validation failed: %w", t.Name(), err)
		}
		next, err := t.Apply(current)
		if err != nil {
			return nil, fmt.Errorf("transform %s failed: %w", t.Name(), err)
		}
		current = next
	}
	return current, nil
}

// DeepCopy copies a request including its slices and maps
func DeepCopy(r *domain.PayslipRequest) *domain.PayslipRequest {
	c := *r
	c.Components = append([]domain.ComponentKey(nil), r.Components...)
	if r.Overrides != nil {
		c.Overrides = make(map[domain.ComponentKey]string, len(r.Overrides))
		for k, v := range r.Overrides {
			c.Overrides[k] = v
		}
	}
	if r.BasisValues != nil {
		c.BasisValues = make(map[domain.ComponentKey]decimal.Decimal, len(r.BasisValues))
		for k, v := range r.BasisValues {
			c.BasisValues[k] = v
		}
	}
	if r.Bases != nil {
		c.Bases = make(map[domain.ComponentKey]decimal.Decimal, len(r.Bases))
		for k, v := range r.Bases {
			c.Bases[k] = v
		}
	}
	return &c
}

// TransformError represents an error that occurred during transformation
type TransformError struct {
	TransformName string
	Operation     string
	Reason        string
	Err           error
}

func (e *TransformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transform %s (%s): %s: %v", e.TransformName, e.Operation, e.Reason, e.Err)
	}
	return fmt.Sprintf("transform %s (%s): %s", e.TransformName, e.Operation, e.Reason)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// NewTransformError creates a new TransformError
func NewTransformError(transformName, operation, reason string, err error) error {
	return &TransformError{
		TransformName: transformName,
		Operation:     operation,
		Reason:        reason,
		Err:           err,
	}
}
