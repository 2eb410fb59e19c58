package domain

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
)

// Sentinel errors, use with errors.Is. The structured error types below
// unwrap to one of these.
var (
	// ErrNoEffectiveFormula means no formula of a group could be resolved
	ErrNoEffectiveFormula = errors.New("no effective formula")

	// ErrInvalidOverride means a requested override formula cannot be used
	ErrInvalidOverride = errors.New("invalid formula override")

	// ErrMalformedFormulaData means catalog data is internally inconsistent
	ErrMalformedFormulaData = errors.New("malformed formula data")

	// ErrReliefBasisUnavailable means a relief needs a basis the caller did not supply
	ErrReliefBasisUnavailable = errors.New("relief basis unavailable")

	// ErrFormulaNotFound means no formula has the requested ID
	ErrFormulaNotFound = errors.New("formula not found")

	// ErrFormulaNotCurrent is returned when deactivating a formula that is not current
	ErrFormulaNotCurrent = errors.New("formula is not current")

	// ErrDuplicateFormula is returned when adding a formula whose ID already exists
	ErrDuplicateFormula = errors.New("duplicate formula id")

	// ErrConcurrentActivation means a compare-and-activate lost the race
	ErrConcurrentActivation = errors.New("concurrent activation detected")

	// ErrUnknownComponent means a payslip component has no registered formula group
	ErrUnknownComponent = errors.New("unknown payslip component")
)

// NoEffectiveFormulaError reports that nothing in the catalog matches a group
type NoEffectiveFormulaError struct {
	Group GroupKey
	Date  civil.Date
}

func (e *NoEffectiveFormulaError) Error() string {
	if e.Date == (civil.Date{}) {
		return fmt.Sprintf("no effective formula for %s", e.Group)
	}
	return fmt.Sprintf("no effective formula for %s on %s", e.Group, e.Date)
}

func (e *NoEffectiveFormulaError) Unwrap() error { return ErrNoEffectiveFormula }

// InvalidOverrideError explains why an override formula was rejected
type InvalidOverrideError struct {
	OverrideID string
	Group      GroupKey
	Date       civil.Date
	Reason     string
}

func (e *InvalidOverrideError) Error() string {
	return fmt.Sprintf("override %s rejected for %s on %s: %s", e.OverrideID, e.Group, e.Date, e.Reason)
}

func (e *InvalidOverrideError) Unwrap() error { return ErrInvalidOverride }

// MalformedFormulaDataError points at the formula and tier that failed validation.
// TierIndex is -1 when the problem is not tier specific.
type MalformedFormulaDataError struct {
	FormulaID string
	Version   string
	TierIndex int
	Reason    string
}

func (e *MalformedFormulaDataError) Error() string {
	if e.TierIndex < 0 {
		return fmt.Sprintf("formula %s (%s): %s", e.FormulaID, e.Version, e.Reason)
	}
	return fmt.Sprintf("formula %s (%s) tier %d: %s", e.FormulaID, e.Version, e.TierIndex, e.Reason)
}

func (e *MalformedFormulaDataError) Unwrap() error { return ErrMalformedFormulaData }

// ReliefBasisUnavailableError is returned when a BasicBenefits relief has no basis value
type ReliefBasisUnavailableError struct {
	FormulaID string
	Basis     ReliefBasis
}

func (e *ReliefBasisUnavailableError) Error() string {
	return fmt.Sprintf("formula %s: relief requires a %s basis value", e.FormulaID, e.Basis)
}

func (e *ReliefBasisUnavailableError) Unwrap() error { return ErrReliefBasisUnavailable }

// ConflictError is handed to the loser of a compare-and-activate. Current
// is the state the winner left behind.
type ConflictError struct {
	Group           GroupKey
	ExpectedCurrent string
	Current         *Formula
}

func (e *ConflictError) Error() string {
	actual := "none"
	if e.Current != nil {
		actual = e.Current.ID
	}
	return fmt.Sprintf("activation conflict on %s: expected current %q, found %q", e.Group, e.ExpectedCurrent, actual)
}

func (e *ConflictError) Unwrap() error { return ErrConcurrentActivation }

// IsNotFound returns true if err indicates a missing formula or resolution gap
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFormulaNotFound) ||
		errors.Is(err, ErrNoEffectiveFormula)
}

// IsDataError returns true if err can only be fixed by correcting catalog data
func IsDataError(err error) bool {
	return errors.Is(err, ErrMalformedFormulaData) ||
		errors.Is(err, ErrNoEffectiveFormula)
}

// IsCallerError returns true if err is caused by the request rather than the catalog
func IsCallerError(err error) bool {
	return errors.Is(err, ErrInvalidOverride) ||
		errors.Is(err, ErrReliefBasisUnavailable) ||
		errors.Is(err, ErrUnknownComponent)
}
