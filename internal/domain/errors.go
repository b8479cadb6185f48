package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Configuration errors are fatal for the operation that
// hit them; applicant data and oracle errors are recoverable per
// applicant and become placeholders in portfolio runs.
var (
	// ErrConfiguration marks unusable engine configuration: unknown
	// policy names, malformed policy documents, invalid LGD ratios.
	ErrConfiguration = errors.New("configuration error")

	// ErrApplicantData marks an applicant profile the engine cannot
	// evaluate. Recoverable: other applicants proceed.
	ErrApplicantData = errors.New("applicant data error")

	// ErrScoringOracle marks a scoring backend failure for one
	// applicant. Recovered the same way as bad applicant data.
	ErrScoringOracle = errors.New("scoring oracle error")

	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid input")
)

// NewConfigurationError wraps ErrConfiguration with detail.
func NewConfigurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// NewApplicantDataError wraps ErrApplicantData with detail.
func NewApplicantDataError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrApplicantData, fmt.Sprintf(format, args...))
}

// NewScoringOracleError wraps ErrScoringOracle with detail.
func NewScoringOracleError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrScoringOracle, fmt.Sprintf(format, args...))
}

// IsRecoverable reports whether an evaluation error should be absorbed
// as a per-applicant placeholder instead of aborting the run.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrApplicantData) || errors.Is(err, ErrScoringOracle)
}
