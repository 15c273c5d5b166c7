// Package errors provides structured error handling for Payflow.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess    = 0 // Successful execution
	ExitGeneral    = 1 // General/unknown error
	ExitInput      = 2 // Invalid input
	ExitAuth       = 3 // Authentication or MFA failed
	ExitNotFound   = 4 // Resource not found
	ExitPermission = 5 // Permission denied or insufficient funds
)

// PayflowError is the structured error type for Payflow.
type PayflowError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *PayflowError) Error() string {
	msg := e.Message

	// Details are sorted for deterministic output
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *PayflowError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for PayflowError.
func (e *PayflowError) Is(target error) bool {
	var t *PayflowError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &PayflowError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &PayflowError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrAuthentication = &PayflowError{
		Code:     "AUTHENTICATION_FAILED",
		Message:  "authentication failed",
		ExitCode: ExitAuth,
	}

	ErrNotAuthenticated = &PayflowError{
		Code:       "NOT_AUTHENTICATED",
		Message:    "not logged in",
		Suggestion: "run 'payflow login' first",
		ExitCode:   ExitAuth,
	}

	ErrNotFound = &PayflowError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	ErrInsufficientFunds = &PayflowError{
		Code:     "INSUFFICIENT_FUNDS",
		Message:  "amount exceeds spendable balance",
		ExitCode: ExitPermission,
	}

	// Local validation errors. These never reach the network.
	ErrAmountRequired = &PayflowError{
		Code:     "AMOUNT_REQUIRED",
		Message:  "amount is required",
		ExitCode: ExitInput,
	}

	ErrAddressRequired = &PayflowError{
		Code:     "ADDRESS_REQUIRED",
		Message:  "destination address is required",
		ExitCode: ExitInput,
	}

	ErrCurrencyRequired = &PayflowError{
		Code:     "CURRENCY_REQUIRED",
		Message:  "currency is required",
		ExitCode: ExitInput,
	}

	ErrInvalidAmount = &PayflowError{
		Code:     "INVALID_AMOUNT",
		Message:  "invalid amount format",
		ExitCode: ExitInput,
	}

	ErrInvalidFee = &PayflowError{
		Code:     "INVALID_FEE",
		Message:  "invalid fee selection",
		ExitCode: ExitInput,
	}

	ErrUnknownCurrency = &PayflowError{
		Code:     "UNKNOWN_CURRENCY",
		Message:  "unknown currency",
		ExitCode: ExitInput,
	}

	// Session and staleness guards.
	ErrStaleEstimate = &PayflowError{
		Code:       "STALE_ESTIMATE",
		Message:    "estimate does not match the current input",
		Suggestion: "estimate again before sending",
		ExitCode:   ExitInput,
	}

	ErrEstimateExceedsBalance = &PayflowError{
		Code:       "ESTIMATE_EXCEEDS_BALANCE",
		Message:    "estimated spend exceeds wallet balance",
		Suggestion: "estimate again",
		ExitCode:   ExitPermission,
	}

	ErrSessionInvalidated = &PayflowError{
		Code:     "SESSION_INVALIDATED",
		Message:  "send session was closed or switched to another wallet",
		ExitCode: ExitGeneral,
	}

	ErrOperationInProgress = &PayflowError{
		Code:     "OPERATION_IN_PROGRESS",
		Message:  "another operation is still in progress",
		ExitCode: ExitGeneral,
	}

	ErrInvalidState = &PayflowError{
		Code:     "INVALID_STATE",
		Message:  "operation not allowed in the current state",
		ExitCode: ExitGeneral,
	}

	// MFA errors.
	ErrFactorsRequired = &PayflowError{
		Code:     "FACTORS_REQUIRED",
		Message:  "additional authentication factors required",
		ExitCode: ExitAuth,
	}

	ErrFactorCodeMissing = &PayflowError{
		Code:     "FACTOR_CODE_MISSING",
		Message:  "a code is required for every factor",
		ExitCode: ExitInput,
	}

	ErrUnknownFactor = &PayflowError{
		Code:     "UNKNOWN_FACTOR",
		Message:  "factor was not requested by the challenge",
		ExitCode: ExitInput,
	}

	ErrMFAFailed = &PayflowError{
		Code:     "MFA_FAILED",
		Message:  "multi-factor authentication failed",
		ExitCode: ExitAuth,
	}

	// Ledger service errors.
	ErrLedgerRejected = &PayflowError{
		Code:     "LEDGER_REJECTED",
		Message:  "request rejected by ledger service",
		ExitCode: ExitGeneral,
	}

	ErrLedgerBadResponse = &PayflowError{
		Code:     "LEDGER_BAD_RESPONSE",
		Message:  "unexpected response from ledger service",
		ExitCode: ExitGeneral,
	}

	ErrNetworkError = &PayflowError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	ErrPresetsUnavailable = &PayflowError{
		Code:     "PRESETS_UNAVAILABLE",
		Message:  "fee presets unavailable",
		ExitCode: ExitGeneral,
	}

	// Config errors.
	ErrConfigNotFound = &PayflowError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &PayflowError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}

	ErrUnknownConfigKey = &PayflowError{
		Code:     "UNKNOWN_CONFIG_KEY",
		Message:  "unknown config key",
		ExitCode: ExitInput,
	}

	ErrTokenCorrupted = &PayflowError{
		Code:       "TOKEN_CORRUPTED",
		Message:    "stored login token could not be read",
		Suggestion: "run 'payflow login' again",
		ExitCode:   ExitAuth,
	}
)

// New creates a new PayflowError with the given code and message.
func New(code, message string) *PayflowError {
	return &PayflowError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var pe *PayflowError
	if errors.As(err, &pe) {
		return &PayflowError{
			Code:       pe.Code,
			Message:    fmt.Sprintf("%s: %s", msg, pe.Message),
			Details:    pe.Details,
			Suggestion: pe.Suggestion,
			Cause:      err,
			ExitCode:   pe.ExitCode,
		}
	}

	return &PayflowError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var pe *PayflowError
	if errors.As(err, &pe) {
		return &PayflowError{
			Code:       pe.Code,
			Message:    pe.Message,
			Details:    details,
			Suggestion: pe.Suggestion,
			Cause:      pe.Cause,
			ExitCode:   pe.ExitCode,
		}
	}

	return &PayflowError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var pe *PayflowError
	if errors.As(err, &pe) {
		return &PayflowError{
			Code:       pe.Code,
			Message:    pe.Message,
			Details:    pe.Details,
			Suggestion: suggestion,
			Cause:      pe.Cause,
			ExitCode:   pe.ExitCode,
		}
	}

	return &PayflowError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// WithMessage replaces the human-readable message while keeping the error code.
// Used to surface ledger rejection messages verbatim.
func WithMessage(err error, message string) error {
	if err == nil {
		return nil
	}

	var pe *PayflowError
	if errors.As(err, &pe) {
		return &PayflowError{
			Code:       pe.Code,
			Message:    message,
			Details:    pe.Details,
			Suggestion: pe.Suggestion,
			Cause:      pe.Cause,
			ExitCode:   pe.ExitCode,
		}
	}

	return &PayflowError{
		Code:     "GENERAL_ERROR",
		Message:  message,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var pe *PayflowError
	if errors.As(err, &pe) {
		return pe.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var pe *PayflowError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return "GENERAL_ERROR"
}

// Detail returns a single detail value for an error, if present.
func Detail(err error, key string) (string, bool) {
	var pe *PayflowError
	if !errors.As(err, &pe) || pe.Details == nil {
		return "", false
	}
	v, ok := pe.Details[key]
	return v, ok
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
