// Package errors provides standardized error handling for the catalog sync pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Pass-level errors: the whole aggregation pass aborts.
const (
	ErrCodeItemCountFailed ErrorCode = "ITEM_COUNT_FAILED"
	ErrCodeAccountMissing  ErrorCode = "ACCOUNT_MISSING"
	ErrCodePassFailed      ErrorCode = "PASS_FAILED"
)

// Item-level errors: one record is dropped, the pass continues.
const (
	ErrCodeItemReadFailed   ErrorCode = "ITEM_READ_FAILED"
	ErrCodeTokenURIFailed   ErrorCode = "TOKEN_URI_FAILED"
	ErrCodeTotalPriceFailed ErrorCode = "TOTAL_PRICE_FAILED"
)

// Action errors: surfaced to the caller, never retried automatically.
const (
	ErrCodePurchaseFailed  ErrorCode = "PURCHASE_FAILED"
	ErrCodeMintFailed      ErrorCode = "MINT_FAILED"
	ErrCodeNoIssuanceEvent ErrorCode = "NO_ISSUANCE_EVENT"
	ErrCodeApprovalFailed  ErrorCode = "APPROVAL_FAILED"
	ErrCodeListingFailed   ErrorCode = "LISTING_FAILED"
	ErrCodePinFailed       ErrorCode = "PIN_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// AsStandard extracts a *StandardError from an error chain, if present.
func AsStandard(err error) (*StandardError, bool) {
	var se *StandardError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// NewItemCountFailedError creates a retryable pass-level error for a failed
// item count read.
func NewItemCountFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeItemCountFailed,
		Message:   "Failed to read marketplace item count",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewAccountMissingError creates a retryable pass-level error for an owned
// view requested without an account.
func NewAccountMissingError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAccountMissing,
		Message:   "Owned view requires a seller account",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPassFailedError wraps any other failure that aborts a whole pass.
func NewPassFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePassFailed,
		Message:   "Aggregation pass failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewItemReadFailedError creates an item-level error for a failed record read.
func NewItemReadFailedError(itemID uint64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeItemReadFailed,
		Message:   "Failed to read item record",
		Details:   fmt.Sprintf("itemId: %d, error: %s", itemID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTokenURIFailedError creates an item-level error for a failed token URI
// lookup. This is a contract call failure, not a metadata fetch failure; the
// record is dropped rather than given a fallback entry.
func NewTokenURIFailedError(tokenID uint64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenURIFailed,
		Message:   "Failed to resolve token URI",
		Details:   fmt.Sprintf("tokenId: %d, error: %s", tokenID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTotalPriceFailedError creates an item-level error for a failed total
// price lookup.
func NewTotalPriceFailedError(itemID uint64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTotalPriceFailed,
		Message:   "Failed to fetch item total price",
		Details:   fmt.Sprintf("itemId: %d, error: %s", itemID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewPurchaseFailedError creates a non-retryable action error for a failed
// purchase transaction.
func NewPurchaseFailedError(itemID uint64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePurchaseFailed,
		Message:   "Purchase transaction failed",
		Details:   fmt.Sprintf("itemId: %d, error: %s", itemID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewMintFailedError creates a non-retryable action error for a failed mint.
func NewMintFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMintFailed,
		Message:   "Mint transaction failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNoIssuanceEventError creates a non-retryable action error for a mint
// receipt that carries no issuance event.
func NewNoIssuanceEventError(txHash string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoIssuanceEvent,
		Message:   "No issuance event found in mint receipt",
		Details:   fmt.Sprintf("txHash: %s", txHash),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApprovalFailedError creates a non-retryable action error for a failed
// operator approval.
func NewApprovalFailedError(operator string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeApprovalFailed,
		Message:   "Operator approval transaction failed",
		Details:   fmt.Sprintf("operator: %s, error: %s", operator, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewListingFailedError creates a non-retryable action error for a failed
// listing transaction.
func NewListingFailedError(tokenID uint64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeListingFailed,
		Message:   "Listing transaction failed",
		Details:   fmt.Sprintf("tokenId: %d, error: %s", tokenID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewPinFailedError creates a non-retryable action error for a failed upload
// to the pinning service.
func NewPinFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePinFailed,
		Message:   "Content pinning failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}
