package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	ErrInvalidAddress      = errors.New("invalid address")
	ErrCollectionNotFound  = errors.New("collection not found")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrEmptyMainAccount    = errors.New("no main account")
	ErrNoSession           = errors.New("no active session")
	ErrAccountTypeMismatch = errors.New("address kind does not match account type")
	ErrUnsupportedNetwork  = errors.New("unsupported network")
	ErrAccountNotFound     = errors.New("account not in the loaded graph")
)

// InvalidAddressError reports a string that could not be classified.
type InvalidAddressError struct {
	Input  string
	Reason string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address %q: %s", e.Input, e.Reason)
}

func (e *InvalidAddressError) Unwrap() error { return ErrInvalidAddress }

// ProviderFetchError wraps a network or decoding failure from a token provider.
type ProviderFetchError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderFetchError) Error() string {
	return fmt.Sprintf("%s provider %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderFetchError) Unwrap() error { return e.Err }

// CollectionNotFoundError is returned when an NFT fetch names a collection the
// address does not hold.
type CollectionNotFoundError struct {
	Address      Address
	CollectionID string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection %s not found for %s", e.CollectionID, e.Address)
}

func (e *CollectionNotFoundError) Unwrap() error { return ErrCollectionNotFound }

// Chain error codes with dedicated handling.
const (
	ErrorCodeStorageCapacityExceeded = 1103
)

// TransactionFailedError carries the chain-reported failure of a transaction.
type TransactionFailedError struct {
	TxID     string
	Code     int
	Message  string
	ScriptID string
}

func (e *TransactionFailedError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("transaction %s failed with code %d: %s", e.TxID, e.Code, e.Message)
	}
	return fmt.Sprintf("transaction %s failed: %s", e.TxID, e.Message)
}

func (e *TransactionFailedError) Unwrap() error { return ErrTransactionFailed }

// StorageExceeded reports whether the failure was caused by storage capacity.
func (e *TransactionFailedError) StorageExceeded() bool {
	return e.Code == ErrorCodeStorageCapacityExceeded
}

var errorCodePattern = regexp.MustCompile(`\[Error Code: (\d+)\]`)

// ParseErrorCode extracts the numeric code from a chain error message such as
// "[Error Code: 1103] storage capacity exceeded". Returns 0 when absent.
func ParseErrorCode(msg string) int {
	m := errorCodePattern.FindStringSubmatch(msg)
	if len(m) != 2 {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return code
}
