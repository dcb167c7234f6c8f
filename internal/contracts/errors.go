package contracts

import (
	"errors"
	"fmt"
)

// ErrorKind classifies upstream failures so a run can tell
// "skip this ticker" from "abort this run".
type ErrorKind string

const (
	KindTransient   ErrorKind = "transient"    // timeout, 429, 5xx, connection reset
	KindPermanent   ErrorKind = "permanent"    // other 4xx, undecodable response
	KindDataQuality ErrorKind = "data_quality" // record present but unusable
)

// ErrNoData is returned by a provider that answered but had nothing for a ticker
var ErrNoData = errors.New("no data returned")

// FetchError wraps an upstream failure with its classification
type FetchError struct {
	Kind     ErrorKind
	Ticker   string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Ticker == "" {
		return fmt.Sprintf("%s fetch error after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s fetch error for %s after %d attempt(s): %v", e.Kind, e.Ticker, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, defaulting to transient for
// unclassified errors (network failures are the common case).
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var re interface{ Retryable() bool }
	if errors.As(err, &re) {
		if re.Retryable() {
			return KindTransient
		}
		return KindPermanent
	}
	if errors.Is(err, ErrNoData) {
		return KindDataQuality
	}
	return KindTransient
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

// FetchResult is the outcome for one ticker: a record or an error
type FetchResult struct {
	Record *RawSecurityRecord
	Err    error
}
