package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidConfig signals an invalid corpus or field definition.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrViewClosed signals an operation on a torn-down search view.
	ErrViewClosed = errors.New("view closed")

	// ErrInvalidFilterData signals widget data that does not match the field's filter variant.
	ErrInvalidFilterData = errors.New("invalid filter data")
	// ErrUnknownField signals a filter lookup on a field without a filter type.
	ErrUnknownField = errors.New("unknown field")
	// ErrMalformedParam signals a URL parameter that does not decode into its filter encoding.
	ErrMalformedParam = errors.New("malformed param")
	// ErrAggregationFailure signals a failed or timed out backend aggregation.
	ErrAggregationFailure = errors.New("aggregation failure")
)

// InvalidFilterDataError wraps ErrInvalidFilterData with the offending field.
type InvalidFilterDataError struct {
	Field  string
	Reason string
}

func (e *InvalidFilterDataError) Error() string {
	return fmt.Sprintf("%s for %q: %s", ErrInvalidFilterData.Error(), e.Field, e.Reason)
}

func (e *InvalidFilterDataError) Unwrap() error { return ErrInvalidFilterData }

// NewInvalidFilterData creates an invalid filter data error.
func NewInvalidFilterData(field, format string, args ...any) error {
	return &InvalidFilterDataError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// UnknownFieldError wraps ErrUnknownField with the requested field name.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownField.Error(), e.Field)
}

func (e *UnknownFieldError) Unwrap() error { return ErrUnknownField }

// NewUnknownField creates an unknown field error.
func NewUnknownField(field string) error {
	return &UnknownFieldError{Field: field}
}

// MalformedParamError wraps ErrMalformedParam with the offending key and raw value.
type MalformedParamError struct {
	Key   string
	Value string
	Err   error
}

func (e *MalformedParamError) Error() string {
	msg := fmt.Sprintf("%s %s=%q", ErrMalformedParam.Error(), e.Key, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedParamError) Unwrap() error { return ErrMalformedParam }

// NewMalformedParam creates a malformed param error.
func NewMalformedParam(key, value string, cause error) error {
	return &MalformedParamError{Key: key, Value: value, Err: cause}
}

// AggregationError wraps ErrAggregationFailure with the field and aggregation kind.
type AggregationError struct {
	Field string
	Kind  string
	Err   error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("%s: %s(%s): %v", ErrAggregationFailure.Error(), e.Kind, e.Field, e.Err)
}

func (e *AggregationError) Unwrap() []error { return []error{ErrAggregationFailure, e.Err} }

// NewAggregationFailure creates an aggregation failure error.
func NewAggregationFailure(field, kind string, cause error) error {
	return &AggregationError{Field: field, Kind: kind, Err: cause}
}
