package situation

import "errors"

var (
	// ErrMissingQuote is returned when the quote tree was not supplied.
	ErrMissingQuote = errors.New("situation: missing quote")
	// ErrInvalidPeriod is returned when month or year is out of range.
	ErrInvalidPeriod = errors.New("situation: invalid period")
	// ErrUnknownLine is returned when a percentage targets a line outside the tree.
	ErrUnknownLine = errors.New("situation: unknown line")
	// ErrUnknownKind is returned for a line kind other than standard or amendment.
	ErrUnknownKind = errors.New("situation: unknown line kind")
)
