package services

import (
	"errors"
	"fmt"
	"strings"
)

// Common service errors
var (
	ErrNotFound                = errors.New("record not found")
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidState            = errors.New("invalid state transition")
	ErrPeriodAlreadyComposed   = errors.New("a statement already exists for this period")
	ErrNumberingConflict       = errors.New("statement numbering conflict")
	ErrPartialPersistence      = errors.New("statement persisted partially")
	ErrDegradedBaseline        = errors.New("previous statement could not be resolved")
	ErrMissingCollaboratorData = errors.New("site data could not be loaded")
)

// PersistReport counts the snapshot writes of a statement
type PersistReport struct {
	Written int      `json:"written"`
	Failed  int      `json:"failed"`
	Missing []string `json:"missing,omitempty"`
}

// PartialPersistenceError is returned when the header was written but some
// snapshots were not. The statement stays reconcilable.
type PartialPersistenceError struct {
	StatementID uint
	Report      PersistReport
}

func (e *PartialPersistenceError) Error() string {
	return fmt.Sprintf("%s: statement %d, %d of %d snapshots missing (%s)",
		ErrPartialPersistence, e.StatementID, e.Report.Failed, e.Report.Written+e.Report.Failed,
		strings.Join(e.Report.Missing, ", "))
}

func (e *PartialPersistenceError) Unwrap() error {
	return ErrPartialPersistence
}
