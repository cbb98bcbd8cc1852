package statemachine

import (
	"context"
	"fmt"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/looplab/fsm"
)

// StatementFSM wraps a statement with its persistence state machine
type StatementFSM struct {
	statement *models.Statement
	fsm       *fsm.FSM
}

// NewStatementFSM creates a new statement state machine
func NewStatementFSM(statement *models.Statement) *StatementFSM {
	sf := &StatementFSM{
		statement: statement,
	}

	sf.fsm = fsm.NewFSM(
		statement.Status,
		fsm.Events{
			// pending/partial → complete once every snapshot is written
			{Name: "complete", Src: []string{models.StatementStatusPending, models.StatementStatusPartial}, Dst: models.StatementStatusComplete},

			// pending → partial when some snapshot writes failed
			{Name: "mark_partial", Src: []string{models.StatementStatusPending}, Dst: models.StatementStatusPartial},
		},
		fsm.Callbacks{},
	)

	return sf
}

// Current returns the current status
func (s *StatementFSM) Current() string {
	return s.fsm.Current()
}

// Complete transitions the statement to complete
func (s *StatementFSM) Complete(ctx context.Context) error {
	if !s.statement.MayReconcile() {
		return fmt.Errorf("statement cannot be completed in current state: %s", s.statement.Status)
	}

	if err := s.fsm.Event(ctx, "complete"); err != nil {
		return fmt.Errorf("failed to complete statement: %w", err)
	}

	s.statement.Status = s.fsm.Current()
	return nil
}

// MarkPartial transitions a pending statement to partial
func (s *StatementFSM) MarkPartial(ctx context.Context) error {
	if s.statement.Status == models.StatementStatusPartial {
		return nil
	}

	if err := s.fsm.Event(ctx, "mark_partial"); err != nil {
		return fmt.Errorf("failed to mark statement partial: %w", err)
	}

	s.statement.Status = s.fsm.Current()
	return nil
}
