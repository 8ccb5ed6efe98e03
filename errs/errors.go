// Package errs defines the typed error taxonomy returned by the engine.
//
// Every error type matches its sentinel with errors.Is, so callers can either
// branch on the category (errors.Is(err, errs.ErrConflict)) or extract the
// details (errors.As(err, &conflict)).
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel categories.
var (
	ErrValidation         = errors.New("validation failed")
	ErrUnresolved         = errors.New("unresolved approvers")
	ErrOutOfTurn          = errors.New("out of turn decision")
	ErrDuplicateDecision  = errors.New("duplicate decision")
	ErrConflict           = errors.New("conflict")
	ErrRollbackTarget     = errors.New("invalid rollback target")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidState       = errors.New("invalid state")
	ErrLockNotAcquired    = errors.New("lock not acquired")
	ErrUnsupportedBackend = errors.New("unsupported backend")
)

// ValidationError carries field-keyed messages. It is never returned together
// with a partially applied change.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// NewValidationError returns an empty validation error ready to collect issues.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records a message for key; the first message per key wins.
func (e *ValidationError) Add(key, format string, args ...interface{}) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[key]; ok {
		return
	}
	e.Fields[key] = fmt.Sprintf(format, args...)
}

// Merge copies issues from other, prefixing every key.
func (e *ValidationError) Merge(prefix string, other *ValidationError) {
	if other == nil {
		return
	}
	for k, v := range other.Fields {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		e.Add(key, "%s", v)
	}
}

// HasIssues reports whether any field failed.
func (e *ValidationError) HasIssues() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns e when it has issues, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e.HasIssues() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UnresolvedApproversError reports a step that could not be activated.
type UnresolvedApproversError struct {
	InstanceID string
	StepIndex  int
	NodeID     string
	Cause      error
}

func (e *UnresolvedApproversError) Error() string {
	msg := fmt.Sprintf("no approvers resolved for step %d (%s) of instance %s", e.StepIndex, e.NodeID, e.InstanceID)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *UnresolvedApproversError) Is(target error) bool { return target == ErrUnresolved }
func (e *UnresolvedApproversError) Unwrap() error        { return e.Cause }

// OutOfTurnError is returned when a sequential step approver decides before
// the currently eligible one.
type OutOfTurnError struct {
	StepIndex  int
	ApproverID string
	Expected   string
}

func (e *OutOfTurnError) Error() string {
	return fmt.Sprintf("approver %s decided out of turn on step %d, waiting for %s", e.ApproverID, e.StepIndex, e.Expected)
}

func (e *OutOfTurnError) Is(target error) bool { return target == ErrOutOfTurn }

// DuplicateDecisionError signals a retried decision. Callers should treat it as success.
type DuplicateDecisionError struct {
	StepIndex  int
	ApproverID string
}

func (e *DuplicateDecisionError) Error() string {
	return fmt.Sprintf("approver %s already decided on step %d", e.ApproverID, e.StepIndex)
}

func (e *DuplicateDecisionError) Is(target error) bool { return target == ErrDuplicateDecision }

// ConflictError reports a publish race or a stale version.
type ConflictError struct {
	Resource string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Resource, e.Reason)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// RollbackTargetError is a pipeline template configuration error.
type RollbackTargetError struct {
	TaskCode    string
	OutcomeCode string
	Target      string
	Reason      string
}

func (e *RollbackTargetError) Error() string {
	return fmt.Sprintf("outcome %s of task %s: rollback target %q %s", e.OutcomeCode, e.TaskCode, e.Target, e.Reason)
}

func (e *RollbackTargetError) Is(target error) bool { return target == ErrRollbackTarget }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ForbiddenError reports an actor that may not perform the operation.
type ForbiddenError struct {
	Actor  string
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s is not allowed to %s", e.Actor, e.Action)
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// StateError reports an operation attempted in the wrong lifecycle state.
type StateError struct {
	Entity string
	State  string
	Action string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("can not %s %s in state %s", e.Action, e.Entity, e.State)
}

func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

// NotFound is a shorthand constructor.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}
