package generation

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Only ErrGenerationUnavailable, ErrContractViolation
// and ErrPersistence are retried by the broker; the rest short-circuit.
var (
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrContractViolation     = errors.New("contract violation")
	ErrPersistence           = errors.New("persistence failure")
)

type ViolationKind string

const (
	MalformedOutput    ViolationKind = "MalformedOutput"
	WrongItemCount     ViolationKind = "WrongItemCount"
	MissingField       ViolationKind = "MissingField"
	BlankField         ViolationKind = "BlankField"
	InvalidOptions     ViolationKind = "InvalidOptions"
	AnswerNotInOptions ViolationKind = "AnswerNotInOptions"
	InvalidDifficulty  ViolationKind = "InvalidDifficulty"
	ContextMismatch    ViolationKind = "ContextMismatch"
)

// Violation is a single contract failure. Any violation rejects the whole
// batch; the orchestrator surfaces it as a retryable ContractViolation since a
// fresh generation attempt may well produce a clean batch.
type Violation struct {
	Kind   ViolationKind
	Detail string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("contract violation (%s): %s", v.Kind, v.Detail)
}

func (v *Violation) Is(target error) bool {
	return target == ErrContractViolation
}

func violationf(kind ViolationKind, format string, args ...any) *Violation {
	return &Violation{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
