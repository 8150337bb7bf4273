package broker

import "time"

// One topic per use case. A topic doubles as the Temporal task queue name;
// the dead-letter channel derives from it by suffix.
const (
	TopicReviewRequested     = "quiz.review.requested"
	TopicGenerationRequested = "quiz.generation.requested"

	DeadLetterSuffix = ".dlt"
)

func Topics() []string {
	return []string{TopicReviewRequested, TopicGenerationRequested}
}

func DeadLetterChannel(topic string) string {
	return topic + DeadLetterSuffix
}

// Retry policy for one generation request. Constants rather than env so the
// workflow stays deterministic across replays. Worst case the schedule spans
// ~31s, comfortably inside the 30m coarse dedup window.
const (
	RetryInitialInterval    = 1 * time.Second
	RetryBackoffCoefficient = 2.0
	RetryMaximumAttempts    = 5
)

// Typed activity errors the workflow branches on.
const (
	ErrTypeEligibilityDenied     = "EligibilityDenied"
	ErrTypeInvalidRequest        = "InvalidRequest"
	ErrTypeGenerationUnavailable = "GenerationUnavailable"
	ErrTypeContractViolation     = "ContractViolation"
	ErrTypePersistenceFailure    = "PersistenceFailure"
)

const (
	WorkflowGenerationRequest = "generation_request"
	ActivityProcess           = "generation_process"
	ActivityDeadLetter        = "generation_dead_letter"
)
