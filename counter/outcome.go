package counter

import (
	"hermannm.dev/enumnames"
)

// Outcome of a single playlist count recomputation. Every run ends in exactly one
// outcome, and every outcome is counted through the metrics sink.
type Outcome uint8

const (
	OutcomeSucceeded Outcome = 1
	// The cached count was refreshed recently enough that recomputing would be wasted
	// work.
	OutcomeSkippedCooldown Outcome = 2
	// The playlist's filters equal the built-in defaults, so its count would match the
	// generic recordings listing and is not worth caching per playlist.
	OutcomeSkippedDefaultFilters Outcome = 3
	// The playlist no longer exists.
	OutcomeUnknown Outcome = 4
	OutcomeFailed  Outcome = 5
)

var outcomeNames = enumnames.NewMap(map[Outcome]string{
	OutcomeSucceeded:             "succeeded",
	OutcomeSkippedCooldown:       "skipped_cooldown",
	OutcomeSkippedDefaultFilters: "skipped_default_filters",
	OutcomeUnknown:               "unknown",
	OutcomeFailed:                "failed",
})

func (outcome Outcome) IsValid() bool {
	return outcomeNames.ContainsEnumValue(outcome)
}

func (outcome Outcome) String() string {
	return outcomeNames.GetNameOrFallback(outcome, "[INVALID OUTCOME]")
}

func (outcome Outcome) MarshalJSON() ([]byte, error) {
	return outcomeNames.MarshalToNameJSON(outcome)
}

func (outcome *Outcome) UnmarshalJSON(bytes []byte) error {
	return outcomeNames.UnmarshalFromNameJSON(bytes, outcome)
}
