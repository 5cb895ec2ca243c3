package regen

import (
	"time"

	"github.com/google/uuid"
)

// ModelChanged notifies that the document of a Thing Model changed. Producers
// encode it with gob.
type ModelChanged struct {
	// Ref is the reference of the changed document, as resolvers fetch it.
	Ref string
	// The time, in UTC, the change was observed.
	Timestamp time.Time
}

// GenerationCompleted summarizes one generation run over an effective model.
type GenerationCompleted struct {
	// RunID identifies the generation run. Every run of a single ModelChanged
	// message shares the Trigger but has its own RunID.
	RunID uuid.UUID
	// Ref is the model the run resolved and Trigger is the changed model that
	// caused it; both are equal for the changed model itself.
	Ref     string
	Trigger string
	// Strategy is the text form of the type registration strategy.
	Strategy string
	// Types lists the qualified names of the declared types in declaration
	// order.
	Types      []string
	Properties int
	Features   []string
	// The time, in UTC, the run completed.
	Timestamp time.Time
}
