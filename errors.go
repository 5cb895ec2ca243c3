package thingmodel

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCyclicModel is matched by every CycleError.
	ErrCyclicModel = errors.New("cyclic thing model")
	// ErrMissingInstanceName is reported for tm:submodel links without an
	// instanceName.
	ErrMissingInstanceName = errors.New("submodel link without instance name")
	// ErrFeatureConflict is reported when two submodels of one model, or their
	// hoisted features, are mounted under the same instance name.
	ErrFeatureConflict = errors.New("conflicting feature instance name")
	// ErrOverrideConflict is reported in strict mode when a derived affordance
	// changes the schema type of the base affordance it overrides.
	ErrOverrideConflict = errors.New("override changes affordance type")
	// ErrUnsupportedRef is reported for tm:ref pointers other than
	// "#/{properties|actions|events}/{name}", and for chained references.
	ErrUnsupportedRef = errors.New("unsupported tm:ref")
)

// A FetchError records a failure of the Fetcher. Resolution never continues
// past a fetch failure.
type FetchError struct {
	Ref string
	Err error
}

func (e *FetchError) Error() string { return "fetch " + e.Ref + ": " + e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// A CycleError reports a model reaching itself through tm:extends or
// tm:submodel links. Chain lists the active resolution path, starting and ending
// with the offending document.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return ErrCyclicModel.Error() + ": " + strings.Join(e.Chain, " -> ")
}

func (e *CycleError) Is(target error) bool { return target == ErrCyclicModel }

// Ref returns the document that closed the cycle.
func (e *CycleError) Ref() string {
	if len(e.Chain) == 0 {
		return ""
	}
	return e.Chain[len(e.Chain)-1]
}

// A ModelError reports an invalid document.
type ModelError struct {
	Ref string
	Err error
}

func (e *ModelError) Error() string { return fmt.Sprintf("thing model %s: %v", e.Ref, e.Err) }

func (e *ModelError) Unwrap() error { return e.Err }
