package extraction

import (
	"time"

	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
	apperrors "github.com/ripixel/fitglue-vision/pkg/errors"
)

// Request is one extraction call. CorrelationID is generated when empty.
type Request struct {
	ImageRef      string
	Domain        metadata.Domain
	CorrelationID string
}

// State is a step of the per-call state machine.
type State string

const (
	StatePreprocessing        State = "preprocessing"
	StatePrompting            State = "prompting"
	StateCalling              State = "calling"
	StateParsing              State = "parsing"
	StateFallbackSynthesizing State = "fallback_synthesizing"
	StateDone                 State = "done"
)

// MetadataContractViolation marks failures caused by bad input rather than
// operational trouble. Callers may surface these as hard errors.
const MetadataContractViolation = "contract_violation"

// Result is always populated: Record is never nil and its confidence is in [0,1].
type Result struct {
	CorrelationID string
	Domain        metadata.Domain
	Record        metadata.Record
	// Failure is nil on success; otherwise it says why the record is degraded.
	Failure  *apperrors.ExtractionError
	Fallback bool
	Strategy string
	Attempts int
	Duration time.Duration
}

func (r *Result) Degraded() bool { return r.Failure != nil }

// ContractViolation reports whether the failure came from invalid input.
func (r *Result) ContractViolation() bool {
	return r.Failure != nil && r.Failure.Metadata[MetadataContractViolation] == "true"
}

// Exercise returns the record as exercise metadata, or nil for diet results.
func (r *Result) Exercise() *metadata.ExerciseMetadata {
	m, _ := r.Record.(*metadata.ExerciseMetadata)
	return m
}

// Diet returns the record as diet metadata, or nil for exercise results.
func (r *Result) Diet() *metadata.DietMetadata {
	m, _ := r.Record.(*metadata.DietMetadata)
	return m
}
