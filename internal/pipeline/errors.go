package pipeline

import (
	"errors"
	"fmt"

	"github.com/coverscan/policy-analyst/internal/analyst"
)

// Stage names the pipeline step an error originated from.
type Stage string

const (
	StageLoading     Stage = "loading"
	StageChunking    Stage = "chunking"
	StageIndexing    Stage = "indexing"
	StageFormulating Stage = "formulating"
	StageRetrieving  Stage = "retrieving"
	StageGenerating  Stage = "generating"
	StageParsing     Stage = "parsing"
)

// Kind classifies a stage failure.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindLoad          Kind = "load"
	KindProvider      Kind = "provider"
	KindParse         Kind = "parse"
	KindIndex         Kind = "index"
)

// StageError is the only error type the pipeline surfaces: the originating
// stage, the failure class, the underlying cause, and the raw untrusted text
// when a model response was involved. No stage continues past a failure.
type StageError struct {
	Stage       Stage
	Kind        Kind
	Err         error
	RawEvidence string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageFailed(stage Stage, kind Kind, err error) *StageError {
	se := &StageError{Stage: stage, Kind: kind, Err: err}
	var parseErr *analyst.ParseError
	if errors.As(err, &parseErr) {
		se.RawEvidence = parseErr.RawEvidence
	}
	return se
}

// Failure is the wire form of a pipeline failure, rendered to users so a bad
// model response can be diagnosed without re-running the pipeline.
type Failure struct {
	Stage       string `json:"stage"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	RawEvidence string `json:"raw_evidence,omitempty"`
}

// FailureFrom converts any error leaving the pipeline into its tagged form.
func FailureFrom(err error) *Failure {
	var se *StageError
	if errors.As(err, &se) {
		return &Failure{
			Stage:       string(se.Stage),
			Kind:        string(se.Kind),
			Message:     se.Err.Error(),
			RawEvidence: se.RawEvidence,
		}
	}
	return &Failure{
		Stage:   "pipeline",
		Kind:    string(KindConfiguration),
		Message: err.Error(),
	}
}
