package core

import (
	"errors"
	"fmt"
)

// Error kinds. A StageError unwraps to exactly one of these and to its cause.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrOracle        = errors.New("speech oracle error")
	ErrPipeline      = errors.New("audio pipeline error")
	ErrExport        = errors.New("export error")
)

// Stage names the step of item processing that failed.
type Stage string

const (
	STAGE_RESOLVE    Stage = "resolve"
	STAGE_VALIDATE   Stage = "validate"
	STAGE_CLICKS     Stage = "clicks"
	STAGE_MARKUP     Stage = "markup"
	STAGE_SYNTHESIZE Stage = "synthesize"
	STAGE_DECODE     Stage = "decode"
	STAGE_EFFECTS    Stage = "effects"
	STAGE_EXPORT     Stage = "export"
	STAGE_QUEUE      Stage = "queue"
)

// Kind returns the error kind a failure at this stage belongs to.
func (s Stage) Kind() error {
	switch s {
	case STAGE_RESOLVE, STAGE_VALIDATE, STAGE_CLICKS, STAGE_MARKUP:
		return ErrConfiguration
	case STAGE_SYNTHESIZE:
		return ErrOracle
	case STAGE_DECODE, STAGE_EFFECTS, STAGE_QUEUE:
		return ErrPipeline
	case STAGE_EXPORT:
		return ErrExport
	default:
		return ErrPipeline
	}
}

// StageError carries the item and stage a failure occurred in.
type StageError struct {
	Filename string
	Stage    Stage
	Kind     error
	Err      error
}

// NewStageError wraps err with the kind implied by stage.
func NewStageError(filename string, stage Stage, err error) *StageError {
	return &StageError{Filename: filename, Stage: stage, Kind: stage.Kind(), Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("item %q failed at %s: %v", e.Filename, e.Stage, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// StageOf reports the stage recorded in err, if any.
func StageOf(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}

	return "", false
}
