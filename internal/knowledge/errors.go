package knowledge

import (
	"errors"
	"fmt"
)

// Error kinds produced by the answering pipeline. Remote clients wrap one of these so
// callers can classify a failure with errors.Is.
var (
	ErrEmptyQuery        = errors.New("query is empty")
	ErrEmbeddingService  = errors.New("embedding service error")
	ErrSearchDegraded    = errors.New("vector search degraded")
	ErrPromptTemplate    = errors.New("prompt template error")
	ErrTemplateRender    = errors.New("template render error")
	ErrCompletionService = errors.New("completion service error")
)

// Stage names a step of the answering pipeline.
type Stage string

const (
	StageStart     Stage = "start"
	StageEmbedded  Stage = "embedded"
	StageSearched  Stage = "searched"
	StageFormatted Stage = "formatted"
	StageCompleted Stage = "completed"
	StageDone      Stage = "done"
)

// StageError is the failed outcome of Pipeline.Answer. Stage is the state the
// pipeline was trying to reach; StageStart means the query was rejected up front.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("answer failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}
