package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ProfileIncompleteError is returned when a session is started with blank
// or non-numeric required intake fields. It is user-correctable.
type ProfileIncompleteError struct {
	Missing []string
}

func (e *ProfileIncompleteError) Error() string {
	return fmt.Sprintf("profile incomplete: missing %s", strings.Join(e.Missing, ", "))
}

var (
	// ErrSessionAlreadyComplete rejects mutations after the final answer.
	ErrSessionAlreadyComplete = eris.New("session already complete")
	// ErrSessionNotStarted rejects calls before Start.
	ErrSessionNotStarted = eris.New("session not started")
	// ErrSessionStarted rejects a second Start.
	ErrSessionStarted = eris.New("session already started")
	// ErrSessionIncomplete rejects evaluation before the final answer.
	ErrSessionIncomplete = eris.New("session not complete")
	// ErrSubmissionPending rejects an answer while another is being processed.
	ErrSubmissionPending = eris.New("answer submission already pending")
	// ErrNoActiveQuestion rejects an answer when no question is showing.
	ErrNoActiveQuestion = eris.New("no question is showing")
	// ErrNothingToUndo rejects GoBack before the first answer.
	ErrNothingToUndo = eris.New("no answered question to go back to")
	// ErrInvalidAnswer rejects an answer that does not match its question type.
	ErrInvalidAnswer = eris.New("answer does not match question")

	// ErrGenerationTimeout means the question generator did not reply in time.
	ErrGenerationTimeout = eris.New("question generation timed out")
	// ErrGenerationMalformed means the generator reply failed validation.
	ErrGenerationMalformed = eris.New("question generation reply malformed")
	// ErrDuplicateQuestion means a candidate question was already asked.
	ErrDuplicateQuestion = eris.New("duplicate question")

	// ErrEvaluationService means the evaluator failed or replied badly.
	ErrEvaluationService = eris.New("evaluation service error")
	// ErrEvaluationTimeout means the evaluator did not reply in time.
	ErrEvaluationTimeout = eris.New("evaluation timed out")

	// ErrPersistence means a listener failed to store session state that
	// is already applied in memory.
	ErrPersistence = eris.New("session state not persisted")

	// ErrNotFound is returned by stores for unknown keys.
	ErrNotFound = eris.New("not found")
)
