package journal

import (
	"math/rand/v2"
	"strings"

	_ "embed"
)

//go:embed reflection_questions.txt
var reflectionQuestionsRaw string

// ReflectionCursor selects the next reflection question from a fixed ordered
// list. In the default deterministic mode the cursor is indexed by the count
// of reflection entries already answered, so every question is asked exactly
// once in list order and the cursor never wraps. Random mode picks uniformly
// from the full list on every call and may repeat.
type ReflectionCursor struct {
	questions []string
	random    bool
}

// CursorOption configures a ReflectionCursor.
type CursorOption func(*ReflectionCursor)

// WithQuestions replaces the embedded default question list.
func WithQuestions(questions []string) CursorOption {
	return func(c *ReflectionCursor) { c.questions = questions }
}

// WithRandomSelection switches the cursor to random mode.
func WithRandomSelection() CursorOption {
	return func(c *ReflectionCursor) { c.random = true }
}

// NewReflectionCursor creates a cursor over the embedded question list.
func NewReflectionCursor(opts ...CursorOption) *ReflectionCursor {
	c := &ReflectionCursor{questions: parseQuestions(reflectionQuestionsRaw)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// parseQuestions splits raw question text into one question per non-empty line.
func parseQuestions(raw string) []string {
	var questions []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			questions = append(questions, line)
		}
	}
	return questions
}

// Next returns the next question given how many reflection entries have
// already been consumed. The second return value is false once the list is
// exhausted (deterministic mode) or the list is empty.
func (c *ReflectionCursor) Next(consumed int) (string, bool) {
	if len(c.questions) == 0 {
		return "", false
	}
	if c.random {
		return c.questions[rand.IntN(len(c.questions))], true
	}
	if consumed < 0 || consumed >= len(c.questions) {
		return "", false
	}
	return c.questions[consumed], true
}

// Len returns the number of questions in the list.
func (c *ReflectionCursor) Len() int {
	return len(c.questions)
}
