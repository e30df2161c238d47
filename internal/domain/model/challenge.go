package model

import "fmt"

// Stage bounds. Stages 1..GatedStages are counted by Team.StagesUnlocked;
// FinalStage is terminal and never increments it.
const (
	FirstStage  = 1
	GatedStages = 4
	FinalStage  = 5
)

// AnswerCount is the number of values carried by every token.
const AnswerCount = 3

// Challenge is the immutable definition of one stage.
//
// Answers holds the values that open this stage, which are the results of
// the previous stage's problem set. Stage 1 is the entry artifact and has
// none.
type Challenge struct {
	Stage    int
	Kind     string // "dataset", "website", "accessibility"
	Title    string
	Answers  []string
	Artifact string // file name of the artifact released when the stage opens
}

// HasAnswers reports whether the stage can be opened by a token.
func (c Challenge) HasAnswers() bool {
	return len(c.Answers) == AnswerCount
}

// Validate checks the definition is storable.
func (c Challenge) Validate() error {
	if c.Stage < FirstStage || c.Stage > FinalStage {
		return fmt.Errorf("%w: stage %d out of range", ErrInvalidInput, c.Stage)
	}
	if len(c.Answers) != 0 && len(c.Answers) != AnswerCount {
		return fmt.Errorf("%w: stage %d must have 0 or %d answers", ErrInvalidInput, c.Stage, AnswerCount)
	}
	if c.Artifact == "" {
		return fmt.Errorf("%w: stage %d has no artifact", ErrInvalidInput, c.Stage)
	}
	return nil
}
