// Package matcher counts how many submitted values match a stage's answers.
//
// Only the count is ever returned. Repeated submissions still leak one bit
// per guess through the count; that residual exposure is accepted.
package matcher

import (
	"crypto/subtle"

	"github.com/okian/stagegate/internal/domain/model"
)

// Count returns the number of positions where submitted equals the
// recorded answer, using exact byte equality. A challenge without
// answers never matches.
func Count(submitted [model.AnswerCount]string, c model.Challenge) int {
	if !c.HasAnswers() {
		return 0
	}
	n := 0
	for i := range submitted {
		n += equal(submitted[i], c.Answers[i])
	}
	return n
}

// AllCorrect reports whether a count opens the stage.
func AllCorrect(count int) bool {
	return count == model.AnswerCount
}

// equal compares in constant time with respect to content so response
// timing does not reveal which field matched.
func equal(a, b string) int {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b))
}
