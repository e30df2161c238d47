// Package token encodes and decodes challenge submission tokens.
//
// Grammar:
//
//	ERFT_stage<N>_p1-<v1>_p2-<v2>_p3-<v3>
//
// N is a positive decimal integer. v1 and v2 are non-empty and contain no
// '_'. v3 is the non-empty remainder of the string and may contain '_'.
package token

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/stagegate/internal/domain/model"
)

// Grammar literals.
const (
	Prefix    = "ERFT_stage"
	Separator = "_"
	label1    = "_p1-"
	label2    = "_p2-"
	label3    = "_p3-"
)

// Token is a decoded submission.
type Token struct {
	Stage  int
	Values [model.AnswerCount]string
}

// Parse decodes s. Any deviation from the grammar yields
// model.ErrMalformedToken and a zero Token.
func Parse(s string) (Token, error) {
	rest, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return Token{}, malformed(s, "missing prefix")
	}

	digits, rest, ok := strings.Cut(rest, label1)
	if !ok {
		return Token{}, malformed(s, "missing p1")
	}
	stage, err := parseStage(digits)
	if err != nil {
		return Token{}, malformed(s, err.Error())
	}

	v1, rest, ok := strings.Cut(rest, label2)
	if !ok || !plainValue(v1) {
		return Token{}, malformed(s, "bad p1")
	}
	v2, v3, ok := strings.Cut(rest, label3)
	if !ok || !plainValue(v2) {
		return Token{}, malformed(s, "bad p2")
	}
	if v3 == "" {
		return Token{}, malformed(s, "empty p3")
	}

	return Token{Stage: stage, Values: [model.AnswerCount]string{v1, v2, v3}}, nil
}

// Format encodes t. It is the inverse of Parse for tokens whose first two
// values are non-empty and free of the separator.
func Format(t Token) (string, error) {
	if t.Stage < 1 {
		return "", fmt.Errorf("%w: stage must be positive", model.ErrMalformedToken)
	}
	if !plainValue(t.Values[0]) || !plainValue(t.Values[1]) || t.Values[2] == "" {
		return "", fmt.Errorf("%w: values not encodable", model.ErrMalformedToken)
	}
	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteString(strconv.Itoa(t.Stage))
	b.WriteString(label1)
	b.WriteString(t.Values[0])
	b.WriteString(label2)
	b.WriteString(t.Values[1])
	b.WriteString(label3)
	b.WriteString(t.Values[2])
	return b.String(), nil
}

// IsCandidate reports whether s looks like a token at all; used by routers
// to claim a path before full decoding.
func IsCandidate(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

func parseStage(digits string) (int, error) {
	if digits == "" {
		return 0, fmt.Errorf("missing stage")
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("stage is not a number")
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("stage out of range")
	}
	if n < 1 {
		return 0, fmt.Errorf("stage must be positive")
	}
	return n, nil
}

func plainValue(v string) bool {
	return v != "" && !strings.Contains(v, Separator)
}

func malformed(s, why string) error {
	return fmt.Errorf("%w: %s: %q", model.ErrMalformedToken, why, s)
}
