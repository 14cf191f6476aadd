// Package exam holds the question records produced by the scrapers and the
// structures that deduplicate them across exam attempts.
package exam

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingField is returned when a server response lacks a field a question cannot
	// be built without.
	ErrMissingField = errors.New("missing field")
	// ErrInvalidField is returned when a field is present but unusable.
	ErrInvalidField = errors.New("invalid field")
)

// MissingField returns an error wrapping ErrMissingField for `name`.
func MissingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

// InvalidField returns an error wrapping ErrInvalidField for `name`.
func InvalidField(name string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidField, name, reason)
}

// Choice is one answer option. ID is empty on sites that send choices as plain strings.
type Choice struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

func (c Choice) String() string {
	if c.ID == "" {
		return c.Text
	}
	return fmt.Sprintf("%s: %s", c.ID, c.Text)
}

// Question is a single scraped question. It is never modified after it is built.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"question"`
	Choices []Choice `json:"choices"`
	// Answer is the correct choice's text, or its id when choices carry ids.
	Answer string `json:"answer"`
	// Media is a url or path to an image/video shown with the question, it may be empty.
	Media     string `json:"media"`
	Signature string `json:"signature"`
}

// AnswerChoice returns the choice Answer refers to.
func (q Question) AnswerChoice() (Choice, bool) {
	for _, c := range q.Choices {
		if c.ID != "" && c.ID == q.Answer {
			return c, true
		}
	}
	for _, c := range q.Choices {
		if c.ID == "" && c.Text == q.Answer {
			return c, true
		}
	}
	return Choice{}, false
}

// ContentSignature derives a signature from the content of a question alone, two questions
// with byte-identical text, choices and media always collapse into the same signature
// regardless of the id the server assigns them.
//
// It is the standard base64 encoding of sha256(text + "-" + choices joined by "|" + "-" + media).
func ContentSignature(text string, choices []string, media string) string {
	key := fmt.Sprintf("%s-%s-%s", text, strings.Join(choices, "|"), media)
	digest := sha256.Sum256([]byte(key))
	return base64.StdEncoding.EncodeToString(digest[:])
}
