package vtua

import (
	"encoding/json"
	"fmt"
	"strconv"

	"examcrawler/internal/exam"
)

type questionPayload struct {
	ID            *flexString `json:"questID"`
	Text          *string     `json:"text"`
	Answers       []string    `json:"answ"`
	CorrectAnswer *flexString `json:"coransw"`
	Picture       *string     `json:"picturedata"`
}

// ExtractQuestion turns the body of an examQuestion response into a question.
//
// The correct answer is sent as a 1-based index into the answers.
func ExtractQuestion(body []byte) (exam.Question, error) {
	var payload questionPayload
	err := json.Unmarshal(body, &payload)
	if err != nil {
		return exam.Question{}, fmt.Errorf("unmarshal json: %w", err)
	}

	if payload.ID == nil {
		return exam.Question{}, exam.MissingField("questID")
	}
	if payload.Text == nil {
		return exam.Question{}, exam.MissingField("text")
	}
	if payload.Answers == nil {
		return exam.Question{}, exam.MissingField("answ")
	}
	if payload.CorrectAnswer == nil {
		return exam.Question{}, exam.MissingField("coransw")
	}

	index, err := strconv.Atoi(string(*payload.CorrectAnswer))
	if err != nil {
		return exam.Question{}, exam.InvalidField("coransw", fmt.Sprintf("%q is not a number", *payload.CorrectAnswer))
	}
	if index < 1 || index > len(payload.Answers) {
		return exam.Question{}, exam.InvalidField(
			"coransw",
			fmt.Sprintf("%d is out of range for %d answers", index, len(payload.Answers)),
		)
	}

	var picture string
	if payload.Picture != nil {
		picture = *payload.Picture
	}

	choices := make([]exam.Choice, len(payload.Answers))
	for i, a := range payload.Answers {
		choices[i] = exam.Choice{Text: a}
	}

	return exam.Question{
		ID:        string(*payload.ID),
		Text:      *payload.Text,
		Choices:   choices,
		Answer:    payload.Answers[index-1],
		Media:     picture,
		Signature: exam.ContentSignature(*payload.Text, payload.Answers, picture),
	}, nil
}
