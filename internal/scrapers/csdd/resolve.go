package csdd

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"examcrawler/internal/components/telemetry"
)

const (
	report_resolve_unknown_choice = "resolve.unknown-choice"
	report_resolve_undiscoverable = "resolve.undiscoverable"
)

// ErrAnswerUndiscoverable is returned when the site rejects a trial answer without
// pointing out the correct one.
var ErrAnswerUndiscoverable = errors.New("answer undiscoverable")

// correctAnswerMarker is part of the error block that points out the correct choice.
const correctAnswerMarker = "Šī ir pareizā atbilde."

// the error block highlights the correct choice with `$("#atbilde-<id>").before(...)`
var correctChoiceRegex = regexp.MustCompile(`\$\("#atbilde-([^"]+)"\)\.before`)

// correctionFrom finds the id of the correct choice in the error text of a rejected
// submission.
func correctionFrom(errorText string) (string, bool) {
	for _, block := range strings.Split(errorText, "\n\n") {
		if !strings.Contains(block, correctAnswerMarker) {
			continue
		}
		groups := correctChoiceRegex.FindStringSubmatch(block)
		if len(groups) < 2 || groups[1] == "" {
			continue
		}
		return groups[1], true
	}
	return "", false
}

// resolveAnswer discovers the correct choice of the page by submitting its first choice.
// When the site rejects it, the choice it points out is submitted instead so the
// exam carries on as if it was answered correctly.
func resolveAnswer(ctx context.Context, c *client, page Page, tel telemetry.API) (string, error) {
	trial := page.Question.Choices[0].ID

	errorText, err := c.SubmitAnswer(ctx, page, trial)
	if errors.Is(err, ErrAnswerUndiscoverable) {
		tel.ReportWarning(report_resolve_undiscoverable, err, page.ExjID)
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("submit trial answer: %w", err)
	}
	if errorText == "" {
		return trial, nil
	}

	correct, ok := correctionFrom(errorText)
	if !ok {
		tel.ReportWarning(report_resolve_undiscoverable, ErrAnswerUndiscoverable, page.ExjID, errorText)
		return "", ErrAnswerUndiscoverable
	}

	known := false
	for _, choice := range page.Question.Choices {
		if choice.ID == correct {
			known = true
			break
		}
	}
	if !known {
		tel.ReportWarning(
			report_resolve_unknown_choice,
			fmt.Errorf("corrected choice %q is not one of the page's choices", correct),
			page.ExjID,
		)
	}

	// the second submission only completes the transaction, its result does not matter
	_, err = c.SubmitAnswer(ctx, page, correct)
	if err != nil && !errors.Is(err, ErrAnswerUndiscoverable) {
		return "", fmt.Errorf("submit corrected answer: %w", err)
	}
	return correct, nil
}
