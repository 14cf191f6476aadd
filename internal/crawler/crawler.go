// Package crawler repeats exam attempts against a site and folds every question seen
// into one deduplicated bank.
package crawler

import (
	"context"
	"fmt"

	"examcrawler/internal/components/assert"
	"examcrawler/internal/components/telemetry"
	"examcrawler/internal/exam"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("examcrawler/internal/crawler")
var meter = otel.Meter("examcrawler/internal/crawler")

const (
	report_attempt        = "attempt"
	report_unresolved     = "unresolved"
	report_no_signature   = "no-signature"
	report_near_duplicate = "near-duplicate"
	report_banked         = "banked"
)

// NearDuplicateThreshold is the Jaro-Winkler similarity above which a new question is
// reported as a likely rewording of one already banked.
const NearDuplicateThreshold = 0.97

// Exam is a site a crawler can take exams on.
type Exam interface {
	Name() string
	// TakeExam runs one attempt with a fresh session.
	TakeExam(ctx context.Context) (exam.Attempt, error)
}

// AttemptStats describes what a single attempt contributed to the bank.
type AttemptStats struct {
	// Attempt is the 0-based index of the attempt.
	Attempt int
	// Seen is the number of questions the attempt served.
	Seen int
	// New is the number of questions that were banked.
	New int
	// Duplicates is the number of questions already in the bank.
	Duplicates int
	// Skipped is the number of questions with no answer or no signature.
	Skipped int
}

// Result is the outcome of a crawl.
type Result struct {
	Bank     *exam.Bank
	Attempts []AttemptStats
}

type Crawler struct {
	exam Exam
	tel  telemetry.API

	banked     metric.Int64Counter
	duplicates metric.Int64Counter
	skipped    metric.Int64Counter
}

func NewCrawler(e Exam, tel telemetry.API) Crawler {
	assert.NotNil(e)
	assert.NotNil(tel)

	// instruments of the global meter never fail to be created
	banked, _ := meter.Int64Counter("questions_banked")
	duplicates, _ := meter.Int64Counter("questions_duplicate")
	skipped, _ := meter.Int64Counter("questions_skipped")

	return Crawler{
		exam:       e,
		tel:        telemetry.NewScopedAPI(fmt.Sprintf("crawler.%s", e.Name()), tel),
		banked:     banked,
		duplicates: duplicates,
		skipped:    skipped,
	}
}

// Run takes `attempts` exams in order, banking every question whose signature has not
// been seen before. Any attempt failing aborts the run.
func (c Crawler) Run(ctx context.Context, attempts int) (Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	span.SetAttributes(
		attribute.String("site", c.exam.Name()),
		attribute.Int("attempts", attempts),
	)

	result := Result{
		Bank:     exam.NewBank(),
		Attempts: make([]AttemptStats, 0, attempts),
	}
	for i := 0; i < attempts; i++ {
		stats, err := c.attempt(ctx, i, result.Bank)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return Result{}, fmt.Errorf("attempt %d: %w", i, err)
		}
		result.Attempts = append(result.Attempts, stats)
		c.tel.ReportCount(report_banked, int64(result.Bank.Len()))
	}

	span.SetAttributes(attribute.Int("banked", result.Bank.Len()))
	return result, nil
}

func (c Crawler) attempt(ctx context.Context, index int, bank *exam.Bank) (AttemptStats, error) {
	ctx, span := tracer.Start(ctx, "attempt")
	defer span.End()

	span.SetAttributes(attribute.Int("attempt", index))

	attempt, err := c.exam.TakeExam(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AttemptStats{}, err
	}

	stats := AttemptStats{
		Attempt: index,
		Seen:    attempt.Len(),
		Skipped: len(attempt.Unresolved),
	}
	for _, unresolved := range attempt.Unresolved {
		c.tel.ReportWarning(report_unresolved, unresolved.Err, index, unresolved.Question.ID)
	}

	for _, q := range attempt.Questions {
		if q.Signature == "" {
			stats.Skipped++
			c.tel.ReportWarning(report_no_signature, index, q.ID)
			continue
		}

		similar, score, found := bank.Similar(q, NearDuplicateThreshold)
		if !bank.Add(q) {
			stats.Duplicates++
			continue
		}
		stats.New++
		if found {
			c.tel.ReportWarning(report_near_duplicate, q.Signature, similar.Signature, score)
		}
	}

	c.banked.Add(ctx, int64(stats.New))
	c.duplicates.Add(ctx, int64(stats.Duplicates))
	c.skipped.Add(ctx, int64(stats.Skipped))
	span.SetAttributes(
		attribute.Int("seen", stats.Seen),
		attribute.Int("new", stats.New),
		attribute.Int("duplicates", stats.Duplicates),
		attribute.Int("skipped", stats.Skipped),
	)
	c.tel.ReportDebug(report_attempt, index, stats.Seen, stats.New, stats.Duplicates, stats.Skipped)

	return stats, nil
}
