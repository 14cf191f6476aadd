// scraper.go strings the calls of client.go together into a whole exam attempt.

package csdd

import (
	"context"
	"errors"
	"fmt"

	"examcrawler/internal/components/assert"
	"examcrawler/internal/components/telemetry"
	"examcrawler/internal/exam"
)

const (
	report_scraper_take_exam = "scraper.take-exam"
	report_scraper_extract   = "scraper.extract"
)

// Scraper takes exams on csnt2.csdd.lv, the site serves each question as an html form
// and only reveals the correct answer after one is submitted.
type Scraper struct {
	cfg  Config
	dump telemetry.MessageOutput
	tel  telemetry.API
}

// NewScraper creates a Scraper, `dump` may be nil.
func NewScraper(cfg Config, dump telemetry.MessageOutput, tel telemetry.API) Scraper {
	assert.NotNil(tel)
	assert.NotEmptyStr(cfg.BaseUrl)
	assert.Positive(cfg.QuestionsPerExam)

	return Scraper{
		cfg:  cfg,
		dump: dump,
		tel:  telemetry.NewScopedAPI("csdd_scraper", tel),
	}
}

func (s Scraper) Name() string {
	return "csdd"
}

func (s Scraper) BaseUrl() string {
	return s.cfg.BaseUrl
}

// TakeExam runs one exam attempt in a fresh session, fetching and answering
// QuestionsPerExam questions in the order the site serves them.
//
// Questions whose answer cannot be discovered end up in Attempt.Unresolved, any other
// failure aborts the attempt.
func (s Scraper) TakeExam(ctx context.Context) (exam.Attempt, error) {
	c, err := newClient(s.cfg, s.dump, s.tel)
	if err != nil {
		s.tel.ReportBroken(report_scraper_take_exam, fmt.Errorf("create client: %w", err))
		return exam.Attempt{}, err
	}

	err = c.SelectCategory(ctx)
	if err != nil {
		return exam.Attempt{}, fmt.Errorf("csdd: select category: %w", err)
	}

	attempt := exam.Attempt{
		Questions: make([]exam.Question, 0, s.cfg.QuestionsPerExam),
	}
	for i := 0; i < s.cfg.QuestionsPerExam; i++ {
		body, err := c.Question(ctx)
		if err != nil {
			return exam.Attempt{}, fmt.Errorf("csdd: get question %d: %w", i, err)
		}
		page, err := ExtractPage(body)
		if err != nil {
			s.tel.ReportBroken(report_scraper_extract, err, i)
			return exam.Attempt{}, fmt.Errorf("csdd: extract question %d: %w", i, err)
		}

		answer, err := resolveAnswer(ctx, c, page, s.tel)
		if errors.Is(err, ErrAnswerUndiscoverable) {
			attempt.Unresolved = append(attempt.Unresolved, exam.Unresolved{
				Question: page.Question,
				Err:      err,
			})
			continue
		}
		if err != nil {
			return exam.Attempt{}, fmt.Errorf("csdd: resolve answer of %s: %w", page.ExjID, err)
		}

		q := page.Question
		q.Answer = answer
		attempt.Questions = append(attempt.Questions, q)
	}

	s.tel.ReportDebug(report_scraper_take_exam, len(attempt.Questions), len(attempt.Unresolved))
	return attempt, nil
}
