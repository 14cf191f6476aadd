// scraper.go strings the calls of client.go together into a whole exam attempt.

package vtua

import (
	"context"
	"fmt"

	"examcrawler/internal/components/assert"
	"examcrawler/internal/components/telemetry"
	"examcrawler/internal/exam"
)

const (
	report_scraper_take_exam = "scraper.take-exam"
	report_scraper_extract   = "scraper.extract"
)

// Scraper takes exams on csn.vtua.gov.lv, the site answers every call with json and
// reveals the correct answer along with each question.
type Scraper struct {
	cfg  Config
	dump telemetry.MessageOutput
	tel  telemetry.API
}

// NewScraper creates a Scraper, `dump` may be nil.
func NewScraper(cfg Config, dump telemetry.MessageOutput, tel telemetry.API) Scraper {
	assert.NotNil(tel)
	assert.NotEmptyStr(cfg.BaseUrl)

	return Scraper{
		cfg:  cfg,
		dump: dump,
		tel:  telemetry.NewScopedAPI("vtua_scraper", tel),
	}
}

func (s Scraper) Name() string {
	return "vtua"
}

func (s Scraper) BaseUrl() string {
	return s.cfg.BaseUrl
}

// TakeExam runs one exam attempt in a fresh session and returns its questions in the
// order the server listed them. The site always reveals the answer, so nothing is ever
// left unresolved.
func (s Scraper) TakeExam(ctx context.Context) (exam.Attempt, error) {
	c, err := newClient(s.cfg, s.dump, s.tel)
	if err != nil {
		s.tel.ReportBroken(report_scraper_take_exam, fmt.Errorf("create client: %w", err))
		return exam.Attempt{}, err
	}

	examId, err := c.ExamID(ctx)
	if err != nil {
		return exam.Attempt{}, fmt.Errorf("vtua: get exam id: %w", err)
	}
	questionIds, err := c.QuestionList(ctx, examId)
	if err != nil {
		return exam.Attempt{}, fmt.Errorf("vtua: list questions of exam %s: %w", examId, err)
	}
	s.tel.ReportDebug(report_scraper_take_exam, examId, len(questionIds))

	questions := make([]exam.Question, 0, len(questionIds))
	for _, questionId := range questionIds {
		body, err := c.Question(ctx, examId, questionId)
		if err != nil {
			return exam.Attempt{}, fmt.Errorf("vtua: get question %s: %w", questionId, err)
		}
		q, err := ExtractQuestion(body)
		if err != nil {
			s.tel.ReportBroken(report_scraper_extract, err, examId, questionId)
			return exam.Attempt{}, fmt.Errorf("vtua: extract question %s: %w", questionId, err)
		}
		questions = append(questions, q)
	}

	return exam.Attempt{Questions: questions}, nil
}
