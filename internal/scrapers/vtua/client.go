// client.go contains the http calls against the site, it knows nothing about how
// the calls are strung together into an exam.

package vtua

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"examcrawler/internal/components/telemetry"
	"examcrawler/internal/scrapers"

	"github.com/go-resty/resty/v2"
)

const (
	report_client_exam_id       = "client.exam-id"
	report_client_question_list = "client.question-list"
	report_client_question      = "client.question"
)

type client struct {
	http *resty.Client
	cfg  Config
	tel  telemetry.API
}

func newClient(cfg Config, dump telemetry.MessageOutput, tel telemetry.API) (*client, error) {
	httpClient, err := scrapers.NewSession(cfg.SessionOptions(dump), tel)
	if err != nil {
		return nil, err
	}
	return &client{http: httpClient, cfg: cfg, tel: tel}, nil
}

// flexString is a json value the site sends either as a string or as a number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		err := json.Unmarshal(data, &s)
		if err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	err := json.Unmarshal(data, &n)
	if err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// post sends a form to `endpoint` and returns the raw body of a successful response.
func (c *client) post(ctx context.Context, endpoint string, form map[string]string) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	err = scrapers.CheckResponse(res)
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}

// ExamID starts a new exam and returns its id.
func (c *client) ExamID(ctx context.Context) (string, error) {
	body, err := c.post(ctx, c.cfg.ExamEndpoint, map[string]string{
		"cat":  c.cfg.Category,
		"lang": c.cfg.Language,
	})
	if err != nil {
		c.tel.ReportBroken(report_client_exam_id, err)
		return "", err
	}

	var parsed struct {
		ExamID *flexString `json:"examID"`
	}
	err = json.Unmarshal(body, &parsed)
	if err != nil {
		err = fmt.Errorf("unmarshal json: %w", err)
		c.tel.ReportBroken(report_client_exam_id, err)
		return "", err
	}
	if parsed.ExamID == nil || *parsed.ExamID == "" {
		err = fmt.Errorf("response has no examID")
		c.tel.ReportBroken(report_client_exam_id, err, string(body))
		return "", err
	}

	c.tel.ReportDebug(report_client_exam_id, string(*parsed.ExamID))
	return string(*parsed.ExamID), nil
}

// QuestionList returns the ids of every question of the exam in order.
func (c *client) QuestionList(ctx context.Context, examId string) ([]string, error) {
	body, err := c.post(ctx, c.cfg.QuestionEndpoint, map[string]string{
		"action": "questionList",
		"examid": examId,
	})
	if err != nil {
		c.tel.ReportBroken(report_client_question_list, err, examId)
		return nil, err
	}

	var parsed struct {
		Questions []flexString `json:"exam_questions"`
	}
	err = json.Unmarshal(body, &parsed)
	if err != nil {
		err = fmt.Errorf("unmarshal json: %w", err)
		c.tel.ReportBroken(report_client_question_list, err, examId)
		return nil, err
	}

	ids := make([]string, len(parsed.Questions))
	for i, id := range parsed.Questions {
		ids[i] = string(id)
	}
	return ids, nil
}

// Question returns the raw json body describing a single question.
func (c *client) Question(ctx context.Context, examId, questionId string) ([]byte, error) {
	body, err := c.post(ctx, c.cfg.QuestionEndpoint, map[string]string{
		"action":      "examQuestion",
		"examid":      examId,
		"question_id": questionId,
		"lang":        c.cfg.Language,
	})
	if err != nil {
		c.tel.ReportBroken(report_client_question, err, examId, questionId)
		return nil, err
	}
	return body, nil
}
