// client.go contains the http calls against the site, it knows nothing about how
// the calls are strung together into an exam.

package csdd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"examcrawler/internal/components/telemetry"
	"examcrawler/internal/scrapers"

	"github.com/go-resty/resty/v2"
)

const (
	report_client_select_category = "client.select-category"
	report_client_question        = "client.question"
	report_client_submit_answer   = "client.submit-answer"
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

// SelectCategory binds the session to the configured category and language, it must
// be called before the first question is requested.
func (c *client) SelectCategory(ctx context.Context) error {
	_, err := c.post(ctx, c.cfg.SelectCategoryEndpoint, map[string]string{
		"perform": "confirm",
		"ext_id":  c.cfg.Category,
		"valoda":  c.cfg.Language,
	})
	if err != nil {
		c.tel.ReportBroken(report_client_select_category, err, c.cfg.Category, c.cfg.Language)
		return err
	}
	return nil
}

// Question returns the html of the session's current question.
func (c *client) Question(ctx context.Context) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(c.cfg.QuestionEndpoint)
	if err != nil {
		err = fmt.Errorf("fetch: %w", err)
		c.tel.ReportBroken(report_client_question, err)
		return nil, err
	}
	err = scrapers.CheckResponse(res)
	if err != nil {
		c.tel.ReportBroken(report_client_question, err)
		return nil, err
	}
	return res.Body(), nil
}

// answerForm builds the form that submits `selectedId` as the answer to the page.
func answerForm(page Page, selectedId string) map[string]string {
	form := map[string]string{
		"perform": "confirm",
		"exj_id":  page.ExjID,
	}
	if page.EceID != "" {
		form["ece_id"] = page.EceID
		form["eceja_id"] = page.EcejaID
	}
	for i, choice := range page.Question.Choices {
		form[fmt.Sprintf("atbildes[%d][exa_id]", i)] = choice.ID
		selected := "false"
		if choice.ID == selectedId {
			selected = "true"
		}
		form[fmt.Sprintf("atbildes[%d][sel]", i)] = selected
	}
	return form
}

// submitResponse is the json the site answers a submission with.
//
// `errors` is a string, or an array of strings, when the submission is rejected. When
// it is accepted the site sends false, null, an empty string or an empty array
// depending on the page.
type submitResponse struct {
	Errors json.RawMessage `json:"errors"`
}

// errorText returns the rejection text of the response, "" when the answer was accepted.
// Any other shape of `errors` is neither an acceptance nor a correction.
func (r submitResponse) errorText() (string, error) {
	raw := strings.TrimSpace(string(r.Errors))
	switch raw {
	case "", "null", "false", `""`:
		return "", nil
	}

	var text string
	err := json.Unmarshal(r.Errors, &text)
	if err == nil {
		return text, nil
	}

	var blocks []string
	err = json.Unmarshal(r.Errors, &blocks)
	if err == nil {
		if len(blocks) == 0 {
			return "", nil
		}
		text = strings.Join(blocks, "\n\n")
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}

	if len(raw) > 200 {
		raw = raw[:200]
	}
	return "", fmt.Errorf("%w: unexpected errors value %s", ErrAnswerUndiscoverable, raw)
}

// SubmitAnswer submits `selectedId` as the answer to the page and returns the error
// text of the response, which is empty when the site accepted the answer. A response
// that is neither returns an error wrapping ErrAnswerUndiscoverable.
func (c *client) SubmitAnswer(ctx context.Context, page Page, selectedId string) (string, error) {
	endpoint := c.cfg.TestAnswerEndpoint
	if page.EceID != "" {
		endpoint = c.cfg.AnswerEndpoint
	}

	body, err := c.post(ctx, endpoint, answerForm(page, selectedId))
	if err != nil {
		c.tel.ReportBroken(report_client_submit_answer, err, page.ExjID)
		return "", err
	}

	var parsed submitResponse
	err = json.Unmarshal(body, &parsed)
	if err != nil {
		err = fmt.Errorf("unmarshal json: %w", err)
		c.tel.ReportBroken(report_client_submit_answer, err, page.ExjID)
		return "", err
	}
	return parsed.errorText()
}
