package csdd

import (
	"time"

	"examcrawler/internal/components/telemetry"
	"examcrawler/internal/scrapers"
)

// Config describes the site, it is never modified after a scraper is built with it.
type Config struct {
	BaseUrl                string `json:"base_url"`
	SelectCategoryEndpoint string `json:"select_category_endpoint"`
	QuestionEndpoint       string `json:"question_endpoint"`
	// TestAnswerEndpoint takes answers for questions that are not part of a graded exam.
	TestAnswerEndpoint string `json:"test_answer_endpoint"`
	AnswerEndpoint     string `json:"answer_endpoint"`
	Category           string `json:"category"`
	Language           string `json:"language"`
	QuestionsPerExam   int    `json:"questions_per_exam"`

	UserAgent          string            `json:"user_agent"`
	Headers            map[string]string `json:"headers"`
	TimeoutSeconds     int               `json:"timeout_seconds"`
	RequestsPerSecond  float64           `json:"requests_per_second"`
	InsecureSkipVerify *bool             `json:"insecure_skip_verify"`
	CloudflareBypass   bool              `json:"cloudflare_bypass"`
}

func DefaultConfig() Config {
	insecure := true
	return Config{
		BaseUrl:                "https://csnt2.csdd.lv",
		SelectCategoryEndpoint: "/sbm_kat",
		QuestionEndpoint:       "/LAT",
		TestAnswerEndpoint:     "/LAT/parb_ins",
		AnswerEndpoint:         "/LAT/atb_ins",
		// category B, in latvian
		Category:           "52",
		Language:           "LAT",
		QuestionsPerExam:   30,
		TimeoutSeconds:     30,
		RequestsPerSecond:  2,
		InsecureSkipVerify: &insecure,
	}
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) insecureSkipVerify() bool {
	return c.InsecureSkipVerify == nil || *c.InsecureSkipVerify
}

// SessionOptions returns the options of a session against the site, `dump` may be nil.
func (c Config) SessionOptions(dump telemetry.MessageOutput) scrapers.SessionOptions {
	return scrapers.SessionOptions{
		BaseUrl:            c.BaseUrl,
		UserAgent:          c.UserAgent,
		Headers:            c.Headers,
		Timeout:            c.timeout(),
		RequestsPerSecond:  c.RequestsPerSecond,
		InsecureSkipVerify: c.insecureSkipVerify(),
		CloudflareBypass:   c.CloudflareBypass,
		Dump:               dump,
	}
}
