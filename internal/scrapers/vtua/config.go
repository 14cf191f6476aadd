package vtua

import (
	"time"

	"examcrawler/internal/components/telemetry"
	"examcrawler/internal/scrapers"
)

// Config describes the site, it is never modified after a scraper is built with it.
type Config struct {
	BaseUrl          string `json:"base_url"`
	ExamEndpoint     string `json:"exam_endpoint"`
	QuestionEndpoint string `json:"question_endpoint"`
	Language         string `json:"language"`
	Category         string `json:"category"`

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
		BaseUrl:            "https://csn.vtua.gov.lv",
		ExamEndpoint:       "/files/test_but1.php",
		QuestionEndpoint:   "/files/exam_questions.php",
		Language:           "lv",
		Category:           "1",
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
