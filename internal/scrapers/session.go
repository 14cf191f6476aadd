// Package scrapers contains what the exam site scrapers share: building a session bound
// http client and checking its responses.
package scrapers

import (
	"crypto/tls"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"examcrawler/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// SessionOptions configures the http client of a single exam session.
type SessionOptions struct {
	BaseUrl   string
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
	// RequestsPerSecond limits the request rate, 0 means unlimited.
	RequestsPerSecond float64
	// InsecureSkipVerify disables tls certificate validation. Both exam sites serve
	// certificates that do not validate, this only ever applies to the session's own client.
	InsecureSkipVerify bool
	// CloudflareBypass makes the tls fingerprint and headers look like a browser.
	CloudflareBypass bool
	// Dump receives every request/response pair, it may be nil.
	Dump telemetry.MessageOutput
}

// NewSession creates a resty client with its own cookie jar, every request made through
// it shares the same server side session.
func NewSession(opts SessionOptions, tel telemetry.API) (*resty.Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", opts.BaseUrl)
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)

	if opts.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	// the bypass wraps the transport, so tls settings must be applied before it
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)
	client.SetHeaders(opts.Headers)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)

	if opts.RequestsPerSecond > 0 {
		// max burst >= 1 just means that no requests will be dropped
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, tel, opts.Dump)

	return client, nil
}

// StatusError is returned for any response outside of the 2xx range.
type StatusError struct {
	Method     string
	Url        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %s", e.Method, e.Url, e.Status)
}

// CheckResponse turns a non-2xx response into a *StatusError.
func CheckResponse(res *resty.Response) error {
	code := res.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	return &StatusError{
		Method:     res.Request.Method,
		Url:        res.Request.URL,
		StatusCode: code,
		Status:     res.Status(),
	}
}
