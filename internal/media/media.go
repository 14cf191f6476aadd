// Package media downloads the images and videos questions refer to.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"examcrawler/internal/components/assert"
	"examcrawler/internal/components/telemetry"
	"examcrawler/internal/exam"
	"examcrawler/internal/scrapers"

	"github.com/go-resty/resty/v2"
)

const (
	report_download = "download"
	report_skip     = "skip"
)

const DefaultDir = "multimedia"

// IsInline reports whether `ref` carries its data inline instead of pointing at a file.
func IsInline(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// FileName is the final path segment of `ref`, the name its download is saved under.
func FileName(ref string) string {
	parsed, err := url.Parse(ref)
	if err == nil {
		ref = parsed.Path
	}
	return path.Base(strings.TrimRight(ref, "/"))
}

// Resolve resolves `ref` against `base`, absolute references are returned unchanged.
func Resolve(base, ref string) (string, error) {
	baseUrl, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	refUrl, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse media url: %w", err)
	}
	return baseUrl.ResolveReference(refUrl).String(), nil
}

// Downloader saves media into a single directory, overwriting files that already exist.
type Downloader struct {
	http *resty.Client
	base string
	dir  string
	tel  telemetry.API
}

// NewDownloader creates a Downloader resolving relative references against the base url
// of `opts`.
func NewDownloader(opts scrapers.SessionOptions, dir string, tel telemetry.API) (Downloader, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(dir)

	tel = telemetry.NewScopedAPI("media", tel)
	client, err := scrapers.NewSession(opts, tel)
	if err != nil {
		return Downloader{}, err
	}
	// redirects to a cdn are expected when downloading
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	return Downloader{http: client, base: opts.BaseUrl, dir: dir, tel: tel}, nil
}

// Download fetches the media of every question, every failure is reported and joined
// into the returned error once all downloads were attempted. It returns the paths of
// the files written.
func (d Downloader) Download(ctx context.Context, questions []exam.Question) ([]string, error) {
	err := os.MkdirAll(d.dir, 0755)
	if err != nil {
		return nil, err
	}

	var written []string
	var errlist []error
	for _, q := range questions {
		if q.Media == "" {
			continue
		}
		if IsInline(q.Media) {
			d.tel.ReportDebug(report_skip, q.ID)
			continue
		}

		out, err := d.download(ctx, q.Media)
		if err != nil {
			d.tel.ReportWarning(report_download, err, q.Media)
			errlist = append(errlist, fmt.Errorf("download %s: %w", q.Media, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		written = append(written, out)
	}

	return written, errors.Join(errlist...)
}

func (d Downloader) download(ctx context.Context, ref string) (string, error) {
	name := FileName(ref)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("no file name in %q", ref)
	}

	target, err := Resolve(d.base, ref)
	if err != nil {
		return "", err
	}

	res, err := d.http.R().
		SetContext(ctx).
		Get(target)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	err = scrapers.CheckResponse(res)
	if err != nil {
		return "", err
	}

	out := filepath.Join(d.dir, name)
	err = os.WriteFile(out, res.Body(), 0644)
	if err != nil {
		return "", err
	}
	return out, nil
}
