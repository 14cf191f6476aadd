package commands

import (
	"fmt"
	"slices"
	"strings"

	"examcrawler/internal/components/configutil"
	"examcrawler/internal/components/telemetry"
	"examcrawler/internal/crawler"
	"examcrawler/internal/report"
	"examcrawler/internal/scrapers"
	"examcrawler/internal/scrapers/csdd"
	"examcrawler/internal/scrapers/vtua"
)

// Config is the contents of config.json5, every field left out falls back to the
// built-in defaults of the site.
type Config struct {
	Vtua vtua.Config `json:"vtua"`
	Csdd csdd.Config `json:"csdd"`
}

func defaultConfig() Config {
	return Config{
		Vtua: vtua.DefaultConfig(),
		Csdd: csdd.DefaultConfig(),
	}
}

func readConfig(path string) (Config, error) {
	return configutil.ReadConfigWithDefaults(path, defaultConfig())
}

// site is everything the crawl command needs to know about one exam site.
type site struct {
	exam            crawler.Exam
	session         scrapers.SessionOptions
	report          report.Options
	outputPrefix    string
	defaultAttempts int
}

var siteNames = []string{"vtua", "csdd"}

func newSite(name string, cfg Config, dump telemetry.MessageOutput, tel telemetry.API) (site, error) {
	switch name {
	case "vtua":
		return site{
			exam:    vtua.NewScraper(cfg.Vtua, dump, tel),
			session: cfg.Vtua.SessionOptions(nil),
			report: report.Options{
				Title:     "VTUA jautājumi traktoristiem",
				Source:    strings.TrimSuffix(cfg.Vtua.BaseUrl, "/") + "/",
				MediaBase: cfg.Vtua.BaseUrl,
			},
			outputPrefix:    "",
			defaultAttempts: 1000,
		}, nil
	case "csdd":
		return site{
			exam:    csdd.NewScraper(cfg.Csdd, dump, tel),
			session: cfg.Csdd.SessionOptions(nil),
			report: report.Options{
				Title:     "CSDD jautājumi B kategorijai",
				Source:    strings.TrimSuffix(cfg.Csdd.BaseUrl, "/") + "/",
				MediaBase: cfg.Csdd.BaseUrl,
			},
			outputPrefix:    "b.",
			defaultAttempts: 10,
		}, nil
	}
	return site{}, fmt.Errorf("unknown site %q, expected one of %s", name, strings.Join(siteNames, ", "))
}

func isSiteName(name string) bool {
	return slices.Contains(siteNames, name)
}
