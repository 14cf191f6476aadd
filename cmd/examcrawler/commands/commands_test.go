package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"examcrawler/internal/components/telemetry"
	"examcrawler/internal/exam"
	"examcrawler/internal/report"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := readConfig(filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "https://csn.vtua.gov.lv", cfg.Vtua.BaseUrl)
	require.Equal(t, 30, cfg.Csdd.QuestionsPerExam)

	err = os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		// answered questions only
		csdd: {
			questions_per_exam: 5,
			insecure_skip_verify: false,
		},
		vtua: {
			requests_per_second: 0,
		},
	}`), 0644)
	require.NoError(t, err)

	cfg, err = readConfig(filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Csdd.QuestionsPerExam)
	require.False(t, *cfg.Csdd.InsecureSkipVerify)
	require.False(t, cfg.Csdd.SessionOptions(nil).InsecureSkipVerify)
	require.True(t, cfg.Vtua.SessionOptions(nil).InsecureSkipVerify)
	require.Zero(t, cfg.Vtua.RequestsPerSecond)
	require.Equal(t, 2.0, cfg.Csdd.RequestsPerSecond)
	require.Equal(t, "https://csnt2.csdd.lv", cfg.Csdd.BaseUrl)
	require.Equal(t, "/LAT/parb_ins", cfg.Csdd.TestAnswerEndpoint)
	require.Equal(t, "https://csn.vtua.gov.lv", cfg.Vtua.BaseUrl)
}

func TestNewSite(t *testing.T) {
	cfg := defaultConfig()
	tel := telemetry.NewTestAPI()

	vtuaSite, err := newSite("vtua", cfg, nil, tel)
	require.NoError(t, err)
	require.Equal(t, "vtua", vtuaSite.exam.Name())
	require.Equal(t, "", vtuaSite.outputPrefix)
	require.Equal(t, 1000, vtuaSite.defaultAttempts)
	require.Equal(t, "https://csn.vtua.gov.lv/", vtuaSite.report.Source)

	csddSite, err := newSite("csdd", cfg, nil, tel)
	require.NoError(t, err)
	require.Equal(t, "csdd", csddSite.exam.Name())
	require.Equal(t, "b.", csddSite.outputPrefix)
	require.Equal(t, 10, csddSite.defaultAttempts)

	_, err = newSite("kurss", cfg, nil, tel)
	require.Error(t, err)
	require.False(t, isSiteName("kurss"))
}

func TestUsageNamesEveryFlag(t *testing.T) {
	for _, cmd := range []*cobra.Command{crawlCmd, renderCmd} {
		cmd.LocalFlags().VisitAll(func(flag *pflag.Flag) {
			require.Contains(t, cmd.Use, "--"+flag.Name, cmd.Name())
		})
	}
	require.Contains(t, crawlCmd.Use, "--config")
}

func TestWriteReports(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	questions := []exam.Question{
		{ID: "1", Text: "Q1", Choices: []exam.Choice{{Text: "A"}}, Answer: "A", Signature: "s1"},
		{ID: "2", Text: "Q2", Choices: []exam.Choice{{Text: "B"}}, Answer: "B", Signature: "s2"},
	}

	err := writeReports(dir, "b.", questions, report.Options{Title: "T"}, reportFormats{json: true, markdown: true})
	require.NoError(t, err)

	html, err := os.ReadFile(filepath.Join(dir, "b.questions.html"))
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(html), `<div style="page-break-before: always;">`))

	data, err := os.ReadFile(filepath.Join(dir, "b.questions.json"))
	require.NoError(t, err)
	parsed, err := report.ReadJSON(data)
	require.NoError(t, err)
	require.Equal(t, questions, parsed)

	_, err = os.Stat(filepath.Join(dir, "b.questions.md"))
	require.NoError(t, err)
}
