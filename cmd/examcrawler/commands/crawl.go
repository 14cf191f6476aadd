package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"examcrawler/internal/archive"
	"examcrawler/internal/components/chrono"
	"examcrawler/internal/components/serviceutil"
	"examcrawler/internal/components/telemetry"
	"examcrawler/internal/crawler"
	"examcrawler/internal/exam"
	"examcrawler/internal/media"
	"examcrawler/internal/report"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var crawlAttempts *int
var crawlOut *string
var crawlMedia *bool
var crawlMediaDir *string
var crawlDb *string
var crawlMarkdown *bool
var crawlDumpHttp *string

func init() {
	crawlAttempts = crawlCmd.Flags().IntP("attempts", "n", 0, "The number of exams to take, defaults to 1000 for vtua and 10 for csdd.")
	crawlOut = crawlCmd.Flags().StringP("out", "o", ".", "The directory to write the reports to.")
	crawlMedia = crawlCmd.Flags().Bool("media", false, "Download the images and videos of every question.")
	crawlMediaDir = crawlCmd.Flags().String("media-dir", media.DefaultDir, "The directory (relative to --out) to download media to.")
	crawlDb = crawlCmd.Flags().String("db", "", "A sqlite database to archive questions in across crawls.")
	crawlMarkdown = crawlCmd.Flags().Bool("markdown", false, "Also write a markdown report.")
	crawlDumpHttp = crawlCmd.Flags().String("dump-http", "", "A directory to dump every http request and response to.")
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl <vtua|csdd> [--attempts N] [--out DIR] [--media] [--media-dir DIR] [--db FILE] [--markdown] [--dump-http DIR] [--config FILE]",
	Short: "Takes exams on a site and writes every unique question it saw.",
	Args: func(cmd *cobra.Command, args []string) error {
		err := cobra.ExactArgs(1)(cmd, args)
		if err != nil {
			return err
		}
		if !isSiteName(args[0]) {
			return fmt.Errorf("unknown site %q, expected one of %v", args[0], siteNames)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := readConfig(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		shutdown := setupOtel(ctx)
		defer shutdown()

		var dump telemetry.MessageOutput
		if *crawlDumpHttp != "" {
			output, err := telemetry.NewFilesystemOutput(*crawlDumpHttp)
			if err != nil {
				serviceutil.Fatal("failed to create http dump directory", err)
			}
			dump = output
		}

		tel := telemetry.SlogAPI{}
		s, err := newSite(args[0], cfg, dump, tel)
		if err != nil {
			serviceutil.Fatal("failed to create site", err)
		}
		attempts := *crawlAttempts
		if attempts <= 0 {
			attempts = s.defaultAttempts
		}

		slog.Info("crawling", "site", s.exam.Name(), "attempts", attempts)
		start := time.Now()
		result, err := crawler.NewCrawler(s.exam, tel).Run(ctx, attempts)
		if err != nil {
			serviceutil.Fatal("crawl failed", err)
		}
		questions := result.Bank.Questions()
		slog.Info(
			"crawl finished",
			"questions", len(questions),
			"seconds", time.Since(start).Seconds(),
		)

		opts := s.report
		if *crawlMedia {
			opts.MediaDir = *crawlMediaDir
		}
		err = writeReports(*crawlOut, s.outputPrefix, questions, opts, reportFormats{json: true, markdown: *crawlMarkdown})
		if err != nil {
			serviceutil.Fatal("failed to write reports", err)
		}

		if *crawlMedia {
			downloadMedia(ctx, s, questions, tel)
		}
		if *crawlDb != "" {
			archiveQuestions(ctx, *crawlDb, s.exam.Name(), attempts, questions)
		}

		printSummary(os.Stdout, result)
	},
}

// setupOtel exports traces and metrics when a telemetry.json5 exists, the returned
// function flushes them.
func setupOtel(ctx context.Context) func() {
	otel, err := telemetry.SetupFromEnv(ctx, "examcrawler")
	if os.IsNotExist(err) {
		slog.Debug("no telemetry.json5 found, telemetry export disabled")
		return func() {}
	}
	if err != nil {
		slog.Warn("failed to setup telemetry", "err", err)
		return func() {
			otel.Shutdown(context.Background())
		}
	}
	telemetry.InstrumentPerfStats(ctx, time.Second*15)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		err := otel.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	}
}

type reportFormats struct {
	json     bool
	markdown bool
}

// writeReports renders every report before writing any, so a failure never leaves
// partial output behind.
func writeReports(dir, prefix string, questions []exam.Question, opts report.Options, formats reportFormats) error {
	htmlReport, err := report.HTML(questions, opts)
	if err != nil {
		return err
	}
	files := map[string][]byte{
		prefix + "questions.html": htmlReport,
	}
	if formats.json {
		jsonReport, err := report.JSON(questions)
		if err != nil {
			return err
		}
		files[prefix+"questions.json"] = jsonReport
	}
	if formats.markdown {
		mdReport, err := report.Markdown(questions, opts)
		if err != nil {
			return err
		}
		files[prefix+"questions.md"] = []byte(mdReport)
	}

	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}
	for name, contents := range files {
		path := filepath.Join(dir, name)
		err = os.WriteFile(path, contents, 0644)
		if err != nil {
			return err
		}
		slog.Info("wrote report", "path", path)
	}
	return nil
}

func downloadMedia(ctx context.Context, s site, questions []exam.Question, tel telemetry.API) {
	downloader, err := media.NewDownloader(s.session, filepath.Join(*crawlOut, *crawlMediaDir), tel)
	if err != nil {
		serviceutil.Fatal("failed to create media downloader", err)
	}
	written, err := downloader.Download(ctx, questions)
	if err != nil {
		slog.Error("some media failed to download", "err", err)
	}
	slog.Info("downloaded media", "files", len(written))
}

func archiveQuestions(ctx context.Context, path, site string, attempts int, questions []exam.Question) {
	a, err := archive.Open(ctx, path, chrono.StandardTime{})
	if err != nil {
		serviceutil.Fatal("failed to open archive", err)
	}
	defer a.Close()

	run, err := a.Save(ctx, site, attempts, questions)
	if err != nil {
		serviceutil.Fatal("failed to archive questions", err)
	}
	total, err := a.Count(ctx, site)
	if err != nil {
		serviceutil.Fatal("failed to count archived questions", err)
	}
	slog.Info("archived questions", "run", run.ID, "new", run.New, "total", total)
}

func printSummary(out *os.File, result crawler.Result) {
	t := serviceutil.NewTable(out)
	t.AppendHeader(table.Row{"Attempt", "Seen", "New", "Duplicates", "Skipped"})

	var seen, duplicates, skipped int
	for _, stats := range result.Attempts {
		seen += stats.Seen
		duplicates += stats.Duplicates
		skipped += stats.Skipped
		// attempts that found nothing new would drown out the rest on long crawls
		if stats.New == 0 && len(result.Attempts) > 20 {
			continue
		}
		t.AppendRow(table.Row{stats.Attempt + 1, stats.Seen, stats.New, stats.Duplicates, stats.Skipped})
	}
	t.AppendFooter(table.Row{"Total", seen, result.Bank.Len(), duplicates, skipped})
	t.Render()
}
