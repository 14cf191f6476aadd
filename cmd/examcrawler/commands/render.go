package commands

import (
	"os"
	"path/filepath"
	"strings"

	"examcrawler/internal/components/serviceutil"
	"examcrawler/internal/report"

	"github.com/spf13/cobra"
)

var renderTitle *string
var renderSource *string
var renderMarkdown *bool

func init() {
	renderTitle = renderCmd.Flags().String("title", "Jautājumi", "The title of the report.")
	renderSource = renderCmd.Flags().String("source", "", "The data source named in the report.")
	renderMarkdown = renderCmd.Flags().Bool("markdown", false, "Also write a markdown report.")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render <questions.json> [--title TITLE] [--source URL] [--markdown]",
	Short: "Renders the html (and markdown) report of a previous crawl's json output next to it.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		input := args[0]
		data, err := os.ReadFile(input)
		if err != nil {
			serviceutil.Fatal("failed to read questions", err)
		}
		questions, err := report.ReadJSON(data)
		if err != nil {
			serviceutil.Fatal("failed to parse questions", err)
		}

		dir := filepath.Dir(input)
		prefix := strings.TrimSuffix(filepath.Base(input), "questions.json")
		if prefix == filepath.Base(input) {
			prefix = strings.TrimSuffix(prefix, filepath.Ext(prefix)) + "."
		}

		err = writeReports(dir, prefix, questions, report.Options{
			Title:  *renderTitle,
			Source: *renderSource,
		}, reportFormats{markdown: *renderMarkdown})
		if err != nil {
			serviceutil.Fatal("failed to write reports", err)
		}
	},
}
