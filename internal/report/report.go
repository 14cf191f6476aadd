// Package report renders a question bank into files meant for people to read.
package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
	"path"
	"strings"

	"examcrawler/internal/exam"
	"examcrawler/internal/media"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

//go:embed report.html.tmpl
var reportTemplateSource string

var reportTemplate = template.Must(template.New("report").Parse(reportTemplateSource))

var converter = md.NewConverter("", true, nil)

// Options describes the header of a report and where its media lives.
type Options struct {
	Title  string
	Source string
	// MediaBase resolves relative media references, it may be empty.
	MediaBase string
	// MediaDir points media at local copies made by the media downloader instead of the
	// site, it may be empty.
	MediaDir string
}

type questionView struct {
	Text    string
	Media   any
	Video   bool
	Choices []string
	Answer  string
}

type reportView struct {
	Title     string
	Source    string
	Questions []questionView
}

// HTML renders one page per question, in order.
func HTML(questions []exam.Question, opts Options) ([]byte, error) {
	view := reportView{
		Title:     opts.Title,
		Source:    opts.Source,
		Questions: make([]questionView, len(questions)),
	}
	for i, q := range questions {
		view.Questions[i] = newQuestionView(q, opts)
	}

	var buff bytes.Buffer
	err := reportTemplate.Execute(&buff, view)
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buff.Bytes(), nil
}

func newQuestionView(q exam.Question, opts Options) questionView {
	choices := make([]string, len(q.Choices))
	for i, c := range q.Choices {
		choices[i] = c.String()
	}

	answer := q.Answer
	choice, ok := q.AnswerChoice()
	if ok && choice.ID != "" {
		answer = choice.String()
	}

	view := questionView{
		Text:    q.Text,
		Choices: choices,
		Answer:  answer,
	}
	if q.Media == "" {
		return view
	}

	src := mediaSrc(q.Media, opts)
	view.Video = isVideo(src)
	if media.IsInline(src) {
		// inline data is only ever an image or a video embedded by the site itself
		view.Media = template.URL(src)
	} else {
		view.Media = src
	}
	return view
}

func mediaSrc(ref string, opts Options) string {
	if media.IsInline(ref) {
		return ref
	}
	if opts.MediaDir != "" {
		return path.Join(opts.MediaDir, media.FileName(ref))
	}
	if opts.MediaBase == "" {
		return ref
	}
	resolved, err := media.Resolve(opts.MediaBase, ref)
	if err != nil {
		return ref
	}
	return resolved
}

func isVideo(src string) bool {
	if strings.HasPrefix(src, "data:video/") {
		return true
	}
	parsed, err := url.Parse(src)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	return ext == ".mp4" || ext == ".webm"
}

// Markdown renders the html report as markdown.
func Markdown(questions []exam.Question, opts Options) (string, error) {
	html, err := HTML(questions, opts)
	if err != nil {
		return "", err
	}
	out, err := converter.ConvertString(string(html))
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return out, nil
}

// JSON renders the questions as an array indented with 4 spaces.
func JSON(questions []exam.Question) ([]byte, error) {
	if questions == nil {
		questions = []exam.Question{}
	}

	var buff bytes.Buffer
	encoder := json.NewEncoder(&buff)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	err := encoder.Encode(questions)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return buff.Bytes(), nil
}

// ReadJSON parses questions previously rendered with JSON.
func ReadJSON(data []byte) ([]exam.Question, error) {
	var questions []exam.Question
	err := json.Unmarshal(data, &questions)
	if err != nil {
		return nil, fmt.Errorf("unmarshal json: %w", err)
	}
	return questions, nil
}
