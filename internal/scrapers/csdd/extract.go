package csdd

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"examcrawler/internal/components/htmlutil"
	"examcrawler/internal/exam"

	"github.com/PuerkitoBio/goquery"
)

// Page is a question page along with the hidden form values needed to answer it.
//
// Question.Answer is always empty on a freshly extracted page, the site only tells
// which choice is correct once an answer is submitted.
type Page struct {
	Question exam.Question
	// ExjID is the id of the question in the site's question bank.
	ExjID string
	// EceID and EcejaID are only present while taking a graded exam.
	EceID   string
	EcejaID string
}

var backgroundUrlRegex = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)

// ExtractPage parses the html of a question page.
func ExtractPage(body []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	heading := doc.Find("h3").First()
	if heading.Length() == 0 {
		return Page{}, exam.MissingField("h3")
	}
	text := htmlutil.CleanText(htmlutil.GetText(heading.Get(0)))

	exjId, exists := doc.Find("input[name=exj_id]").First().Attr("value")
	if !exists || exjId == "" {
		return Page{}, exam.MissingField("exj_id")
	}

	eceId := doc.Find("input[name=ece_id]").First().AttrOr("value", "")
	// older pages only carry ece_id, the form then expects it twice
	ecejaId := doc.Find("input[name=eceja_id]").First().AttrOr("value", eceId)

	choices, err := extractChoices(doc)
	if err != nil {
		return Page{}, err
	}

	return Page{
		Question: exam.Question{
			ID:        exjId,
			Text:      text,
			Choices:   choices,
			Media:     extractMedia(doc),
			Signature: exjId,
		},
		ExjID:   exjId,
		EceID:   eceId,
		EcejaID: ecejaId,
	}, nil
}

func extractChoices(doc *goquery.Document) ([]exam.Choice, error) {
	labels := doc.Find("form label")
	if labels.Length() == 0 {
		return nil, exam.MissingField("form label")
	}

	choices := make([]exam.Choice, 0, labels.Length())
	var missing error
	labels.EachWithBreak(func(i int, label *goquery.Selection) bool {
		input := label.Find("input").First()
		if input.Length() == 0 {
			missing = exam.MissingField(fmt.Sprintf("input of label %d", i))
			return false
		}
		id, exists := input.Attr("value")
		if !exists {
			missing = exam.MissingField(fmt.Sprintf("value of label %d", i))
			return false
		}

		text := htmlutil.TextAfter(input.Get(0))
		text = strings.NewReplacer("\t", "", "\n", "").Replace(text)

		choices = append(choices, exam.Choice{
			ID:   id,
			Text: htmlutil.CleanText(text),
		})
		return true
	})
	if missing != nil {
		return nil, missing
	}

	return choices, nil
}

// extractMedia returns the video of the question, or failing that the image set as the
// background of its content container.
func extractMedia(doc *goquery.Document) string {
	video := doc.Find("video source").First().AttrOr("src", "")
	if video != "" {
		return video
	}

	style := doc.Find("div.content-container").First().AttrOr("style", "")
	groups := backgroundUrlRegex.FindStringSubmatch(style)
	if len(groups) >= 2 {
		return strings.TrimSpace(groups[1])
	}
	parts := strings.Split(style, "'")
	if len(parts) >= 3 {
		return parts[1]
	}

	return ""
}
