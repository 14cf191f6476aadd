package csdd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"examcrawler/internal/components/telemetry"
	"examcrawler/internal/exam"
	"examcrawler/internal/scrapers"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const examPage = `<html>
<body>
	<div class="content-container" style="background-image: url('/images/q/1.jpg');"></div>
	<h3>
		Kurš transportlīdzeklis brauc pirmais?
	</h3>
	<form method="post">
		<input type="hidden" name="exj_id" value="4512">
		<input type="hidden" name="ece_id" value="88">
		<input type="hidden" name="eceja_id" value="89">
		<label>
			<input type="radio" name="atbilde" value="X">
			Zilais  automobilis
		</label>
		<label>
			<input type="radio" name="atbilde" value="Y">
			<b>Sarkanais</b> automobilis
		</label>
	</form>
</body>
</html>`

func TestExtractPage(t *testing.T) {
	page, err := ExtractPage([]byte(examPage))
	if err != nil {
		t.Fatal(err)
	}

	expected := Page{
		Question: exam.Question{
			ID:   "4512",
			Text: "Kurš transportlīdzeklis brauc pirmais?",
			Choices: []exam.Choice{
				{ID: "X", Text: "Zilais automobilis"},
				{ID: "Y", Text: "Sarkanais automobilis"},
			},
			Media:     "/images/q/1.jpg",
			Signature: "4512",
		},
		ExjID:   "4512",
		EceID:   "88",
		EcejaID: "89",
	}
	if diff := cmp.Diff(expected, page); diff != "" {
		t.Fatal(diff)
	}
}

func TestExtractPageMedia(t *testing.T) {
	table := []struct {
		media    string
		expected string
	}{
		{
			media:    `<video><source src="/video/9.mp4" type="video/mp4"></video><div class="content-container" style="background-image: url('/img/9.jpg')"></div>`,
			expected: "/video/9.mp4",
		},
		{
			media:    `<div class="content-container" style="background-image: url(&quot;/img/9.jpg&quot;)"></div>`,
			expected: "/img/9.jpg",
		},
		{
			media:    `<div class="content-container" style="background: url( /img/10.jpg ) no-repeat"></div>`,
			expected: "/img/10.jpg",
		},
		{
			media:    `<div class="content-container"></div>`,
			expected: "",
		},
		{
			media:    ``,
			expected: "",
		},
	}

	for _, row := range table {
		body := fmt.Sprintf(
			`<html><body>%s<h3>Q?</h3><form><input type="hidden" name="exj_id" value="1"><label><input value="A">a</label></form></body></html>`,
			row.media,
		)
		page, err := ExtractPage([]byte(body))
		require.NoError(t, err, row.media)
		require.Equal(t, row.expected, page.Question.Media, row.media)
	}
}

func TestExtractPageWithoutExam(t *testing.T) {
	page, err := ExtractPage([]byte(`<html><body><h3>Q?</h3><form>
		<input type="hidden" name="exj_id" value="7">
		<label><input value="A">a</label>
	</form></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "", page.EceID)
	require.Equal(t, "", page.EcejaID)
}

func TestExtractPageHeadingMarkup(t *testing.T) {
	page, err := ExtractPage([]byte(`<html><body><h3>
		Kā rīkoties, ja <b>luksofors</b>
		<span>mirgo dzeltenā</span> krāsā?
	</h3><form>
		<input type="hidden" name="exj_id" value="7">
		<label><input value="A">a</label>
	</form></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "Kā rīkoties, ja luksofors mirgo dzeltenā krāsā?", page.Question.Text)
}

func TestExtractPageEcejaFallback(t *testing.T) {
	page, err := ExtractPage([]byte(`<html><body><h3>Q?</h3><form>
		<input type="hidden" name="exj_id" value="7">
		<input type="hidden" name="ece_id" value="55">
		<label><input value="A">a</label>
	</form></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "55", page.EceID)
	require.Equal(t, "55", page.EcejaID)
}

func TestExtractPageErrors(t *testing.T) {
	table := []string{
		// no heading
		`<html><body><form><input type="hidden" name="exj_id" value="1"><label><input value="A">a</label></form></body></html>`,
		// no question id
		`<html><body><h3>Q?</h3><form><label><input value="A">a</label></form></body></html>`,
		// no choices
		`<html><body><h3>Q?</h3><form><input type="hidden" name="exj_id" value="1"></form></body></html>`,
		// choice without an input
		`<html><body><h3>Q?</h3><form><input type="hidden" name="exj_id" value="1"><label>a</label></form></body></html>`,
	}

	for _, body := range table {
		_, err := ExtractPage([]byte(body))
		require.ErrorIs(t, err, exam.ErrMissingField, body)
	}
}

func TestCorrectionFrom(t *testing.T) {
	table := []struct {
		text     string
		expected string
		ok       bool
	}{
		{
			text:     "Atbilde nav pareiza.\n\n\t\t$(\"#atbilde-Y\").before(\"<p>Šī ir pareizā atbilde.</p>\");",
			expected: "Y",
			ok:       true,
		},
		{
			// the highlight of the selected choice comes first and must be skipped
			text:     "$(\"#atbilde-X\").before(\"Nepareizi\");\n\n\t\t$(\"#atbilde-123\").before(\"Šī ir pareizā atbilde.\");",
			expected: "123",
			ok:       true,
		},
		{
			text: "Šī ir pareizā atbilde.",
			ok:   false,
		},
		{
			text: "$(\"#atbilde-Y\").before(\"Nepareizi\");",
			ok:   false,
		},
		{
			text: "",
			ok:   false,
		},
	}

	for _, row := range table {
		correct, ok := correctionFrom(row.text)
		require.Equal(t, row.ok, ok, row.text)
		require.Equal(t, row.expected, correct, row.text)
	}
}

func TestSubmitResponseErrorText(t *testing.T) {
	correction := "$(\"#atbilde-Y\").before(\"Šī ir pareizā atbilde.\");"
	table := []struct {
		errors         string
		expected       string
		undiscoverable bool
	}{
		{errors: ``},
		{errors: `null`},
		{errors: `false`},
		{errors: `""`},
		{errors: `[]`},
		{errors: `"Kļūda."`, expected: "Kļūda."},
		{
			errors:   `["Atbilde nav pareiza.", "` + strings.ReplaceAll(correction, `"`, `\"`) + `"]`,
			expected: "Atbilde nav pareiza.\n\n" + correction,
		},
		{errors: `true`, undiscoverable: true},
		{errors: `{"atbilde": "Y"}`, undiscoverable: true},
		{errors: `[1, 2]`, undiscoverable: true},
		{errors: `["", " "]`, undiscoverable: true},
	}

	for _, row := range table {
		text, err := submitResponse{Errors: json.RawMessage(row.errors)}.errorText()
		if row.undiscoverable {
			require.ErrorIs(t, err, ErrAnswerUndiscoverable, row.errors)
			continue
		}
		require.NoError(t, err, row.errors)
		require.Equal(t, row.expected, text, row.errors)
	}

	text, err := submitResponse{Errors: json.RawMessage(table[6].errors)}.errorText()
	require.NoError(t, err)
	correct, ok := correctionFrom(text)
	require.True(t, ok)
	require.Equal(t, "Y", correct)
}

type fakeQuestion struct {
	exjId   string
	eceId   string
	choices []exam.Choice
	correct string
	// noCorrection makes the site reject wrong answers without pointing out the right one
	noCorrection bool
	// rejection replaces the `errors` value sent for wrong answers when set
	rejection any
}

func (q fakeQuestion) html() string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h3>\n\t\tJautājums %s?\n\t</h3><form method=\"post\">", q.exjId)
	fmt.Fprintf(&b, `<input type="hidden" name="exj_id" value="%s">`, q.exjId)
	if q.eceId != "" {
		fmt.Fprintf(&b, `<input type="hidden" name="ece_id" value="%s">`, q.eceId)
		fmt.Fprintf(&b, `<input type="hidden" name="eceja_id" value="%s">`, q.eceId)
	}
	for _, c := range q.choices {
		fmt.Fprintf(&b, "<label>\n\t\t<input type=\"radio\" name=\"atbilde\" value=\"%s\">\n\t\t%s\n\t</label>", c.ID, c.Text)
	}
	b.WriteString("</form></body></html>")
	return b.String()
}

type submission struct {
	endpoint string
	form     url.Values
}

// selected returns the id of the choice submitted as selected.
func (s submission) selected() string {
	for i := 0; ; i++ {
		id := s.form.Get(fmt.Sprintf("atbildes[%d][exa_id]", i))
		if id == "" {
			return ""
		}
		if s.form.Get(fmt.Sprintf("atbildes[%d][sel]", i)) == "true" {
			return id
		}
	}
}

type fakeSite struct {
	lock        sync.Mutex
	questions   []fakeQuestion
	sessions    map[string]int
	submissions []submission
	failSelect  bool
}

func newFakeSite(questions ...fakeQuestion) *fakeSite {
	return &fakeSite{questions: questions, sessions: map[string]int{}}
}

func (f *fakeSite) session(r *http.Request) (string, bool) {
	cookie, err := r.Cookie("PHPSESSID")
	if err != nil {
		return "", false
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	_, ok := f.sessions[cookie.Value]
	return cookie.Value, ok
}

func (f *fakeSite) handler(t testing.TB) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sbm_kat", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "confirm", r.PostForm.Get("perform"))
		require.Equal(t, "52", r.PostForm.Get("ext_id"))
		require.Equal(t, "LAT", r.PostForm.Get("valoda"))

		if f.failSelect {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}

		f.lock.Lock()
		id := fmt.Sprint(len(f.sessions))
		f.sessions[id] = 0
		f.lock.Unlock()

		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: id})
		fmt.Fprint(w, "<html></html>")
	})
	mux.HandleFunc("/LAT", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		id, ok := f.session(r)
		if !ok {
			http.Error(w, "no session", http.StatusForbidden)
			return
		}

		f.lock.Lock()
		position := f.sessions[id]
		f.sessions[id]++
		f.lock.Unlock()

		fmt.Fprint(w, f.questions[position%len(f.questions)].html())
	})
	answer := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		if _, ok := f.session(r); !ok {
			http.Error(w, "no session", http.StatusForbidden)
			return
		}
		require.NoError(t, r.ParseForm())
		require.Equal(t, "confirm", r.PostForm.Get("perform"))

		sub := submission{endpoint: r.URL.Path, form: r.PostForm}
		f.lock.Lock()
		f.submissions = append(f.submissions, sub)
		f.lock.Unlock()

		var q fakeQuestion
		for _, candidate := range f.questions {
			if candidate.exjId == r.PostForm.Get("exj_id") {
				q = candidate
			}
		}

		switch {
		case sub.selected() == q.correct:
			fmt.Fprint(w, `{"errors":false}`)
		case q.rejection != nil:
			json.NewEncoder(w).Encode(map[string]any{"errors": q.rejection})
		case q.noCorrection:
			json.NewEncoder(w).Encode(map[string]any{"errors": "Kļūda."})
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"errors": "Atbilde nav pareiza.\n\n\t\t$(\"#atbilde-" + q.correct + "\").before(\"<p>Šī ir pareizā atbilde.</p>\");",
			})
		}
	}
	mux.HandleFunc("/LAT/parb_ins", answer)
	mux.HandleFunc("/LAT/atb_ins", answer)
	return mux
}

func testConfig(baseUrl string, questions int) Config {
	cfg := DefaultConfig()
	cfg.BaseUrl = baseUrl
	cfg.RequestsPerSecond = 0
	cfg.QuestionsPerExam = questions
	return cfg
}

func TestTakeExam(t *testing.T) {
	site := newFakeSite(
		fakeQuestion{
			exjId:   "1",
			choices: []exam.Choice{{ID: "A", Text: "pareizi"}, {ID: "B", Text: "nepareizi"}},
			correct: "A",
		},
		fakeQuestion{
			exjId:   "2",
			eceId:   "900",
			choices: []exam.Choice{{ID: "X", Text: "pa kreisi"}, {ID: "Y", Text: "pa labi"}},
			correct: "Y",
		},
	)
	server := httptest.NewServer(site.handler(t))
	defer server.Close()

	tel := telemetry.NewTestAPI()
	scraper := NewScraper(testConfig(server.URL, 2), nil, tel)

	attempt, err := scraper.TakeExam(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, attempt.Unresolved)
	require.Len(t, attempt.Questions, 2)

	require.Equal(t, "1", attempt.Questions[0].Signature)
	require.Equal(t, "A", attempt.Questions[0].Answer)
	require.Equal(t, "Jautājums 1?", attempt.Questions[0].Text)
	require.Equal(t, "2", attempt.Questions[1].Signature)
	require.Equal(t, "Y", attempt.Questions[1].Answer)
	require.Equal(t, "pa labi", attempt.Questions[1].Choices[1].Text)

	// the first question is accepted right away, the second one gets corrected
	require.Len(t, site.submissions, 3)
	require.Equal(t, "/LAT/parb_ins", site.submissions[0].endpoint)
	require.Equal(t, "A", site.submissions[0].selected())

	require.Equal(t, "/LAT/atb_ins", site.submissions[1].endpoint)
	require.Equal(t, "900", site.submissions[1].form.Get("ece_id"))
	require.Equal(t, "900", site.submissions[1].form.Get("eceja_id"))
	require.Equal(t, "X", site.submissions[1].selected())
	require.Equal(t, "false", site.submissions[1].form.Get("atbildes[1][sel]"))

	require.Equal(t, "Y", site.submissions[2].selected())
	require.Equal(t, "false", site.submissions[2].form.Get("atbildes[0][sel]"))

	require.Empty(t, tel.Broken())
	require.Empty(t, tel.Warnings())
}

func TestTakeExamNewSessionPerAttempt(t *testing.T) {
	site := newFakeSite(fakeQuestion{
		exjId:   "1",
		choices: []exam.Choice{{ID: "A", Text: "a"}},
		correct: "A",
	})
	server := httptest.NewServer(site.handler(t))
	defer server.Close()

	scraper := NewScraper(testConfig(server.URL, 3), nil, telemetry.NewTestAPI())
	for i := 0; i < 2; i++ {
		attempt, err := scraper.TakeExam(context.Background())
		require.NoError(t, err)
		require.Equal(t, 3, attempt.Len())
	}
	require.Len(t, site.sessions, 2)
	for _, served := range site.sessions {
		require.Equal(t, 3, served)
	}
}

func TestTakeExamUndiscoverable(t *testing.T) {
	site := newFakeSite(
		fakeQuestion{
			exjId:        "1",
			choices:      []exam.Choice{{ID: "A", Text: "a"}, {ID: "B", Text: "b"}},
			correct:      "B",
			noCorrection: true,
		},
		fakeQuestion{
			exjId:   "2",
			choices: []exam.Choice{{ID: "C", Text: "c"}, {ID: "D", Text: "d"}},
			correct: "D",
		},
	)
	server := httptest.NewServer(site.handler(t))
	defer server.Close()

	tel := telemetry.NewTestAPI()
	scraper := NewScraper(testConfig(server.URL, 2), nil, tel)
	attempt, err := scraper.TakeExam(context.Background())
	require.NoError(t, err)

	require.Len(t, attempt.Unresolved, 1)
	require.Equal(t, "1", attempt.Unresolved[0].Question.Signature)
	require.ErrorIs(t, attempt.Unresolved[0].Err, ErrAnswerUndiscoverable)

	require.Len(t, attempt.Questions, 1)
	require.Equal(t, "D", attempt.Questions[0].Answer)
	require.True(t, tel.HasWarning("resolve.undiscoverable"))
}

func TestTakeExamRejectionShapes(t *testing.T) {
	site := newFakeSite(
		fakeQuestion{
			exjId:   "1",
			choices: []exam.Choice{{ID: "X", Text: "x"}, {ID: "Y", Text: "y"}},
			correct: "Y",
			rejection: []string{
				"Atbilde nav pareiza.",
				"$(\"#atbilde-Y\").before(\"Šī ir pareizā atbilde.\");",
			},
		},
		fakeQuestion{
			exjId:     "2",
			choices:   []exam.Choice{{ID: "A", Text: "a"}, {ID: "B", Text: "b"}},
			correct:   "B",
			rejection: true,
		},
	)
	server := httptest.NewServer(site.handler(t))
	defer server.Close()

	tel := telemetry.NewTestAPI()
	scraper := NewScraper(testConfig(server.URL, 2), nil, tel)
	attempt, err := scraper.TakeExam(context.Background())
	require.NoError(t, err)

	require.Len(t, attempt.Questions, 1)
	require.Equal(t, "Y", attempt.Questions[0].Answer)

	// a rejection that is not text must never be taken as the first choice being correct
	require.Len(t, attempt.Unresolved, 1)
	require.Equal(t, "2", attempt.Unresolved[0].Question.Signature)
	require.ErrorIs(t, attempt.Unresolved[0].Err, ErrAnswerUndiscoverable)
	require.True(t, tel.HasWarning("resolve.undiscoverable"))
	require.Empty(t, tel.Broken())
}

func TestTakeExamStatusError(t *testing.T) {
	site := newFakeSite(fakeQuestion{exjId: "1", choices: []exam.Choice{{ID: "A"}}, correct: "A"})
	site.failSelect = true
	server := httptest.NewServer(site.handler(t))
	defer server.Close()

	tel := telemetry.NewTestAPI()
	scraper := NewScraper(testConfig(server.URL, 1), nil, tel)
	_, err := scraper.TakeExam(context.Background())
	require.Error(t, err)

	var statusErr *scrapers.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	require.Contains(t, tel.Broken(), "csdd_scraper: client.select-category")
}

func TestTakeExamMalformedPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "1"})
		fmt.Fprint(w, "<html><body><p>Sesija beigusies</p></body></html>")
	}))
	defer server.Close()

	tel := telemetry.NewTestAPI()
	scraper := NewScraper(testConfig(server.URL, 1), nil, tel)
	_, err := scraper.TakeExam(context.Background())
	require.ErrorIs(t, err, exam.ErrMissingField)
	require.Contains(t, tel.Broken(), "csdd_scraper: scraper.extract")
}
