package telemetry

import (
	"strings"
	"sync"
)

// Report is a single call recorded by TestAPI.
type Report struct {
	ID     string
	Params []any
}

// TestAPI is an implementation of API that records everything reported to it so tests can
// assert on breakages and warnings.
type TestAPI struct {
	lock     sync.Mutex
	broken   []Report
	warnings []Report
	counts   map[string]int64
}

func NewTestAPI() *TestAPI {
	return &TestAPI{counts: map[string]int64{}}
}

func (t *TestAPI) ReportBroken(id string, params ...any) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.broken = append(t.broken, Report{ID: id, Params: params})
}

func (t *TestAPI) ReportWarning(id string, params ...any) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.warnings = append(t.warnings, Report{ID: id, Params: params})
}

func (t *TestAPI) ReportDebug(string, ...any) {}

func (t *TestAPI) ReportCount(id string, count int64) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.counts[id] = count
}

// Broken returns the ids of every ReportBroken call in order.
func (t *TestAPI) Broken() []string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return reportIds(t.broken)
}

// Warnings returns the ids of every ReportWarning call in order.
func (t *TestAPI) Warnings() []string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return reportIds(t.warnings)
}

// Count returns the last count reported under `id` and whether one was reported at all.
func (t *TestAPI) Count(id string) (int64, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	n, ok := t.counts[id]
	return n, ok
}

// HasWarning reports if any warning id ends with `suffix`, scoped prefixes are usually
// irrelevant to the test.
func (t *TestAPI) HasWarning(suffix string) bool {
	for _, id := range t.Warnings() {
		if strings.HasSuffix(id, suffix) {
			return true
		}
	}
	return false
}

func reportIds(reports []Report) []string {
	ids := make([]string, len(reports))
	for i, r := range reports {
		ids[i] = r.ID
	}
	return ids
}
