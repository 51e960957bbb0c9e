package downloader

import (
	"fmt"
	"time"
)

// Mode selects which plan a run follows.
type Mode string

const (
	// ModeFull downloads every item into month folders.
	ModeFull Mode = "full"
	// ModeTest downloads the first item into the test folder.
	ModeTest Mode = "test"
)

// TestFolder is the folder under the destination root used by test runs.
const TestFolder = "Test"

// monthLayout is the label format of month folders before normalization.
const monthLayout = "2006-01"

func (m Mode) String() string { return string(m) }

// Target is one item placed in a folder relative to the destination root.
type Target struct {
	Item   Item
	Folder string
}

// Plan decides which of the listed items get downloaded, and where.
type Plan interface {
	Name() string
	Targets(items []Item) []Target
}

// TestPlan places only the first item, in [TestFolder].
type TestPlan struct{}

func (TestPlan) Name() string { return "test" }

func (TestPlan) Targets(items []Item) []Target {
	if len(items) == 0 {
		return nil
	}
	return []Target{{Item: items[0], Folder: TestFolder}}
}

// MonthlyPlan places every item in a folder named after the month it was
// created in, e.g. "2024-03".
type MonthlyPlan struct {
	// Location is the time zone months are computed in. Nil means UTC.
	Location *time.Location
}

func (MonthlyPlan) Name() string { return "monthly" }

func (p MonthlyPlan) Targets(items []Item) []Target {
	targets := make([]Target, 0, len(items))
	for _, item := range items {
		targets = append(targets, Target{Item: item, Folder: p.Folder(item.Created())})
	}
	return targets
}

// Folder returns the normalized month folder for t.
func (p MonthlyPlan) Folder(t time.Time) string {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	return NormalizeName(t.In(loc).Format(monthLayout))
}

// planFor returns the plan a mode runs with.
func planFor(mode Mode, loc *time.Location) (Plan, error) {
	switch mode {
	case ModeTest:
		return TestPlan{}, nil
	case ModeFull:
		return MonthlyPlan{Location: loc}, nil
	}
	return nil, fmt.Errorf("unsupported mode %q", mode)
}
