package downloader

import (
	"context"
	"io"
	"testing"
	"time"
)

type planItem struct {
	name    string
	created time.Time
}

func (p planItem) Filename() string                                { return p.name }
func (p planItem) Created() time.Time                              { return p.created }
func (p planItem) Download(context.Context) (io.ReadCloser, error) { return nil, nil }

func TestTestPlan(t *testing.T) {
	items := []Item{
		planItem{name: "first"},
		planItem{name: "second"},
	}
	got := TestPlan{}.Targets(items)
	if len(got) != 1 {
		t.Fatalf("expected 1 target, got %d", len(got))
	}
	if got[0].Item.Filename() != "first" || got[0].Folder != TestFolder {
		t.Fatalf("expected first item in %q, got %q in %q", TestFolder, got[0].Item.Filename(), got[0].Folder)
	}
	if got := (TestPlan{}).Targets(nil); len(got) != 0 {
		t.Fatalf("expected no targets, got %d", len(got))
	}
}

func TestMonthlyPlan(t *testing.T) {
	items := []Item{
		planItem{name: "a", created: time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)},
		planItem{name: "b", created: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	got := MonthlyPlan{}.Targets(items)
	want := []string{"2023-12", "2024-01"}
	if len(got) != len(want) {
		t.Fatalf("expected %d targets, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Folder != want[i] {
			t.Fatalf("targets[%d].Folder should be %q, found %q", i, want[i], got[i].Folder)
		}
	}
}

func TestPlanFor(t *testing.T) {
	if p, err := planFor(ModeTest, nil); err != nil || p.Name() != "test" {
		t.Fatalf("expected the test plan, got %v, %v", p, err)
	}
	if p, err := planFor(ModeFull, time.UTC); err != nil || p.Name() != "monthly" {
		t.Fatalf("expected the monthly plan, got %v, %v", p, err)
	}
	if _, err := planFor(Mode("everything"), nil); err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
}
