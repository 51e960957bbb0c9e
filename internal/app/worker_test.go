package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"icloud-photo-downloader/internal/app/controller"
	"icloud-photo-downloader/internal/downloader"
)

type emptySession struct{}

func (emptySession) RequiresTwoFactor() bool                            { return false }
func (emptySession) ValidateCode(context.Context, string) (bool, error) { return true, nil }
func (emptySession) ListItems(context.Context) ([]downloader.Item, error) {
	return nil, nil
}

// blockingAuth holds every login until release is closed.
type blockingAuth struct {
	release chan struct{}
}

func (a blockingAuth) Login(ctx context.Context, _, _ string) (downloader.Session, error) {
	select {
	case <-a.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return emptySession{}, nil
}

// testResultView is a test implementation of [resultView].
type testResultView struct {
	mu      sync.Mutex
	errs    []error
	results chan downloader.Summary
}

func (v *testResultView) SetBusy(bool) {}

func (v *testResultView) ShowResult(summary downloader.Summary, _ error) {
	v.results <- summary
}

func (v *testResultView) ShowError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errs = append(v.errs, err)
}

func (v *testResultView) errCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.errs)
}

func TestWorker_IgnoresRequestsWhileBusy(t *testing.T) {
	auth := blockingAuth{release: make(chan struct{})}
	ctrl, err := controller.New(controller.Config{}, auth, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ui := &testResultView{results: make(chan downloader.Summary, 1)}
	w := &worker{ctx: context.Background(), ctrl: ctrl, ui: ui}
	valid := downloader.Inputs{AccountID: "me@example.com", Password: "secret", Destination: t.TempDir()}

	w.start(downloader.ModeFull, valid)
	if !ctrl.Busy() {
		t.Fatal("expected the controller to be busy")
	}
	// Not even validated while the first run is going.
	w.start(downloader.ModeTest, downloader.Inputs{})
	if got := ui.errCount(); got != 0 {
		t.Fatalf("expected no error dialogs while busy, got %d", got)
	}

	close(auth.release)
	select {
	case summary := <-ui.results:
		if summary.Outcome != downloader.NoItems {
			t.Fatalf("expected %v, got %v", downloader.NoItems, summary.Outcome)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the run to finish")
	}

	w.start(downloader.ModeTest, downloader.Inputs{})
	if got := ui.errCount(); got != 1 {
		t.Fatalf("expected 1 error dialog once idle, got %d", got)
	}
}
