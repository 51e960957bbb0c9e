// Package downloader signs in to a photo service, lists the library and
// copies every item to a local folder, one folder per month.
//
// The photo service, the user prompts and the UI are collaborators behind
// narrow interfaces; a [Workflow] only sequences them and reports its
// [State] through an observer.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Authenticator opens sessions against a photo service.
type Authenticator interface {
	Login(ctx context.Context, accountID, password string) (Session, error)
}

// Session is an authenticated (or two-factor pending) photo service
// session.
type Session interface {
	RequiresTwoFactor() bool
	ValidateCode(ctx context.Context, code string) (bool, error)
	ListItems(ctx context.Context) ([]Item, error)
}

// Item is one remote photo or video.
type Item interface {
	Filename() string
	Created() time.Time
	// Download returns the item's bytes. A nil reader with a nil error
	// means the service gave no response.
	Download(ctx context.Context) (io.ReadCloser, error)
}

// Prompter asks the user to take part in a run. Both methods block until
// the user answers.
type Prompter interface {
	// TwoFactorCode returns the one-time code, or ok == false if the
	// prompt was dismissed.
	TwoFactorCode(ctx context.Context) (code string, ok bool)
	// Confirm asks whether total items should be downloaded.
	Confirm(ctx context.Context, total int) bool
}

// Inputs are the values collected from the user before a run.
type Inputs struct {
	AccountID   string
	Password    string
	Destination string
}

// ValidateInputs returns a [*MissingFieldError] for the first empty input.
func ValidateInputs(in Inputs) error {
	switch {
	case strings.TrimSpace(in.AccountID) == "":
		return &MissingFieldError{Field: FieldAccountID}
	case in.Password == "":
		return &MissingFieldError{Field: FieldPassword}
	case strings.TrimSpace(in.Destination) == "":
		return &MissingFieldError{Field: FieldDestination}
	}
	return nil
}

// Workflow runs the authenticate → list → download sequence. It is not
// safe for concurrent runs.
type Workflow struct {
	auth     Authenticator
	prompt   Prompter
	storage  *Storage
	loc      *time.Location
	observe  func(State)
	progress func(done, total int, name string)
}

// workflowOpt is used for configuring the [Workflow].
type workflowOpt func(*Workflow)

// WithStateObserver registers f to be called on every state transition.
func WithStateObserver(f func(State)) workflowOpt {
	return func(w *Workflow) { w.observe = f }
}

// WithProgress registers f to be called after each download attempt.
func WithProgress(f func(done, total int, name string)) workflowOpt {
	return func(w *Workflow) { w.progress = f }
}

// WithLocation sets the time zone month folders are computed in. The
// default is UTC.
func WithLocation(loc *time.Location) workflowOpt {
	return func(w *Workflow) {
		if loc != nil {
			w.loc = loc
		}
	}
}

// WithStorage replaces the default [Storage].
func WithStorage(s *Storage) workflowOpt {
	return func(w *Workflow) {
		if s != nil {
			w.storage = s
		}
	}
}

// New initializes a Workflow. A nil prompter dismisses every prompt.
func New(auth Authenticator, prompt Prompter, opts ...workflowOpt) *Workflow {
	if prompt == nil {
		prompt = dismissPrompter{}
	}
	w := &Workflow{
		auth:    auth,
		prompt:  prompt,
		storage: NewStorage(StorageConfig{}),
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run validates in, signs in and then runs mode against the library.
func (w *Workflow) Run(ctx context.Context, mode Mode, in Inputs) (Summary, error) {
	summary := Summary{Mode: mode, State: Idle}
	if _, err := planFor(mode, w.loc); err != nil {
		return summary, err
	}
	if err := ValidateInputs(in); err != nil {
		return summary, err
	}
	sess, err := w.Authenticate(ctx, in.AccountID, in.Password)
	if err != nil {
		summary.State = Failed
		return summary, err
	}
	return w.runPlan(ctx, sess, strings.TrimSpace(in.Destination), mode)
}

// Authenticate signs in and, if the account asks for it, prompts for and
// validates a two-factor code. Every failure is an [*AuthError] and no
// session is returned with it.
func (w *Workflow) Authenticate(ctx context.Context, accountID, password string) (Session, error) {
	w.setState(Authenticating)
	if w.auth == nil {
		return nil, w.fail(&AuthError{Op: "login", Err: errors.New("no photo service configured")})
	}
	sess, err := w.auth.Login(ctx, accountID, password)
	if err != nil {
		return nil, w.fail(&AuthError{Op: "login", Err: err})
	}
	if sess == nil {
		return nil, w.fail(&AuthError{Op: "login", Err: errors.New("no session returned")})
	}
	if !sess.RequiresTwoFactor() {
		slog.Info("signed in")
		return sess, nil
	}

	w.setState(TwoFactorPending)
	slog.Info("two-factor authentication required")
	code, ok := w.prompt.TwoFactorCode(ctx)
	code = strings.TrimSpace(code)
	if !ok || code == "" {
		return nil, w.fail(&AuthError{Op: "two-factor", Err: ErrInvalidCode})
	}
	valid, err := sess.ValidateCode(ctx, code)
	if err != nil {
		return nil, w.fail(&AuthError{Op: "two-factor", Err: err})
	}
	if !valid {
		return nil, w.fail(&AuthError{Op: "two-factor", Err: ErrInvalidCode})
	}
	slog.Info("signed in with two-factor code")
	return sess, nil
}

// ListItems lists the library. An empty library is not an error.
func (w *Workflow) ListItems(ctx context.Context, sess Session) ([]Item, error) {
	w.setState(Listing)
	if sess == nil {
		return nil, w.fail(&AuthError{Op: "list", Err: errors.New("not signed in")})
	}
	items, err := sess.ListItems(ctx)
	if err != nil {
		return nil, w.fail(&AuthError{Op: "list", Err: err})
	}
	slog.Info("listed library", "count", len(items))
	return items, nil
}

// RunTestMode downloads the first listed item into root/Test.
func (w *Workflow) RunTestMode(ctx context.Context, sess Session, root string) (Summary, error) {
	return w.runPlan(ctx, sess, root, ModeTest)
}

// RunFullDownload asks for confirmation and then downloads every listed
// item into its month folder under root. Item failures are collected in
// the summary; they never stop the batch. Only a done ctx ends it early,
// with an error wrapping [ErrInterrupted].
func (w *Workflow) RunFullDownload(ctx context.Context, sess Session, root string) (Summary, error) {
	return w.runPlan(ctx, sess, root, ModeFull)
}

func (w *Workflow) runPlan(ctx context.Context, sess Session, root string, mode Mode) (Summary, error) {
	summary := Summary{Mode: mode, State: Idle, Folder: root}
	plan, err := planFor(mode, w.loc)
	if err != nil {
		return summary, err
	}

	items, err := w.ListItems(ctx, sess)
	if err != nil {
		summary.State = Failed
		return summary, err
	}
	summary.Total = len(items)
	if len(items) == 0 {
		slog.Info("no items found")
		w.setState(Idle)
		summary.Outcome = NoItems
		return summary, nil
	}

	if mode == ModeFull {
		w.setState(Confirming)
		if !w.prompt.Confirm(ctx, len(items)) {
			slog.Info("download not confirmed", "count", len(items))
			w.setState(Idle)
			summary.Outcome = Declined
			return summary, nil
		}
	}

	targets := plan.Targets(items)
	slog.Info("downloading", "plan", plan.Name(), "count", len(targets))
	w.setState(Downloading)
	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			return w.interrupt(summary, err)
		}
		folder := filepath.Join(root, t.Folder)
		if mode == ModeTest {
			summary.Folder = folder
		}
		summary.Attempted++
		n, err := w.downloadTo(ctx, t.Item, folder)
		if err != nil && ctx.Err() != nil {
			summary.Attempted--
			return w.interrupt(summary, ctx.Err())
		}
		if err != nil {
			var dlErr *DownloadError
			if !errors.As(err, &dlErr) {
				dlErr = transferError(t.Item.Filename(), folder, err)
			}
			summary.Failures = append(summary.Failures, dlErr)
		} else {
			summary.Downloaded++
			summary.Bytes += n
		}
		if w.progress != nil {
			w.progress(i+1, len(targets), t.Item.Filename())
		}
	}

	slog.Info("download finished",
		"downloaded", summary.Downloaded,
		"failed", summary.Failed(),
		"size", humanize.Bytes(uint64(summary.Bytes)),
	)
	w.setState(Done)
	summary.State = Done
	summary.Outcome = Completed
	return summary, nil
}

// interrupt ends a batch whose context is done. Items already written stay
// on disk and are counted in the summary.
func (w *Workflow) interrupt(summary Summary, cause error) (Summary, error) {
	slog.Warn("download interrupted",
		"downloaded", summary.Downloaded,
		"remaining", summary.Total-summary.Attempted,
		"error", cause,
	)
	summary.State = Failed
	return summary, w.fail(fmt.Errorf("%w after %d of %d items: %w", ErrInterrupted, summary.Downloaded, summary.Total, cause))
}

// downloadTo makes sure folder exists and downloads item into it.
func (w *Workflow) downloadTo(ctx context.Context, item Item, folder string) (int64, error) {
	if err := w.storage.EnsureDir(folder); err != nil {
		slog.Error("failed to create folder", "folder", folder, "name", item.Filename(), "error", err)
		return 0, transferError(item.Filename(), folder, err)
	}
	return w.DownloadOne(ctx, item, folder)
}

// DownloadOne writes item to folder under its normalized name, replacing
// any existing file. The folder must exist. Failures are logged and
// returned as a [*DownloadError]; a service that gives no response yields
// one wrapping [ErrNoResponse] and leaves nothing on disk.
func (w *Workflow) DownloadOne(ctx context.Context, item Item, folder string) (int64, error) {
	log := slog.With("name", item.Filename(), "folder", folder)
	name, ok := safeFileName(item.Filename())
	if !ok {
		log.Error("failed to download", "error", ErrInvalidName)
		return 0, &DownloadError{Filename: item.Filename(), Path: folder, Err: ErrInvalidName}
	}
	path := filepath.Join(folder, name)

	body, err := item.Download(ctx)
	if err != nil {
		log.Error("failed to download", "error", err)
		return 0, transferError(item.Filename(), path, err)
	}
	if body == nil {
		log.Error("failed to download", "error", ErrNoResponse)
		return 0, &DownloadError{Filename: item.Filename(), Path: path, Err: ErrNoResponse}
	}
	defer body.Close()

	n, err := w.storage.WriteFile(path, body)
	if err != nil {
		log.Error("failed to download", "error", err)
		return 0, transferError(item.Filename(), path, err)
	}
	if s, ok := item.(sizer); ok && s.Size() > 0 && s.Size() != n {
		log.Warn("downloaded size differs from listed size",
			"path", path,
			"size", humanize.Bytes(uint64(n)),
			"expected", humanize.Bytes(uint64(s.Size())),
		)
	}
	log.Info("downloaded", "path", path, "size", humanize.Bytes(uint64(n)))
	return n, nil
}

// sizer is implemented by items that know their size before the download.
type sizer interface {
	Size() int64
}

func (w *Workflow) setState(s State) {
	slog.Debug("workflow state", "state", s)
	if w.observe != nil {
		w.observe(s)
	}
}

// fail moves the workflow to Failed and passes err through.
func (w *Workflow) fail(err error) error {
	w.setState(Failed)
	return err
}

// dismissPrompter answers every prompt with "no".
type dismissPrompter struct{}

func (dismissPrompter) TwoFactorCode(context.Context) (string, bool) { return "", false }
func (dismissPrompter) Confirm(context.Context, int) bool            { return false }
