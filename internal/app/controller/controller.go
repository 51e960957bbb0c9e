package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"icloud-photo-downloader/internal/downloader"
)

// ErrBusy is returned when a run is requested while another one is still in
// progress.
var ErrBusy = errors.New("a download is already running")

// Config holds configuration values for controlling the download behavior.
//
// It is organized to take advantage of TOML parsing, however this package does
// not handle parsing and has no expectation on how it will be initialized.
type Config struct {
	// TimeZone month folders are computed in, see [ParseTimeZone].
	TimeZone string
	downloader.StorageConfig
}

// View is told about the progress of a run. Its methods are called from
// the goroutine doing the run.
type View interface {
	SetState(mode downloader.Mode, state downloader.State)
	SetProgress(done, total int, name string)
}

// Controller runs one user action at a time against the photo service and
// reports to a View.
type Controller struct {
	auth    downloader.Authenticator
	prompt  downloader.Prompter
	view    View
	storage *downloader.Storage
	loc     *time.Location
	running atomic.Bool
}

// New initializes the Controller. An error is returned if the configured
// time zone is invalid.
func New(conf Config, auth downloader.Authenticator, prompt downloader.Prompter, view View) (*Controller, error) {
	loc, err := ParseTimeZone(conf.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", conf.TimeZone, err)
	}
	if view == nil {
		view = nopView{}
	}
	return &Controller{
		auth:    auth,
		prompt:  prompt,
		view:    view,
		storage: downloader.NewStorage(conf.StorageConfig),
		loc:     loc,
	}, nil
}

// Busy reports whether a run is in progress.
func (c *Controller) Busy() bool { return c.running.Load() }

// Run performs mode with in and blocks until it is finished.
func (c *Controller) Run(ctx context.Context, mode downloader.Mode, in downloader.Inputs) (downloader.Summary, error) {
	if !c.running.CompareAndSwap(false, true) {
		return downloader.Summary{Mode: mode}, ErrBusy
	}
	defer c.running.Store(false)
	return c.run(ctx, mode, in)
}

// Start performs mode with in on a new goroutine and calls done with the
// result. done is called after the controller is ready for the next run.
func (c *Controller) Start(ctx context.Context, mode downloader.Mode, in downloader.Inputs, done func(downloader.Summary, error)) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	go func() {
		summary, err := c.run(ctx, mode, in)
		c.running.Store(false)
		if done != nil {
			done(summary, err)
		}
	}()
	return nil
}

// run builds a workflow for a single run. A panic in any collaborator is
// returned as an error so the caller can report it.
func (c *Controller) run(ctx context.Context, mode downloader.Mode, in downloader.Inputs) (summary downloader.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("run panicked", "panic", r, "stack", string(debug.Stack()))
			c.view.SetState(mode, downloader.Failed)
			summary = downloader.Summary{Mode: mode, State: downloader.Failed}
			err = fmt.Errorf("unexpected error: %v", r)
		}
	}()

	w := downloader.New(c.auth, c.prompt,
		downloader.WithStorage(c.storage),
		downloader.WithLocation(c.loc),
		downloader.WithStateObserver(func(s downloader.State) { c.view.SetState(mode, s) }),
		downloader.WithProgress(c.view.SetProgress),
	)
	log := slog.With("mode", mode)
	log.Info("starting run")
	summary, err = w.Run(ctx, mode, in)
	if err != nil {
		log.Error("run failed", "error", err)
		return summary, err
	}
	log.Info("run finished", "outcome", summary.Outcome, "downloaded", summary.Downloaded, "failed", summary.Failed())
	return summary, nil
}

type nopView struct{}

func (nopView) SetState(downloader.Mode, downloader.State) {}
func (nopView) SetProgress(int, int, string)               {}
