package app

import (
	"context"
	"errors"
	"log/slog"

	"icloud-photo-downloader/internal/app/controller"
	"icloud-photo-downloader/internal/downloader"
)

// resultView is the part of the window a worker reports to.
type resultView interface {
	SetBusy(busy bool)
	ShowResult(summary downloader.Summary, err error)
	ShowError(err error)
}

// worker runs the actions requested by the window in the background so the
// UI stays responsive.
type worker struct {
	ctx  context.Context
	ctrl *controller.Controller
	ui   resultView
}

// start is called on the UI goroutine when a button is pressed.
func (w *worker) start(mode downloader.Mode, in downloader.Inputs) {
	if w.ctrl.Busy() {
		slog.Warn("ignoring request while a run is in progress", "mode", mode)
		return
	}
	// Report missing fields before anything else happens.
	if err := downloader.ValidateInputs(in); err != nil {
		w.ui.ShowError(err)
		return
	}
	w.ui.SetBusy(true)
	err := w.ctrl.Start(w.ctx, mode, in, func(summary downloader.Summary, err error) {
		w.ui.SetBusy(false)
		w.ui.ShowResult(summary, err)
	})
	if errors.Is(err, controller.ErrBusy) {
		// The running action re-enables the buttons when it finishes.
		slog.Warn("ignoring request while a run is in progress", "mode", mode)
	} else if err != nil {
		w.ui.SetBusy(false)
		w.ui.ShowError(err)
	}
}
