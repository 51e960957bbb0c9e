// Package app wires the iCloud client, the download controller and the two
// front ends together.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"icloud-photo-downloader/internal/app/controller"
	"icloud-photo-downloader/internal/app/display"
	"icloud-photo-downloader/internal/downloader"
	"icloud-photo-downloader/internal/icloud"
)

// newClient creates the iCloud client for conf and logs its diagnostics.
func newClient(conf Config) *icloud.Client {
	client := icloud.NewClient(icloud.WithRemote(conf.Remote))
	slog.Info("created iCloud client")
	slog.Debug("client diagnostics", "diagnostics", client.Diagnostics())
	return client
}

// RunGUI shows the window and blocks until it is closed.
func RunGUI(ctx context.Context, conf Config) error {
	disp := display.New(display.Config{
		AppleID:     conf.App.AppleID,
		DownloadDir: conf.App.DownloadDir,
	})
	ctrl, err := controller.New(conf.App.Config, newClient(conf), disp, disp)
	if err != nil {
		return fmt.Errorf("failed to init controller: %w", err)
	}
	w := &worker{ctx: ctx, ctrl: ctrl, ui: disp}
	disp.OnStart(w.start)
	// An interrupt closes the window like the close button does.
	defer context.AfterFunc(ctx, disp.Quit)()
	slog.Info("successfully initialized app")
	disp.ShowAndRun()
	return ctx.Err()
}

// RunTerminal runs mode without a window, prompting on the terminal.
func RunTerminal(ctx context.Context, conf Config, mode downloader.Mode, opts TerminalOptions) (downloader.Summary, error) {
	term := newTerminal(opts)
	in, err := term.inputs(conf)
	if err != nil {
		return downloader.Summary{Mode: mode}, err
	}
	ctrl, err := controller.New(conf.App.Config, newClient(conf), term, term)
	if err != nil {
		return downloader.Summary{Mode: mode}, err
	}
	summary, err := ctrl.Run(ctx, mode, in)
	term.finish(summary, err)
	return summary, err
}
