package display

import (
	"context"
	"errors"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"icloud-photo-downloader/internal/app/formatters"
	"icloud-photo-downloader/internal/downloader"
)

// Config holds the values the form is filled in with.
type Config struct {
	AppleID     string
	DownloadDir string
}

// Display is the application window. It implements [downloader.Prompter]
// with dialogs; its prompt and state methods may be called from any
// goroutine.
type Display struct {
	app      fyne.App
	win      fyne.Window
	appleID  *widget.Entry
	password *widget.Entry
	folder   *widget.Label
	status   *widget.Label
	progress *widget.ProgressBar
	buttons  []*widget.Button
	onStart  func(downloader.Mode, downloader.Inputs)
	total    int
}

var _ downloader.Prompter = (*Display)(nil)

func New(conf Config) *Display {
	a := app.New()
	win := a.NewWindow("iCloud Photo Downloader")
	win.Resize(fyne.NewSize(400, 370))

	d := &Display{
		app:      a,
		win:      win,
		appleID:  widget.NewEntry(),
		password: widget.NewPasswordEntry(),
		folder:   widget.NewLabel(conf.DownloadDir),
		status:   widget.NewLabel(""),
		progress: widget.NewProgressBar(),
	}
	d.appleID.SetText(conf.AppleID)
	d.folder.Wrapping = fyne.TextWrapWord
	d.status.Alignment = fyne.TextAlignCenter
	d.progress.Hide()

	start := widget.NewButton("Start Download", func() { d.start(downloader.ModeFull) })
	start.Importance = widget.HighImportance
	test := widget.NewButton("Test Mode (Download First Item)", func() { d.start(downloader.ModeTest) })
	d.buttons = []*widget.Button{start, test}

	win.SetContent(container.NewVBox(
		widget.NewLabel("Apple ID:"),
		d.appleID,
		widget.NewLabel("Password:"),
		d.password,
		widget.NewButton("Select Download Folder", d.selectFolder),
		d.folder,
		start,
		test,
		d.status,
		d.progress,
	))
	return d
}

// OnStart registers f to be called when the user asks for a run.
func (d *Display) OnStart(f func(downloader.Mode, downloader.Inputs)) {
	d.onStart = f
}

func (d *Display) start(mode downloader.Mode) {
	if d.onStart == nil {
		return
	}
	d.onStart(mode, downloader.Inputs{
		AccountID:   d.appleID.Text,
		Password:    d.password.Text,
		Destination: d.folder.Text,
	})
}

func (d *Display) selectFolder() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil {
			slog.Error("failed to select folder", "error", err)
			return
		}
		if uri == nil {
			return
		}
		d.folder.SetText(uri.Path())
	}, d.win)
}

// SetBusy disables the action buttons while a run is in progress.
func (d *Display) SetBusy(busy bool) {
	fyne.Do(func() {
		for _, b := range d.buttons {
			if busy {
				b.Disable()
			} else {
				b.Enable()
			}
		}
	})
}

// SetState shows the status line for state.
func (d *Display) SetState(mode downloader.Mode, state downloader.State) {
	fyne.Do(func() {
		status := formatters.StatusFor(mode, state, d.total)
		d.status.SetText(status.Text)
		d.status.Importance = importance(status.Level)
		d.status.Refresh()
		if state != downloader.Downloading {
			d.progress.Hide()
		}
	})
}

// SetProgress advances the progress bar.
func (d *Display) SetProgress(done, total int, name string) {
	fyne.Do(func() {
		d.total = total
		d.progress.Max = float64(total)
		d.progress.SetValue(float64(done))
		d.progress.Show()
	})
}

// TwoFactorCode asks for the code sent to the user's devices.
func (d *Display) TwoFactorCode(ctx context.Context) (string, bool) {
	type answer struct {
		code string
		ok   bool
	}
	answers := make(chan answer, 1)
	fyne.Do(func() {
		entry := widget.NewEntry()
		entry.SetPlaceHolder("123456")
		items := []*widget.FormItem{
			widget.NewFormItem("Code", entry),
		}
		form := dialog.NewForm("Two-Factor Authentication", "Submit", "Cancel", items, func(ok bool) {
			answers <- answer{entry.Text, ok}
		}, d.win)
		form.Show()
		d.win.Canvas().Focus(entry)
	})
	select {
	case a := <-answers:
		return a.code, a.ok
	case <-ctx.Done():
		return "", false
	}
}

// Confirm asks whether total items should be downloaded.
func (d *Display) Confirm(ctx context.Context, total int) bool {
	answers := make(chan bool, 1)
	fyne.Do(func() {
		d.total = total
		dialog.ShowConfirm("Confirm Download", formatters.ConfirmText(total), func(ok bool) {
			answers <- ok
		}, d.win)
	})
	select {
	case ok := <-answers:
		return ok
	case <-ctx.Done():
		return false
	}
}

// ShowResult reports the end of a run. An error clears the status line.
func (d *Display) ShowResult(summary downloader.Summary, err error) {
	fyne.Do(func() {
		d.total = 0
		if err != nil {
			d.status.SetText("")
			d.progress.Hide()
			dialog.ShowError(errors.New(formatters.ErrorText(err)), d.win)
			return
		}
		if title, msg := formatters.SummaryText(summary); title != "" {
			dialog.ShowInformation(title, msg, d.win)
		}
	})
}

// ShowError reports err in an error dialog.
func (d *Display) ShowError(err error) {
	fyne.Do(func() {
		dialog.ShowError(errors.New(formatters.ErrorText(err)), d.win)
	})
}

func (d *Display) ShowAndRun() {
	d.win.ShowAndRun()
}

// Quit closes the window and makes [Display.ShowAndRun] return.
func (d *Display) Quit() {
	fyne.Do(d.app.Quit)
}

func importance(l formatters.Level) widget.Importance {
	switch l {
	case formatters.LevelInfo:
		return widget.HighImportance
	case formatters.LevelSuccess:
		return widget.SuccessImportance
	case formatters.LevelError:
		return widget.DangerImportance
	}
	return widget.MediumImportance
}
