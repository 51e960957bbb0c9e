package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"icloud-photo-downloader/internal/app/formatters"
	"icloud-photo-downloader/internal/downloader"
)

// TerminalOptions configures the terminal front end.
type TerminalOptions struct {
	// Yes confirms a full download without asking.
	Yes bool
	// In and Out default to stdin and stderr.
	In  io.Reader
	Out io.Writer
}

// terminal prompts on stdin and reports progress on stderr.
type terminal struct {
	in     io.Reader
	lines  *bufio.Reader
	out    io.Writer
	yes    bool
	isTerm bool

	mu     sync.Mutex
	status string
	bar    *progressbar.ProgressBar
}

var _ downloader.Prompter = (*terminal)(nil)

func newTerminal(opts TerminalOptions) *terminal {
	t := &terminal{in: opts.In, out: opts.Out, yes: opts.Yes}
	if t.in == nil {
		t.in = os.Stdin
	}
	if t.out == nil {
		t.out = os.Stderr
	}
	if f, ok := t.out.(*os.File); ok {
		t.isTerm = term.IsTerminal(int(f.Fd()))
	}
	t.lines = bufio.NewReader(t.in)
	return t
}

// inputs collects the Apple ID, password and destination. The password is
// taken from ICLOUD_PASSWORD if set and is otherwise read without echo.
func (t *terminal) inputs(conf Config) (downloader.Inputs, error) {
	in := downloader.Inputs{
		AccountID:   conf.App.AppleID,
		Destination: conf.App.DownloadDir,
	}
	if strings.TrimSpace(in.AccountID) == "" {
		fmt.Fprint(t.out, "Apple ID: ")
		line, err := t.readLine(context.Background())
		if err != nil {
			return in, err
		}
		in.AccountID = line
	}
	if v, ok := os.LookupEnv("ICLOUD_PASSWORD"); ok {
		in.Password = v
		return in, nil
	}
	fmt.Fprint(t.out, "Password: ")
	if f, ok := t.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(t.out)
		if err != nil {
			return in, fmt.Errorf("failed to read password: %w", err)
		}
		in.Password = string(pw)
		return in, nil
	}
	line, err := t.readLine(context.Background())
	if err != nil {
		return in, err
	}
	in.Password = line
	return in, nil
}

// readLine reads one line from the input. It gives up when ctx is done,
// leaving the read to finish in the background.
func (t *terminal) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	results := make(chan result, 1)
	go func() {
		line, err := t.lines.ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		results <- result{strings.TrimSpace(line), err}
	}()
	select {
	case r := <-results:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// TwoFactorCode implements downloader.Prompter.
func (t *terminal) TwoFactorCode(ctx context.Context) (string, bool) {
	fmt.Fprint(t.out, "Enter the 2FA code sent to your devices: ")
	code, err := t.readLine(ctx)
	if err != nil {
		fmt.Fprintln(t.out)
		return "", false
	}
	return code, true
}

// Confirm implements downloader.Prompter.
func (t *terminal) Confirm(ctx context.Context, total int) bool {
	if t.yes {
		fmt.Fprintln(t.out, formatters.ConfirmText(total), "yes")
		return true
	}
	fmt.Fprint(t.out, formatters.ConfirmText(total), " [y/N] ")
	answer, err := t.readLine(ctx)
	if err != nil {
		fmt.Fprintln(t.out)
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

// SetState prints the status line when it changes.
func (t *terminal) SetState(mode downloader.Mode, state downloader.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state != downloader.Downloading {
		t.finishBar()
	}
	status := formatters.StatusFor(mode, state, 0)
	if state == downloader.Downloading {
		// The count is shown by the progress bar.
		status.Text = "Downloading..."
	}
	if status.Text == "" || status.Text == t.status {
		return
	}
	t.status = status.Text
	fmt.Fprintln(t.out, status.Text)
}

// SetProgress advances the progress bar, or prints a line per item when
// the output is not a terminal.
func (t *terminal) SetProgress(done, total int, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isTerm {
		fmt.Fprintf(t.out, "[%d/%d] %s\n", done, total, name)
		return
	}
	if t.bar == nil {
		t.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Downloading"),
			progressbar.OptionSetWriter(t.out),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(t.out, "\n")
			}),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	t.bar.Describe(name)
	_ = t.bar.Set(done)
}

// finishBar completes the progress bar, if any. t.mu must be held.
func (t *terminal) finishBar() {
	if t.bar != nil {
		_ = t.bar.Finish()
		t.bar = nil
	}
}

// finish prints the result of a run.
func (t *terminal) finish(summary downloader.Summary, err error) {
	t.mu.Lock()
	t.finishBar()
	t.mu.Unlock()
	if err != nil {
		fmt.Fprintln(t.out, "Error:", formatters.ErrorText(err))
		return
	}
	if title, msg := formatters.SummaryText(summary); title != "" {
		fmt.Fprintf(t.out, "%s\n%s\n", title, msg)
	}
}
