// Package formatters renders workflow states, summaries and errors as the
// text shown to the user.
package formatters

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"icloud-photo-downloader/internal/downloader"
)

// Level is how a status line should be presented.
type Level int

const (
	LevelNone Level = iota
	LevelInfo
	LevelSuccess
	LevelError
)

// Status is a status line.
type Status struct {
	Text  string
	Level Level
}

// maxListedFailures caps how many failed items a summary names.
const maxListedFailures = 10

// StatusFor returns the status line for state. total is the number of
// items of the run, if known.
func StatusFor(mode downloader.Mode, state downloader.State, total int) Status {
	switch state {
	case downloader.Authenticating, downloader.TwoFactorPending, downloader.Listing, downloader.Confirming:
		return Status{"Logging into iCloud...", LevelInfo}
	case downloader.Downloading:
		if mode == downloader.ModeTest {
			return Status{"Downloading first item...", LevelInfo}
		}
		return Status{fmt.Sprintf("Downloading %s...", english.Plural(total, "item", "")), LevelInfo}
	case downloader.Done:
		if mode == downloader.ModeTest {
			return Status{"Test download complete!", LevelSuccess}
		}
		return Status{"Download complete!", LevelSuccess}
	}
	return Status{}
}

// ConfirmText is the question asked before a full download.
func ConfirmText(total int) string {
	return fmt.Sprintf("Found %s. Start download?", english.Plural(total, "item", ""))
}

// SummaryText returns the title and message of the dialog shown after a
// run. Both are empty if nothing should be shown.
func SummaryText(s downloader.Summary) (title, message string) {
	switch s.Outcome {
	case downloader.NoItems:
		return "No Items", "No items found in your iCloud account."
	case downloader.Completed:
	default:
		return "", ""
	}

	if s.Mode == downloader.ModeTest {
		message = "Downloaded the first item to: " + s.Folder
		if s.Failed() > 0 {
			message += "\n\nThe item could not be saved: " + s.Failures[0].Err.Error()
		}
		return "Test Mode Complete", message
	}

	if s.Failed() == 0 {
		return "Success", fmt.Sprintf("All items downloaded successfully! (%s, %s)",
			english.Plural(s.Downloaded, "item", ""), humanize.Bytes(uint64(s.Bytes)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Downloaded %s of %s (%s). %s failed:",
		humanize.Comma(int64(s.Downloaded)),
		english.Plural(s.Total, "item", ""),
		humanize.Bytes(uint64(s.Bytes)),
		humanize.Comma(int64(s.Failed())),
	)
	for i, f := range s.Failures {
		if i == maxListedFailures {
			fmt.Fprintf(&b, "\n  ...and %d more", s.Failed()-maxListedFailures)
			break
		}
		fmt.Fprintf(&b, "\n  %s: %v", f.Filename, f.Err)
	}
	return "Download Complete", b.String()
}

// ErrorText returns the message shown for an error returned by a run.
func ErrorText(err error) string {
	var missing *downloader.MissingFieldError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &missing):
		if missing.Field == downloader.FieldDestination {
			return "Please select a download folder."
		}
		return "Please enter your Apple ID and password."
	case errors.Is(err, downloader.ErrInvalidCode):
		return "Invalid 2FA code."
	case errors.Is(err, downloader.ErrInterrupted):
		return "Download interrupted. Files already downloaded were kept."
	}
	return err.Error()
}
