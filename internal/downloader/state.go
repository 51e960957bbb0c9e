package downloader

// State is a step of a single run.
//
//	Idle → Authenticating → (TwoFactorPending →)? Listing → Confirming? → Downloading → Done
//
// Authenticating, TwoFactorPending and Listing move to Failed on error.
// Listing (empty library) and Confirming (declined) return to Idle.
type State int

const (
	Idle State = iota
	Authenticating
	TwoFactorPending
	Listing
	Confirming
	Downloading
	Done
	Failed
)

var stateNames = [...]string{
	Idle:             "idle",
	Authenticating:   "authenticating",
	TwoFactorPending: "two-factor-pending",
	Listing:          "listing",
	Confirming:       "confirming",
	Downloading:      "downloading",
	Done:             "done",
	Failed:           "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Outcome is how a run that did not fail ended.
type Outcome int

const (
	// NoItems means the library was empty; nothing was created on disk.
	NoItems Outcome = iota + 1
	// Declined means the user did not confirm the full download.
	Declined
	// Completed means every planned item was attempted.
	Completed
)

func (o Outcome) String() string {
	switch o {
	case NoItems:
		return "no-items"
	case Declined:
		return "declined"
	case Completed:
		return "completed"
	}
	return "none"
}

// Summary is what a run hands back to the presentation layer.
type Summary struct {
	Mode    Mode
	Outcome Outcome
	State   State
	// Total is the number of items listed.
	Total int
	// Attempted is the number of items a download was tried for.
	Attempted  int
	Downloaded int
	Bytes      int64
	// Folder is the test folder for test runs and the destination root
	// otherwise.
	Folder   string
	Failures []*DownloadError
}

// Failed is the number of attempted items that did not produce a file.
func (s Summary) Failed() int { return len(s.Failures) }
