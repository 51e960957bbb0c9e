package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"icloud-photo-downloader/internal/downloader"
)

// flags holds the values of the persistent flags.
type flags struct {
	config  string
	debug   bool
	appleID string
	dest    string
	yes     bool
}

// NewRootCmd creates the root command. Without a subcommand it opens the
// window.
func NewRootCmd() *cobra.Command {
	var f flags
	rootCmd := &cobra.Command{
		Use:   "icloud-photo-downloader",
		Short: "Download an iCloud photo library into monthly folders",
		Long: `Download every photo and video of an iCloud library into a local
folder, with one subfolder per month (e.g. 2024-03).

Without a subcommand the desktop window is opened. The download and test
subcommands run the same steps in the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := f.load(false)
			if err != nil {
				return err
			}
			return RunGUI(cmd.Context(), *conf)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&f.config, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&f.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&f.appleID, "apple-id", "", "Apple ID (overrides config)")
	rootCmd.PersistentFlags().StringVar(&f.dest, "dest", "", "Download folder (overrides config)")

	rootCmd.AddCommand(
		newRunCmd(&f, downloader.ModeFull, "download", "Download the whole library"),
		newRunCmd(&f, downloader.ModeTest, "test", "Download only the first item into the Test folder"),
	)
	return rootCmd
}

func newRunCmd(f *flags, mode downloader.Mode, use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := f.load(true)
			if err != nil {
				return err
			}
			_, err = RunTerminal(cmd.Context(), *conf, mode, TerminalOptions{
				Yes: f.yes,
				In:  cmd.InOrStdin(),
				Out: cmd.ErrOrStderr(),
			})
			return err
		},
	}
	if mode == downloader.ModeFull {
		cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Start the download without asking")
	}
	return cmd
}

// load sets up logging and loads the configuration with the flags applied.
func (f *flags) load(text bool) (*Config, error) {
	conf, err := LoadConfig(ConfigPath(f.config))
	if err != nil {
		return nil, err
	}
	if f.appleID != "" {
		conf.App.AppleID = f.appleID
	}
	if f.dest != "" {
		conf.App.DownloadDir = f.dest
	}
	level := conf.Level()
	if f.debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if text {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	}
	// Debug level since conf has sensitive values.
	slog.Debug("loaded config", "config", conf)
	return conf, nil
}

// Execute runs the root command until it finishes or the process is
// interrupted. The first interrupt cancels the command's context so a
// batch stops after the item in flight; a second one kills the process.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	context.AfterFunc(ctx, stop)
	return NewRootCmd().ExecuteContext(ctx)
}
