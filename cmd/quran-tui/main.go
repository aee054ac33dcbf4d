package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quran-tui/internal/api"
	"quran-tui/internal/audio"
	"quran-tui/internal/config"
	"quran-tui/internal/content"
	"quran-tui/internal/logging"
	"quran-tui/internal/sequencer"
	"quran-tui/internal/theme"
	"quran-tui/internal/ui"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "quran-tui",
	Short: "Read and listen to the Quran in the terminal",
	Long: `quran-tui browses the 114 chapters, shows the verses of a chapter and
recites them verse by verse, moving on to the next verse when one finishes.

Run without arguments to start the interactive reader.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}

		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", path, err)
		}

		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		logger.Debug("config loaded", zap.String("path", path), zap.String("reciter", cfg.API.Reciter))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $XDG_CONFIG_HOME/quran-tui/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	playCmd.Flags().IntVar(&playFrom, "from", 1, "Verse to start reciting from")
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(chaptersCmd, readCmd, playCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	path, err := config.DefaultPath()
	if err != nil {
		return "", fmt.Errorf("failed to locate config: %w", err)
	}
	return path, nil
}

// newHTTPClient builds the client shared by the API and audio downloads.
func newHTTPClient(cfg *config.Config) (*http.Client, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	return &http.Client{Timeout: timeout}, nil
}

// newFetcher builds the API client and chapter fetcher from cfg.
func newFetcher(cfg *config.Config, hc *http.Client, log *zap.Logger) *content.Fetcher {
	client := api.NewClient(
		api.WithBaseURL(cfg.API.BaseURL),
		api.WithAudioBaseURL(cfg.API.AudioBaseURL),
		api.WithHTTPClient(hc),
	)
	return content.NewFetcher(client, cfg.API.Reciter, log)
}

func newSequencer(hc *http.Client, fetcher *content.Fetcher, log *zap.Logger) *sequencer.Sequencer {
	player := audio.NewSpeakerPlayer(hc, log)
	return sequencer.New(fetcher, player, log)
}

func runTUI(cmd *cobra.Command, args []string) error {
	log := logging.OrNop(logger)

	hc, err := newHTTPClient(cfg)
	if err != nil {
		return err
	}
	fetcher := newFetcher(cfg, hc, log)
	seq := newSequencer(hc, fetcher, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	defer seq.Exit()

	log.Info("starting reader", zap.String("reciter", fetcher.Reciter()), zap.String("theme", cfg.UI.Theme))

	p := tea.NewProgram(
		ui.NewModel(ctx, fetcher, seq, theme.Get(cfg.UI.Theme), log),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
