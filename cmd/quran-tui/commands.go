package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quran-tui/internal/api"
	"quran-tui/internal/config"
	"quran-tui/internal/logging"
	"quran-tui/internal/sequencer"
)

var (
	playFrom  int
	forceInit bool
)

var chaptersCmd = &cobra.Command{
	Use:   "chapters",
	Short: "List the chapters",
	Args:  cobra.NoArgs,
	RunE:  runChapters,
}

var readCmd = &cobra.Command{
	Use:   "read [chapter]",
	Short: "Print the verses of a chapter",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

var playCmd = &cobra.Command{
	Use:   "play [chapter]",
	Short: "Recite a chapter without the interactive reader",
	Long: `Recites the chapter verse by verse, starting at --from, and stops after
the last verse. Interrupt with Ctrl+C.

Example:
  quran-tui play 36 --from 5`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
	// The file may not exist or may not validate yet.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("config %s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseChapter(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || !api.ValidChapter(n) {
		return 0, fmt.Errorf("%w: %q (expected 1-%d)", api.ErrInvalidChapter, arg, api.ChapterCount)
	}
	return n, nil
}

func runChapters(cmd *cobra.Command, args []string) error {
	hc, err := newHTTPClient(cfg)
	if err != nil {
		return err
	}
	fetcher := newFetcher(cfg, hc, logging.OrNop(logger))
	chapters, err := fetcher.ListChapters(commandContext(cmd))
	if err != nil {
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Name", "Translation", "Verses", "Revelation")
	for _, c := range chapters {
		t.Row(strconv.Itoa(c.Number), c.EnglishName, c.EnglishNameTranslation, strconv.Itoa(c.NumberOfAyahs), c.RevelationType)
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	n, err := parseChapter(args[0])
	if err != nil {
		return err
	}
	hc, err := newHTTPClient(cfg)
	if err != nil {
		return err
	}
	fetcher := newFetcher(cfg, hc, logging.OrNop(logger))
	ch, err := fetcher.LoadChapter(commandContext(cmd), n)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printHeader(out, ch)
	for _, v := range ch.Ayahs {
		printVerse(out, v)
	}
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	n, err := parseChapter(args[0])
	if err != nil {
		return err
	}
	log := logging.OrNop(logger)
	hc, err := newHTTPClient(cfg)
	if err != nil {
		return err
	}
	seq := newSequencer(hc, newFetcher(cfg, hc, log), log)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return recite(ctx, seq, n, playFrom, cmd.OutOrStdout(), log)
}

// recite plays chapter n from verse `from` until the chapter ends, playback
// stops, or ctx is cancelled. The sequencer is released on return.
func recite(ctx context.Context, seq *sequencer.Sequencer, n, from int, out io.Writer, log *zap.Logger) error {
	defer seq.Exit()

	if err := seq.SelectChapter(ctx, n); err != nil {
		return err
	}
	ch := seq.Snapshot().Chapter
	idx, ok := ch.Index(from)
	if !ok {
		return fmt.Errorf("%w: chapter %d has %d verses, got --from %d", sequencer.ErrVerseNotLoaded, n, len(ch.Ayahs), from)
	}

	printHeader(out, ch)
	if err := seq.Play(ctx, ch.Ayahs[idx]); err != nil {
		return err
	}

	last := -1
	for {
		snap := seq.Snapshot()
		if snap.Cursor != last {
			if v, ok := snap.CursorVerse(); ok {
				printVerse(out, v)
			}
			last = snap.Cursor
		}
		if !snap.Playing && !snap.Paused {
			log.Info("recitation finished", zap.Int("chapter", n), zap.Int("cursor", snap.Cursor))
			return nil
		}

		select {
		case <-ctx.Done():
			log.Info("recitation interrupted", zap.Int("chapter", n))
			return nil
		case ev := <-seq.Events():
			if err := seq.Handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func printHeader(w io.Writer, ch *api.LoadedChapter) {
	title := lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("%d. %s (%s)", ch.Number, ch.EnglishName, ch.EnglishNameTranslation))
	fmt.Fprintf(w, "%s  %s\n\n", title, ch.Name)
}

func printVerse(w io.Writer, v api.Verse) {
	fmt.Fprintf(w, "%3d  %s\n", v.NumberInSurah, v.Text)
}
