// Package sequencer owns the loaded chapter, the playback cursor and the
// single live audio handle. All mutation goes through a small transition
// table; audio completion arrives as events on Events() and is applied with
// Handle.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"quran-tui/internal/api"
	"quran-tui/internal/audio"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrStaleLoad is returned when a newer chapter request (or Exit)
	// superseded this one; its result was discarded.
	ErrStaleLoad = errors.New("chapter response superseded")
	// ErrSuperseded is returned by Play when a later Play or release won
	// while the audio was opening.
	ErrSuperseded     = errors.New("playback superseded")
	ErrNoChapter      = errors.New("no chapter loaded")
	ErrVerseNotLoaded = errors.New("verse not in loaded chapter")
	ErrNothingPlaying = errors.New("nothing playing")
)

const eventBuffer = 8

// Loader fetches chapters and addresses verse audio.
type Loader interface {
	LoadChapter(ctx context.Context, n int) (*api.LoadedChapter, error)
	AudioURL(verseNumber int) string
}

// Event reports the end of the handle opened for Generation.
type Event struct {
	Kind       EventKind
	Generation uint64
	Finished   bool
	Err        error
}

// Snapshot is a consistent copy of the observable state.
type Snapshot struct {
	State   State
	Chapter *api.LoadedChapter
	Cursor  int // index into Chapter.Ayahs, -1 when unset
	Playing bool
	Paused  bool
}

// CursorVerse returns the verse under the cursor.
func (s Snapshot) CursorVerse() (api.Verse, bool) {
	if s.Chapter == nil || s.Cursor < 0 || s.Cursor >= len(s.Chapter.Ayahs) {
		return api.Verse{}, false
	}
	return s.Chapter.Ayahs[s.Cursor], true
}

type Sequencer struct {
	loader Loader
	player audio.Player
	log    *zap.Logger
	events chan Event

	mu      sync.Mutex
	state   State
	chapter *api.LoadedChapter
	cursor  int
	handle  audio.Handle
	ended   bool
	// advancePending records that the current handle finished naturally
	// while a chapter load was in flight. A failed load resumes from it.
	advancePending bool
	// generation advances whenever the handle slot is released, so opens
	// and completion events from an older handle can be recognised.
	generation uint64
	// token is the latest chapter request issued.
	token uint64
}

func New(loader Loader, player audio.Player, log *zap.Logger) *Sequencer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sequencer{
		loader: loader,
		player: player,
		log:    log.Named("sequencer"),
		events: make(chan Event, eventBuffer),
		cursor: -1,
	}
}

// Events delivers playback-ended notifications. The owner must pass each
// one to Handle.
func (s *Sequencer) Events() <-chan Event { return s.events }

func (s *Sequencer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:   s.state,
		Chapter: s.chapter,
		Cursor:  s.cursor,
	}
	if s.handle != nil && !s.ended {
		snap.Paused = s.handle.Paused()
		snap.Playing = !snap.Paused
	}
	return snap
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cursor returns the verse last started, if any.
func (s *Sequencer) Cursor() (api.Verse, bool) {
	return s.Snapshot().CursorVerse()
}

// transition applies kind to the current state. Caller holds mu.
func (s *Sequencer) transition(kind EventKind) error {
	to, ok := transitions[kind][s.state]
	if !ok {
		return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, kind, s.state)
	}
	if to == stateRestore {
		to = StateIdle
		if s.chapter != nil {
			to = StateReading
		}
	}
	if to != s.state {
		s.log.Debug("state transition",
			zap.Stringer("event", kind),
			zap.Stringer("from", s.state),
			zap.Stringer("to", to),
		)
	}
	s.state = to
	return nil
}

// release stops then unloads the live handle and invalidates its
// generation. Caller holds mu.
func (s *Sequencer) release() {
	s.generation++
	s.ended = false
	s.advancePending = false
	if s.handle == nil {
		return
	}
	h := s.handle
	s.handle = nil
	releaseHandle(h, s.log)
}

func releaseHandle(h audio.Handle, log *zap.Logger) {
	if err := h.Stop(); err != nil {
		log.Warn("failed to stop audio", zap.String("handle", h.ID()), zap.Error(err))
	}
	if err := h.Unload(); err != nil {
		log.Warn("failed to unload audio", zap.String("handle", h.ID()), zap.Error(err))
	}
}

// SelectChapter loads chapter n. On success the previous chapter, cursor
// and handle are discarded; on failure they are left as they were.
func (s *Sequencer) SelectChapter(ctx context.Context, n int) error {
	if !api.ValidChapter(n) {
		return fmt.Errorf("%w: %d", api.ErrInvalidChapter, n)
	}

	s.mu.Lock()
	if err := s.transition(EventSelect); err != nil {
		s.mu.Unlock()
		return err
	}
	s.token++
	token := s.token
	s.mu.Unlock()

	ch, err := s.loader.LoadChapter(ctx, n)

	s.mu.Lock()
	if token != s.token {
		s.mu.Unlock()
		s.log.Debug("discarding stale chapter response",
			zap.Int("chapter", n),
			zap.Uint64("token", token),
			zap.Uint64("latest", s.token),
		)
		return ErrStaleLoad
	}
	if err != nil {
		s.log.Warn("chapter load failed", zap.Int("chapter", n), zap.Error(err))
		if terr := s.transition(EventLoadFailed); terr != nil {
			s.mu.Unlock()
			return terr
		}
		next, gen, resume := s.takePendingAdvance()
		s.mu.Unlock()

		if resume {
			// The abandoned load's context no longer governs playback.
			if perr := s.play(context.WithoutCancel(ctx), next, &gen); perr != nil {
				s.log.Warn("failed to resume recitation", zap.Int("verse", next.NumberInSurah), zap.Error(perr))
			}
		}
		return fmt.Errorf("loading chapter %d: %w", n, err)
	}
	defer s.mu.Unlock()

	s.release()
	s.chapter = ch
	s.cursor = -1
	s.log.Info("chapter selected", zap.Int("chapter", ch.Number), zap.Int("verses", len(ch.Ayahs)))
	return s.transition(EventLoaded)
}

// Play stops and unloads any live handle, then opens and starts v.
func (s *Sequencer) Play(ctx context.Context, v api.Verse) error {
	return s.play(ctx, v, nil)
}

// play starts v. When expect is non-nil the call is a no-op unless the
// generation still equals *expect and no chapter swap is under way
// (auto-advance).
func (s *Sequencer) play(ctx context.Context, v api.Verse, expect *uint64) error {
	s.mu.Lock()
	if expect != nil && (*expect != s.generation || s.state != StateReading) {
		s.mu.Unlock()
		return nil
	}
	if err := s.transition(EventPlay); err != nil {
		s.mu.Unlock()
		return err
	}
	idx, ok := s.chapter.Index(v.NumberInSurah)
	if !ok || s.chapter.Ayahs[idx].Number != v.Number {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d:%d", ErrVerseNotLoaded, s.chapter.Number, v.NumberInSurah)
	}
	s.release()
	gen := s.generation
	url := s.loader.AudioURL(v.Number)
	s.mu.Unlock()

	h, err := s.player.Open(ctx, url)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.log.Warn("failed to open audio", zap.Int("verse", v.Number), zap.String("url", url), zap.Error(err))
		return fmt.Errorf("playing verse %d: %w", v.NumberInSurah, err)
	}
	if gen != s.generation {
		releaseHandle(h, s.log)
		return ErrSuperseded
	}
	if err := h.Start(s.notify(gen)); err != nil {
		releaseHandle(h, s.log)
		s.log.Warn("failed to start audio", zap.Int("verse", v.Number), zap.Error(err))
		return fmt.Errorf("playing verse %d: %w", v.NumberInSurah, err)
	}

	s.handle = h
	s.cursor = idx
	s.log.Debug("playing verse",
		zap.Int("chapter", s.chapter.Number),
		zap.Int("verse", v.NumberInSurah),
		zap.String("handle", h.ID()),
		zap.Uint64("generation", gen),
	)
	return nil
}

func (s *Sequencer) notify(gen uint64) func(audio.Status) {
	return func(st audio.Status) {
		ev := Event{Kind: EventPlaybackEnded, Generation: gen, Finished: st.Finished, Err: st.Err}
		select {
		case s.events <- ev:
		default:
			s.log.Warn("dropping playback event; owner is not draining Events()", zap.Uint64("generation", gen))
		}
	}
}

// Handle applies an event received from Events(). A natural finish of the
// current verse starts the next one; the last verse of a chapter settles
// without moving on to another chapter.
func (s *Sequencer) Handle(ctx context.Context, ev Event) error {
	if ev.Kind != EventPlaybackEnded {
		return fmt.Errorf("%w: %s cannot be dispatched", ErrInvalidTransition, ev.Kind)
	}

	s.mu.Lock()
	if ev.Generation != s.generation || s.handle == nil {
		s.mu.Unlock()
		s.log.Debug("ignoring event for released handle", zap.Uint64("generation", ev.Generation))
		return nil
	}
	if err := s.transition(EventPlaybackEnded); err != nil {
		s.mu.Unlock()
		return err
	}
	if ev.Err != nil {
		s.log.Warn("audio stream error", zap.Error(ev.Err))
	}
	s.ended = true
	if !ev.Finished {
		s.mu.Unlock()
		return nil
	}
	if s.state != StateReading {
		s.advancePending = true
		s.log.Debug("deferring advance until chapter load settles", zap.Uint64("generation", ev.Generation))
		s.mu.Unlock()
		return nil
	}

	v, ok := s.nextVerse()
	if !ok {
		s.log.Debug("end of chapter", zap.Int("chapter", s.chapter.Number))
		s.mu.Unlock()
		return nil
	}
	gen := s.generation
	s.mu.Unlock()

	return s.play(ctx, v, &gen)
}

// nextVerse returns the verse after the cursor. Caller holds mu.
func (s *Sequencer) nextVerse() (api.Verse, bool) {
	if s.chapter == nil || s.cursor < 0 {
		return api.Verse{}, false
	}
	next := s.cursor + 1
	if next >= len(s.chapter.Ayahs) {
		return api.Verse{}, false
	}
	return s.chapter.Ayahs[next], true
}

// takePendingAdvance consumes a deferred advance once the sequencer is back
// in Reading. Caller holds mu.
func (s *Sequencer) takePendingAdvance() (api.Verse, uint64, bool) {
	if !s.advancePending || s.state != StateReading {
		return api.Verse{}, 0, false
	}
	s.advancePending = false
	v, ok := s.nextVerse()
	if !ok {
		return api.Verse{}, 0, false
	}
	return v, s.generation, true
}

// NextChapter loads the chapter after the loaded one, wrapping 114 to 1.
func (s *Sequencer) NextChapter(ctx context.Context) error {
	n, err := s.loadedNumber()
	if err != nil {
		return err
	}
	return s.SelectChapter(ctx, NextChapterNumber(n))
}

// PreviousChapter loads the chapter before the loaded one. At chapter 1 it
// does nothing.
func (s *Sequencer) PreviousChapter(ctx context.Context) error {
	n, err := s.loadedNumber()
	if err != nil {
		return err
	}
	prev := PreviousChapterNumber(n)
	if prev == n {
		return nil
	}
	return s.SelectChapter(ctx, prev)
}

func (s *Sequencer) loadedNumber() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chapter == nil {
		return 0, ErrNoChapter
	}
	return s.chapter.Number, nil
}

// TogglePause pauses or resumes the live handle.
func (s *Sequencer) TogglePause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil || s.ended {
		return ErrNothingPlaying
	}
	if s.handle.Paused() {
		return s.handle.Resume()
	}
	return s.handle.Pause()
}

// Exit releases the handle, drops the chapter and cursor, and invalidates
// any chapter request still in flight.
func (s *Sequencer) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.release()
	s.chapter = nil
	s.cursor = -1
	s.token++
	_ = s.transition(EventExit)
}
