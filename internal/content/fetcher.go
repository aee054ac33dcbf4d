// Package content holds the chapter index fetched from the remote API and
// loads individual chapters for a fixed reciter.
package content

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"quran-tui/internal/api"
)

// Source is the subset of the API client the fetcher needs.
type Source interface {
	ListChapters(ctx context.Context) ([]api.Chapter, error)
	GetChapter(ctx context.Context, n int, reciter string) (*api.LoadedChapter, error)
	AudioURL(reciter string, verseNumber int) string
}

var _ Source = (*api.Client)(nil)

type Fetcher struct {
	src     Source
	reciter string
	log     *zap.Logger

	group    singleflight.Group
	inflight atomic.Int32

	mu       sync.RWMutex
	chapters []api.Chapter
}

func NewFetcher(src Source, reciter string, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{src: src, reciter: reciter, log: log}
}

// Reciter returns the edition identifier chapters are loaded with.
func (f *Fetcher) Reciter() string { return f.reciter }

// Loading reports whether any fetch is outstanding.
func (f *Fetcher) Loading() bool {
	return f.inflight.Load() > 0
}

func (f *Fetcher) begin() func() {
	f.inflight.Add(1)
	return func() { f.inflight.Add(-1) }
}

// ListChapters refreshes the chapter index. On failure the previously held
// index is kept and the error is returned. Overlapping calls share one
// request; that request is detached from any single caller's cancellation,
// and a caller whose ctx ends stops waiting without affecting the others.
func (f *Fetcher) ListChapters(ctx context.Context) ([]api.Chapter, error) {
	defer f.begin()()

	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan("chapters", func() (interface{}, error) {
		chapters, err := f.src.ListChapters(shared)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.chapters = chapters
		f.mu.Unlock()
		return nil, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return f.Chapters(), ctx.Err()
	case res = <-ch:
	}

	if err := res.Err; err != nil {
		f.log.Warn("failed to list chapters", zap.Error(err), zap.Bool("shared", res.Shared))
		return f.Chapters(), err
	}

	chapters := f.Chapters()
	f.log.Debug("chapter index loaded", zap.Int("count", len(chapters)))
	return chapters, nil
}

// Chapters returns a copy of the held index.
func (f *Fetcher) Chapters() []api.Chapter {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]api.Chapter(nil), f.chapters...)
}

// Chapter looks up a chapter in the held index by ordinal.
func (f *Fetcher) Chapter(n int) (api.Chapter, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, c := range f.chapters {
		if c.Number == n {
			return c, true
		}
	}
	return api.Chapter{}, false
}

// LoadChapter fetches chapter n with its verses.
func (f *Fetcher) LoadChapter(ctx context.Context, n int) (*api.LoadedChapter, error) {
	defer f.begin()()

	ch, err := f.src.GetChapter(ctx, n, f.reciter)
	if err != nil {
		f.log.Warn("failed to load chapter", zap.Int("chapter", n), zap.Error(err))
		return nil, err
	}
	f.log.Debug("chapter loaded",
		zap.Int("chapter", ch.Number),
		zap.String("name", ch.EnglishName),
		zap.Int("verses", len(ch.Ayahs)),
	)
	return ch, nil
}

// AudioURL addresses the configured reciter's recording of a verse.
func (f *Fetcher) AudioURL(verseNumber int) string {
	return f.src.AudioURL(f.reciter, verseNumber)
}
