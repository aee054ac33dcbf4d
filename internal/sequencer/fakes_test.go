package sequencer

import (
	"context"
	"fmt"
	"sync"

	"quran-tui/internal/api"
	"quran-tui/internal/audio"
)

// makeChapter numbers verses globally as n*1000+i so chapters never collide.
func makeChapter(n, verses int) *api.LoadedChapter {
	ch := &api.LoadedChapter{
		Chapter: api.Chapter{
			Number:        n,
			EnglishName:   fmt.Sprintf("Chapter %d", n),
			NumberOfAyahs: verses,
		},
	}
	for i := 1; i <= verses; i++ {
		ch.Ayahs = append(ch.Ayahs, api.Verse{
			Number:        n*1000 + i,
			NumberInSurah: i,
			Text:          fmt.Sprintf("verse %d:%d", n, i),
		})
	}
	return ch
}

type fakeLoader struct {
	mu      sync.Mutex
	verses  map[int]int
	errs    map[int]error
	gates   map[int]chan struct{}
	entered chan int
	calls   []int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		verses:  map[int]int{1: 7, 2: 5, 3: 4, 113: 5, 114: 6},
		errs:    map[int]error{},
		gates:   map[int]chan struct{}{},
		entered: make(chan int, 16),
	}
}

func (l *fakeLoader) LoadChapter(ctx context.Context, n int) (*api.LoadedChapter, error) {
	l.mu.Lock()
	l.calls = append(l.calls, n)
	gate := l.gates[n]
	err := l.errs[n]
	verses, ok := l.verses[n]
	l.mu.Unlock()

	l.entered <- n
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		verses = 3
	}
	return makeChapter(n, verses), nil
}

func (l *fakeLoader) AudioURL(verseNumber int) string {
	return fmt.Sprintf("https://audio.example/ar.alafasy/%d.mp3", verseNumber)
}

func (l *fakeLoader) gate(n int) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan struct{})
	l.gates[n] = ch
	return ch
}

func (l *fakeLoader) fail(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs[n] = err
}

func (l *fakeLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

type fakeHandle struct {
	id  string
	url string

	mu     sync.Mutex
	calls  []string
	onDone func(audio.Status)
	paused bool
}

var _ audio.Handle = (*fakeHandle)(nil)

func (h *fakeHandle) record(call string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Start(onDone func(audio.Status)) error {
	h.mu.Lock()
	h.onDone = onDone
	h.mu.Unlock()
	h.record("start")
	return nil
}

func (h *fakeHandle) Pause() error {
	h.mu.Lock()
	h.paused = true
	h.mu.Unlock()
	h.record("pause")
	return nil
}

func (h *fakeHandle) Resume() error {
	h.mu.Lock()
	h.paused = false
	h.mu.Unlock()
	h.record("resume")
	return nil
}

func (h *fakeHandle) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

func (h *fakeHandle) Stop() error   { h.record("stop"); return nil }
func (h *fakeHandle) Unload() error { h.record("unload"); return nil }

func (h *fakeHandle) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

// active reports started and not yet stopped.
func (h *fakeHandle) active() bool {
	started, stopped := false, false
	for _, c := range h.Calls() {
		switch c {
		case "start":
			started = true
		case "stop":
			stopped = true
		}
	}
	return started && !stopped
}

// finish simulates the stream reaching its end.
func (h *fakeHandle) finish(natural bool) {
	h.mu.Lock()
	onDone := h.onDone
	h.mu.Unlock()
	onDone(audio.Status{HandleID: h.id, Finished: natural})
}

type fakePlayer struct {
	mu      sync.Mutex
	handles []*fakeHandle
	gates   map[string]chan struct{}
	opening chan string
	openErr error
}

var _ audio.Player = (*fakePlayer)(nil)

func newFakePlayer() *fakePlayer {
	return &fakePlayer{
		gates:   map[string]chan struct{}{},
		opening: make(chan string, 16),
	}
}

func (p *fakePlayer) Open(ctx context.Context, url string) (audio.Handle, error) {
	p.mu.Lock()
	gate := p.gates[url]
	err := p.openErr
	p.mu.Unlock()

	p.opening <- url
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	h := &fakeHandle{id: fmt.Sprintf("h%d", len(p.handles)+1), url: url}
	p.handles = append(p.handles, h)
	return h, nil
}

func (p *fakePlayer) gate(url string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	p.gates[url] = ch
	return ch
}

func (p *fakePlayer) all() []*fakeHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*fakeHandle(nil), p.handles...)
}

func (p *fakePlayer) last() *fakeHandle {
	hs := p.all()
	if len(hs) == 0 {
		return nil
	}
	return hs[len(hs)-1]
}

func (p *fakePlayer) activeCount() int {
	n := 0
	for _, h := range p.all() {
		if h.active() {
			n++
		}
	}
	return n
}
