package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultSampleRate = beep.SampleRate(44100)
	SpeakerBufferSize = 100 * time.Millisecond
	resampleQuality   = 4

	// Single-verse recitations are a few hundred KB; this bounds a bad URL.
	maxAudioBytes = 32 << 20
)

// SpeakerPlayer plays mp3 resources on the system speaker.
type SpeakerPlayer struct {
	httpClient *http.Client
	log        *zap.Logger

	initOnce sync.Once
	initErr  error
	rate     beep.SampleRate
}

var _ Player = (*SpeakerPlayer)(nil)

func NewSpeakerPlayer(httpClient *http.Client, log *zap.Logger) *SpeakerPlayer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SpeakerPlayer{
		httpClient: httpClient,
		log:        log,
		rate:       DefaultSampleRate,
	}
}

func (p *SpeakerPlayer) initSpeaker() error {
	p.initOnce.Do(func() {
		if err := speaker.Init(p.rate, p.rate.N(SpeakerBufferSize)); err != nil {
			p.initErr = fmt.Errorf("%w: failed to initialize speaker: %v", ErrPlayback, err)
			return
		}
		p.log.Debug("speaker initialized", zap.Int("sample_rate", int(p.rate)))
	})
	return p.initErr
}

// Open downloads and decodes url. The whole file is buffered so the decoder
// can seek and so playback never stalls on the network.
func (p *SpeakerPlayer) Open(ctx context.Context, url string) (Handle, error) {
	if err := p.initSpeaker(); err != nil {
		return nil, err
	}

	data, err := p.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	stream, format, err := mp3.Decode(memFile{bytes.NewReader(data)})
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrPlayback, url, err)
	}

	var s beep.Streamer = stream
	if format.SampleRate != p.rate {
		s = beep.Resample(resampleQuality, format.SampleRate, p.rate, stream)
	}

	h := &speakerHandle{
		id:     uuid.NewString(),
		url:    url,
		source: stream,
		ctrl:   &beep.Ctrl{Streamer: s},
		log:    p.log,
	}
	p.log.Debug("audio handle opened",
		zap.String("handle", h.id),
		zap.String("url", url),
		zap.Int("sample_rate", int(format.SampleRate)),
	)
	return h, nil
}

func (p *SpeakerPlayer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlayback, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", ErrPlayback, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrPlayback, url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrPlayback, url, err)
	}
	if len(data) > maxAudioBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrPlayback, url, maxAudioBytes)
	}
	return data, nil
}

// memFile is an in-memory ReadCloser that keeps io.Seeker visible to the
// decoder.
type memFile struct{ *bytes.Reader }

func (memFile) Close() error { return nil }

type speakerHandle struct {
	id     string
	url    string
	source beep.StreamSeekCloser
	ctrl   *beep.Ctrl
	log    *zap.Logger

	// stopped is read by the speaker callback, which runs with the speaker
	// locked, so it must not share mu.
	stopped atomic.Bool

	mu       sync.Mutex
	started  bool
	unloaded bool
}

func (h *speakerHandle) ID() string { return h.id }

func (h *speakerHandle) Start(onDone func(Status)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.unloaded || h.stopped.Load() {
		return fmt.Errorf("%w: handle %s already released", ErrPlayback, h.id)
	}
	if h.started {
		return fmt.Errorf("%w: handle %s already started", ErrPlayback, h.id)
	}
	h.started = true

	speaker.Play(h.stream(onDone))
	return nil
}

// stream is what the mixer plays: the controlled source followed by a
// callback reporting how it ended. The callback runs on the speaker
// goroutine with the speaker locked, so onDone is handed off to let it call
// back into Stop or Open.
func (h *speakerHandle) stream(onDone func(Status)) beep.Streamer {
	return beep.Seq(h.ctrl, beep.Callback(func() {
		st := Status{HandleID: h.id, Finished: !h.stopped.Load(), Err: h.source.Err()}
		if onDone != nil {
			go onDone(st)
		}
	}))
}

func (h *speakerHandle) Pause() error  { return h.setPaused(true) }
func (h *speakerHandle) Resume() error { return h.setPaused(false) }

func (h *speakerHandle) setPaused(paused bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started || h.stopped.Load() {
		return fmt.Errorf("%w: handle %s is not playing", ErrPlayback, h.id)
	}

	speaker.Lock()
	h.ctrl.Paused = paused
	speaker.Unlock()
	return nil
}

func (h *speakerHandle) Paused() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return h.ctrl.Paused
}

// Stop detaches the stream from the mixer. It is idempotent.
func (h *speakerHandle) Stop() error {
	if !h.stopped.CompareAndSwap(false, true) {
		return nil
	}

	speaker.Lock()
	h.ctrl.Streamer = nil
	speaker.Unlock()

	h.log.Debug("audio handle stopped", zap.String("handle", h.id))
	return nil
}

// Unload releases the decoder. Unloading a handle that was never stopped
// stops it first.
func (h *speakerHandle) Unload() error {
	if err := h.Stop(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return nil
	}
	h.unloaded = true

	if err := h.source.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", ErrPlayback, h.url, err)
	}
	h.log.Debug("audio handle unloaded", zap.String("handle", h.id))
	return nil
}
