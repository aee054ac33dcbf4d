package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quran-tui/internal/api"
	"quran-tui/internal/audio"
	"quran-tui/internal/config"
	"quran-tui/internal/sequencer"
)

const indexJSON = `{"code": 200, "status": "OK", "data": [
  {"number": 1, "name": "سُورَةُ ٱلْفَاتِحَةِ", "englishName": "Al-Faatiha", "englishNameTranslation": "The Opening", "numberOfAyahs": 7, "revelationType": "Meccan"},
  {"number": 112, "name": "سورة الإخلاص", "englishName": "Al-Ikhlaas", "englishNameTranslation": "Sincerity", "numberOfAyahs": 4, "revelationType": "Meccan"}
]}`

const chapterJSON = `{"code": 200, "status": "OK", "data": {
  "number": 112, "name": "سورة الإخلاص", "englishName": "Al-Ikhlaas", "englishNameTranslation": "Sincerity", "numberOfAyahs": 2, "revelationType": "Meccan",
  "ayahs": [
    {"number": 6222, "numberInSurah": 1, "text": "قُلْ هُوَ ٱللَّهُ أَحَدٌ", "juz": 30, "page": 604, "sajda": false},
    {"number": 6223, "numberInSurah": 2, "text": "ٱللَّهُ ٱلصَّمَدُ", "juz": 30, "page": 604, "sajda": false}
  ],
  "edition": {"identifier": "ar.alafasy", "language": "ar", "englishName": "Alafasy", "format": "audio"}
}}`

func useTestServer(t *testing.T) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/surah":
			fmt.Fprint(w, indexJSON)
		case "/v1/surah/112/ar.alafasy":
			fmt.Fprint(w, chapterJSON)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"code": 404, "status": "NOT FOUND", "data": "not found"}`)
		}
	}))
	t.Cleanup(srv.Close)

	cfg = config.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	logger = zap.NewNop()
}

func run(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	err := fn(cmd, args)
	return buf.String(), err
}

func TestChaptersCommand(t *testing.T) {
	useTestServer(t)

	out, err := run(t, runChapters)
	require.NoError(t, err)
	assert.Contains(t, out, "Al-Faatiha")
	assert.Contains(t, out, "Sincerity")
	assert.Contains(t, out, "Revelation")
}

func TestReadCommand(t *testing.T) {
	useTestServer(t)

	out, err := run(t, runRead, "112")
	require.NoError(t, err)
	assert.Contains(t, out, "112. Al-Ikhlaas (Sincerity)")
	assert.Contains(t, out, "  1  قُلْ هُوَ ٱللَّهُ أَحَدٌ")
	assert.Contains(t, out, "  2  ٱللَّهُ ٱلصَّمَدُ")
}

func TestReadCommandAPIError(t *testing.T) {
	useTestServer(t)

	_, err := run(t, runRead, "5")
	assert.ErrorIs(t, err, api.ErrAPI)
}

func TestParseChapter(t *testing.T) {
	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"114", 114, false},
		{"0", 0, true},
		{"115", 0, true},
		{"al-fatiha", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseChapter(tt.arg)
			if tt.wantErr {
				assert.ErrorIs(t, err, api.ErrInvalidChapter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type countingTransport struct{ requests int }

func (t *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	t.requests++
	return http.DefaultTransport.RoundTrip(r)
}

func TestFetcherUsesSharedHTTPClient(t *testing.T) {
	useTestServer(t)
	cfg.API.Timeout = "7s"

	hc, err := newHTTPClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, hc.Timeout)

	transport := &countingTransport{}
	hc.Transport = transport
	chapters, err := newFetcher(cfg, hc, zap.NewNop()).ListChapters(context.Background())
	require.NoError(t, err)
	assert.Len(t, chapters, 2)
	assert.Equal(t, 1, transport.requests)
}

func TestNewHTTPClientRejectsBadTimeout(t *testing.T) {
	c := config.DefaultConfig()
	c.API.Timeout = "soon"

	_, err := newHTTPClient(c)
	assert.Error(t, err)
}

func useConfigPath(t *testing.T, path string, force bool) {
	t.Helper()
	prevPath, prevForce := configPath, forceInit
	configPath, forceInit = path, force
	t.Cleanup(func() { configPath, forceInit = prevPath, prevForce })
	for _, k := range []string{"QURAN_API_URL", "QURAN_AUDIO_URL", "QURAN_RECITER", "QURAN_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestConfigInitWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	useConfigPath(t, path, false)

	out, err := run(t, runConfigInit)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), loaded)
	assert.NoError(t, loaded.Validate())
}

func TestConfigInitKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ui:\n  theme: dracula\n"), 0o644))
	useConfigPath(t, path, false)

	_, err := run(t, runConfigInit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dracula", loaded.UI.Theme)

	useConfigPath(t, path, true)
	_, err = run(t, runConfigInit)
	require.NoError(t, err)
	loaded, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().UI.Theme, loaded.UI.Theme)
}

type chapterLoader struct{ verses int }

func (l chapterLoader) LoadChapter(ctx context.Context, n int) (*api.LoadedChapter, error) {
	ch := &api.LoadedChapter{Chapter: api.Chapter{Number: n, EnglishName: "Test", EnglishNameTranslation: "Test"}}
	for i := 1; i <= l.verses; i++ {
		ch.Ayahs = append(ch.Ayahs, api.Verse{Number: n*1000 + i, NumberInSurah: i, Text: fmt.Sprintf("verse %d", i)})
	}
	return ch, nil
}

func (l chapterLoader) AudioURL(verseNumber int) string {
	return fmt.Sprintf("https://audio.example/%d.mp3", verseNumber)
}

// instantPlayer returns handles that finish as soon as they start.
type instantPlayer struct {
	mu     sync.Mutex
	opened []string
}

func (p *instantPlayer) Open(ctx context.Context, url string) (audio.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, url)
	return &instantHandle{id: url}, nil
}

type instantHandle struct{ id string }

func (h *instantHandle) ID() string    { return h.id }
func (h *instantHandle) Pause() error  { return nil }
func (h *instantHandle) Resume() error { return nil }
func (h *instantHandle) Paused() bool  { return false }
func (h *instantHandle) Stop() error   { return nil }
func (h *instantHandle) Unload() error { return nil }

func (h *instantHandle) Start(onDone func(audio.Status)) error {
	go onDone(audio.Status{HandleID: h.id, Finished: true})
	return nil
}

func TestReciteRunsToEndOfChapter(t *testing.T) {
	player := &instantPlayer{}
	seq := sequencer.New(chapterLoader{verses: 5}, player, nil)

	var buf bytes.Buffer
	err := recite(context.Background(), seq, 112, 3, &buf, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://audio.example/112003.mp3",
		"https://audio.example/112004.mp3",
		"https://audio.example/112005.mp3",
	}, player.opened)
	out := buf.String()
	assert.Contains(t, out, "  3  verse 3")
	assert.Contains(t, out, "  5  verse 5")
	assert.False(t, strings.Contains(out, "verse 2"))
	assert.Equal(t, sequencer.StateIdle, seq.State(), "sequencer is released on return")
}

func TestReciteRejectsMissingVerse(t *testing.T) {
	seq := sequencer.New(chapterLoader{verses: 3}, &instantPlayer{}, nil)

	err := recite(context.Background(), seq, 1, 9, &bytes.Buffer{}, zap.NewNop())
	assert.ErrorIs(t, err, sequencer.ErrVerseNotLoaded)
}

func TestReciteStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	seq := sequencer.New(chapterLoader{verses: 3}, &instantPlayer{}, nil)

	err := recite(ctx, seq, 1, 1, &bytes.Buffer{}, zap.NewNop())
	assert.NoError(t, err)
	assert.Equal(t, sequencer.StateIdle, seq.State())
}
