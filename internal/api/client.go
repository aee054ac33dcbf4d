package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	DefaultBaseURL      = "https://api.alquran.cloud"
	DefaultAudioBaseURL = "https://cdn.islamic.network/quran/audio/128"
	DefaultReciter      = "ar.alafasy"
	DefaultTimeout      = 15 * time.Second
)

var (
	// ErrNetwork marks failures reaching the API at all.
	ErrNetwork = errors.New("network failure")
	// ErrAPI marks well-formed responses carrying a non-success code.
	ErrAPI = errors.New("api failure")
	// ErrDecode marks bodies that could not be parsed.
	ErrDecode = errors.New("decode failure")
	// ErrInvalidChapter is returned for ordinals outside [1, ChapterCount].
	ErrInvalidChapter = errors.New("invalid chapter number")
)

// APIError carries the code and status of a rejected request.
type APIError struct {
	Code   int
	Status string
	URL    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned code %d (%s) for %s", e.Code, e.Status, e.URL)
}

func (e *APIError) Unwrap() error { return ErrAPI }

type Client struct {
	httpClient   *http.Client
	baseURL      string
	audioBaseURL string
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithAudioBaseURL(u string) Option {
	return func(c *Client) { c.audioBaseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient makes the client issue requests through hc, which is used
// as is and may be shared. A nil hc keeps the default.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		baseURL:      DefaultBaseURL,
		audioBaseURL: DefaultAudioBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the wrapper every alquran.cloud response uses.
type envelope[T any] struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   T      `json:"data"`
}

// ListChapters fetches the full chapter index.
func (c *Client) ListChapters(ctx context.Context) ([]Chapter, error) {
	url := fmt.Sprintf("%s/v1/surah", c.baseURL)

	var env envelope[[]Chapter]
	if err := c.get(ctx, url, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetChapter fetches chapter n with the verse text and audio of reciter.
// Verses are returned ordered by NumberInSurah.
func (c *Client) GetChapter(ctx context.Context, n int, reciter string) (*LoadedChapter, error) {
	if !ValidChapter(n) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChapter, n)
	}

	url := fmt.Sprintf("%s/v1/surah/%d/%s", c.baseURL, n, reciter)

	var env envelope[LoadedChapter]
	if err := c.get(ctx, url, &env); err != nil {
		return nil, err
	}

	ch := env.Data
	sort.SliceStable(ch.Ayahs, func(i, j int) bool {
		return ch.Ayahs[i].NumberInSurah < ch.Ayahs[j].NumberInSurah
	})
	for i := range ch.Ayahs {
		ch.Ayahs[i].Text = PlainText(ch.Ayahs[i].Text)
	}
	return &ch, nil
}

// AudioURL addresses the recitation of one verse by its global number.
func (c *Client) AudioURL(reciter string, verseNumber int) string {
	return fmt.Sprintf("%s/%s/%d.mp3", c.audioBaseURL, reciter, verseNumber)
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrNetwork, url, err)
	}

	// Error responses put a message string in data, so check the code first.
	var head envelope[json.RawMessage]
	if err := json.Unmarshal(body, &head); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode), URL: url}
		}
		return fmt.Errorf("%w: %s: %v", ErrDecode, url, err)
	}
	if resp.StatusCode != http.StatusOK || head.Code != http.StatusOK {
		code := head.Code
		if code == 0 || code == http.StatusOK {
			code = resp.StatusCode
		}
		return &APIError{Code: code, Status: head.Status, URL: url}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, url, err)
	}
	return nil
}
