package parser

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kkdai/youtube/v2"

	"github.com/dgallion1/studydeck/internal/fragment"
)

// ErrNoTranscript is returned when a video has no captions.
var ErrNoTranscript = errors.New("no transcript available")

// transcriptGroupSize is the rune length at which caption lines are cut
// into a new fragment.
const transcriptGroupSize = 1000

// videoClient is the part of youtube.Client the fetcher uses.
type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetTranscriptCtx(ctx context.Context, video *youtube.Video, lang string) (youtube.VideoTranscript, error)
}

// TranscriptFetcher downloads YouTube captions.
type TranscriptFetcher struct {
	lang string
	yt   videoClient
}

// NewTranscriptFetcher creates a fetcher for captions in lang (default "en").
func NewTranscriptFetcher(lang string) *TranscriptFetcher {
	if lang == "" {
		lang = "en"
	}
	return &TranscriptFetcher{
		lang: lang,
		yt:   &youtube.Client{HTTPClient: &http.Client{Timeout: 30 * time.Second}},
	}
}

type caption struct {
	text  string
	start time.Duration
	dur   time.Duration
}

// Fetch downloads the captions of videoURL and groups them into text
// fragments carrying their time span.
func (f *TranscriptFetcher) Fetch(ctx context.Context, videoURL string) (*Result, error) {
	id, err := VideoID(videoURL)
	if err != nil {
		return nil, err
	}

	video, err := f.yt.GetVideoContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch video %s: %w", id, err)
	}

	segments, err := f.yt.GetTranscriptCtx(ctx, video, f.lang)
	if errors.Is(err, youtube.ErrTranscriptDisabled) {
		return nil, ErrNoTranscript
	}
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}

	caps := make([]caption, 0, len(segments))
	for _, seg := range segments {
		caps = append(caps, caption{
			text:  html.UnescapeString(seg.Text),
			start: time.Duration(seg.StartMs) * time.Millisecond,
			dur:   time.Duration(seg.Duration) * time.Millisecond,
		})
	}

	frags := groupCaptions(videoURL, caps)
	if len(frags) == 0 {
		return nil, ErrNoTranscript
	}

	title := strings.TrimSpace(video.Title)
	if title == "" {
		title = "YouTube " + id
	}
	return &Result{Title: title, Pages: 1, Fragments: frags}, nil
}

// groupCaptions joins caption lines with spaces until the next line would
// push the group past transcriptGroupSize. A group ends where the next one
// starts. The last group ends when its last caption does.
func groupCaptions(videoURL string, caps []caption) []fragment.Fragment {
	var frags []fragment.Fragment
	var current strings.Builder
	currentLen := 0
	var start time.Duration

	for _, c := range caps {
		text := strings.Join(strings.Fields(c.text), " ")
		if text == "" {
			continue
		}
		n := utf8.RuneCountInString(text)

		if currentLen > 0 && currentLen+n+1 > transcriptGroupSize {
			frags = append(frags, fragment.Text(current.String(), fragment.VideoSpan{URL: videoURL, Start: start, End: c.start}))
			current.Reset()
			currentLen = 0
		}
		if currentLen == 0 {
			start = c.start
		} else {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(text)
		currentLen += n
	}

	if currentLen > 0 {
		last := caps[len(caps)-1]
		frags = append(frags, fragment.Text(current.String(), fragment.VideoSpan{URL: videoURL, Start: start, End: last.start + last.dur}))
	}
	return frags
}

// VideoID extracts the video ID from watch, youtu.be, embed and shorts URLs.
func VideoID(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse video url: %w", err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	path := strings.Trim(u.Path, "/")

	var id string
	switch host {
	case "youtu.be":
		id, _, _ = strings.Cut(path, "/")
	case "youtube.com", "music.youtube.com":
		switch {
		case path == "watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(path, "embed/"), strings.HasPrefix(path, "shorts/"), strings.HasPrefix(path, "live/"):
			_, rest, _ := strings.Cut(path, "/")
			id, _, _ = strings.Cut(rest, "/")
		}
	default:
		return "", fmt.Errorf("not a youtube url: %q", raw)
	}

	if !validVideoID(id) {
		return "", fmt.Errorf("no video id in %q", raw)
	}
	return id, nil
}

func validVideoID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
