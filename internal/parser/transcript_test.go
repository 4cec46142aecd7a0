package parser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/dgallion1/studydeck/internal/fragment"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ", false},
		{"https://m.youtube.com/watch?v=abc_DEF-123", "abc_DEF-123", false},
		{"https://youtu.be/dQw4w9WgXcQ?si=xyz", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://vimeo.com/12345", "", true},
		{"https://www.youtube.com/watch", "", true},
		{"https://www.youtube.com/watch?v=bad%20id", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := VideoID(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got id %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

type fakeVideoClient struct {
	title      string
	segments   youtube.VideoTranscript
	videoErr   error
	transcrErr error

	gotID   string
	gotLang string
}

func (f *fakeVideoClient) GetVideoContext(ctx context.Context, id string) (*youtube.Video, error) {
	f.gotID = id
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	return &youtube.Video{ID: id, Title: f.title}, nil
}

func (f *fakeVideoClient) GetTranscriptCtx(ctx context.Context, video *youtube.Video, lang string) (youtube.VideoTranscript, error) {
	f.gotLang = lang
	if f.transcrErr != nil {
		return nil, f.transcrErr
	}
	return f.segments, nil
}

func TestTranscriptFetcher_Fetch(t *testing.T) {
	yt := &fakeVideoClient{
		title: "Cell Biology 101",
		segments: youtube.VideoTranscript{
			{Text: "Hello &amp; welcome", StartMs: 500, Duration: 2000},
			{Text: "to the   lecture", StartMs: 2500, Duration: 1500},
		},
	}
	f := NewTranscriptFetcher("")
	f.yt = yt

	videoURL := "https://youtu.be/dQw4w9WgXcQ"
	res, err := f.Fetch(context.Background(), videoURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if yt.gotID != "dQw4w9WgXcQ" || yt.gotLang != "en" {
		t.Errorf("unexpected request id=%q lang=%q", yt.gotID, yt.gotLang)
	}
	if res.Title != "Cell Biology 101" {
		t.Errorf("unexpected title %q", res.Title)
	}
	if len(res.Fragments) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(res.Fragments))
	}

	frag := res.Fragments[0]
	if frag.Content != "Hello & welcome to the lecture" {
		t.Errorf("unexpected content %q", frag.Content)
	}
	span, ok := frag.Meta.(fragment.VideoSpan)
	if !ok {
		t.Fatalf("expected VideoSpan, got %#v", frag.Meta)
	}
	if span.URL != videoURL || span.Start != 500*time.Millisecond || span.End != 4*time.Second {
		t.Errorf("unexpected span %+v", span)
	}
}

func TestTranscriptFetcher_UntitledVideo(t *testing.T) {
	f := NewTranscriptFetcher("de")
	f.yt = &fakeVideoClient{segments: youtube.VideoTranscript{{Text: "Guten Tag", StartMs: 0, Duration: 1000}}}

	res, err := f.Fetch(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Title != "YouTube dQw4w9WgXcQ" {
		t.Errorf("unexpected title %q", res.Title)
	}
	if got := f.yt.(*fakeVideoClient).gotLang; got != "de" {
		t.Errorf("expected lang de, got %q", got)
	}
}

func TestTranscriptFetcher_NoCaptions(t *testing.T) {
	tests := []struct {
		name string
		yt   *fakeVideoClient
	}{
		{"disabled", &fakeVideoClient{transcrErr: youtube.ErrTranscriptDisabled}},
		{"empty", &fakeVideoClient{}},
		{"blank lines", &fakeVideoClient{segments: youtube.VideoTranscript{{Text: "  "}, {Text: ""}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewTranscriptFetcher("en")
			f.yt = tt.yt
			_, err := f.Fetch(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
			if !errors.Is(err, ErrNoTranscript) {
				t.Fatalf("expected ErrNoTranscript, got %v", err)
			}
		})
	}
}

func TestTranscriptFetcher_Errors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		yt   *fakeVideoClient
	}{
		{"not youtube", "https://vimeo.com/1", &fakeVideoClient{}},
		{"video lookup", "https://youtu.be/dQw4w9WgXcQ", &fakeVideoClient{videoErr: errors.New("video unavailable")}},
		{"transcript", "https://youtu.be/dQw4w9WgXcQ", &fakeVideoClient{transcrErr: errors.New("status 502")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewTranscriptFetcher("en")
			f.yt = tt.yt
			_, err := f.Fetch(context.Background(), tt.url)
			if err == nil || errors.Is(err, ErrNoTranscript) {
				t.Fatalf("expected generic error, got %v", err)
			}
		})
	}
}

func TestGroupCaptions(t *testing.T) {
	long := strings.Repeat("a", 600)
	caps := []caption{
		{text: long, start: 0, dur: 5 * time.Second},
		{text: long, start: 5 * time.Second, dur: 5 * time.Second},
		{text: "  ", start: 10 * time.Second, dur: time.Second},
		{text: "short tail", start: 11 * time.Second, dur: 2 * time.Second},
	}
	frags := groupCaptions("u", caps)
	if len(frags) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(frags))
	}

	first := frags[0].Meta.(fragment.VideoSpan)
	if first.Start != 0 || first.End != 5*time.Second {
		t.Errorf("unexpected first span %+v", first)
	}
	second := frags[1].Meta.(fragment.VideoSpan)
	if second.Start != 5*time.Second || second.End != 13*time.Second {
		t.Errorf("unexpected second span %+v", second)
	}
	if frags[1].Content != long+" short tail" {
		t.Errorf("unexpected second content length %d", len(frags[1].Content))
	}
}
