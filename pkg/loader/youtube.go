package loader

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/tuber/internal/models"
	"golang.org/x/time/rate"
)

var (
	ErrNoVideoID    = errors.New("no video id found in url")
	ErrNoTranscript = errors.New("video has no transcript")
)

type LoaderConfig struct {
	Language  string  // preferred caption language code
	RateLimit float64 // requests per second
	Timeout   time.Duration
	BaseURL   string // watch page host, overridable for tests
}

type Loader struct {
	config  LoaderConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config LoaderConfig) *Loader {
	if config.Language == "" {
		config.Language = "en"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://www.youtube.com"
	}

	return &Loader{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func New() *Loader {
	return NewWithConfig(LoaderConfig{})
}

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:v=|/embed/|/shorts/|/live/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
}

// ExtractVideoID pulls the 11-character video id out of the common
// watch, share, embed and shorts URL forms.
func ExtractVideoID(rawURL string) (string, error) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1], nil
		}
	}
	return "", ErrNoVideoID
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

var captionTracksRe = regexp.MustCompile(`"captionTracks":(\[.*?\])`)

// Load fetches the watch page for the video, locates its caption track
// and returns the transcript as a single document.
func (l *Loader) Load(ctx context.Context, rawURL string) (models.Document, error) {
	var doc models.Document

	videoID, err := ExtractVideoID(rawURL)
	if err != nil {
		return doc, err
	}

	body, err := l.fetch(ctx, l.config.BaseURL+"/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		return doc, err
	}

	title := extractTitle(body)

	track, err := l.pickCaptionTrack(body)
	if err != nil {
		return doc, err
	}

	transcript, err := l.fetchTranscript(ctx, track.BaseURL)
	if err != nil {
		return doc, err
	}
	if strings.TrimSpace(transcript) == "" {
		return doc, ErrNoTranscript
	}

	return models.Document{
		URL:     rawURL,
		Title:   title,
		Content: transcript,
		Metadata: map[string]interface{}{
			"videoId":  videoID,
			"language": track.LanguageCode,
			"source":   "youtube",
		},
	}, nil
}

func (l *Loader) fetch(ctx context.Context, urlStr string) ([]byte, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	return io.ReadAll(resp.Body)
}

func extractTitle(page []byte) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page)))
	if err != nil {
		return ""
	}

	if title, ok := doc.Find(`meta[name="title"]`).Attr("content"); ok && title != "" {
		return title
	}

	title := doc.Find("title").Text()
	return strings.TrimSpace(strings.TrimSuffix(title, "- YouTube"))
}

func (l *Loader) pickCaptionTrack(page []byte) (captionTrack, error) {
	m := captionTracksRe.FindSubmatch(page)
	if m == nil {
		return captionTrack{}, ErrNoTranscript
	}

	var tracks []captionTrack
	if err := json.Unmarshal(m[1], &tracks); err != nil {
		return captionTrack{}, fmt.Errorf("failed to parse caption tracks: %v", err)
	}
	if len(tracks) == 0 {
		return captionTrack{}, ErrNoTranscript
	}

	// Prefer the configured language; among those, prefer manually
	// authored tracks over auto-generated ("asr") ones.
	best := tracks[0]
	for _, t := range tracks {
		if t.LanguageCode != l.config.Language {
			continue
		}
		if best.LanguageCode != l.config.Language || (best.Kind == "asr" && t.Kind != "asr") {
			best = t
		}
	}

	return best, nil
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Value string `xml:",chardata"`
	} `xml:"text"`
}

func (l *Loader) fetchTranscript(ctx context.Context, trackURL string) (string, error) {
	// Track URLs may be host relative; resolve against the watch host.
	if strings.HasPrefix(trackURL, "/") {
		trackURL = l.config.BaseURL + trackURL
	}

	body, err := l.fetch(ctx, trackURL)
	if err != nil {
		return "", err
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("failed to parse transcript: %v", err)
	}

	parts := make([]string, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Value))
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
