package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"telegram-media-courier/internal/config"
	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ContentFetchAdapter = (*InstagramFetchAdapter)(nil)

// Link shapes the source serves. Share links (/s/...) are opaque redirects
// and are rejected at resolve time.
var (
	rePost       = regexp.MustCompile(`(?i)instagram\.com/(?:p|reel|reels|tv)/([\w-]+)`)
	reHighlight  = regexp.MustCompile(`(?i)instagram\.com/stories/highlights/([0-9]+)`)
	reStoryOne   = regexp.MustCompile(`(?i)instagram\.com/stories/([\w.]+)/([0-9]+)`)
	reStoriesAll = regexp.MustCompile(`(?i)instagram\.com/stories/([\w.]+)/?$`)
	reShareLink  = regexp.MustCompile(`(?i)instagram\.com/s/[\w-]+`)
)

// InstagramFetchAdapter implements adapter.ContentFetchAdapter against the
// instagram web API. Posts, reels and IGTV resolve without credentials;
// stories and highlights need an authenticated session cookie.
type InstagramFetchAdapter struct {
	base      string
	userAgent string
	appID     string
	client    *http.Client
}

func NewInstagramFetchAdapter(cfg *config.SourceConfig) (*InstagramFetchAdapter, error) {
	if cfg == nil {
		return nil, errors.New("source config is nil")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("source base url empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &InstagramFetchAdapter{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		appID:     cfg.AppID,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// RequiresSession reports whether the link needs authenticated access.
// Stories and highlights are only served to logged-in sessions.
func (a *InstagramFetchAdapter) RequiresSession(sourceURL string) bool {
	return reHighlight.MatchString(sourceURL) ||
		reStoryOne.MatchString(sourceURL) ||
		reStoriesAll.MatchString(sourceURL)
}

// igCandidate is one rendition of a media file.
type igCandidate struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type igMedia struct {
	ID            string `json:"id"`
	MediaType     int    `json:"media_type"` // 1 photo, 2 video
	ImageVersions struct {
		Candidates []igCandidate `json:"candidates"`
	} `json:"image_versions2"`
	VideoVersions []igCandidate `json:"video_versions"`
	CarouselMedia []igMedia     `json:"carousel_media"`
}

type igResponse struct {
	Items []igMedia `json:"items"`
}

// Resolve expands a submitted link into its ordered media list. Carousels
// flatten in source order; a story link with a specific story id narrows the
// user's reel to that one item.
func (a *InstagramFetchAdapter) Resolve(ctx context.Context, sourceURL string, session *model.Session) ([]adapter.RemoteMedia, error) {
	infoURL, label, storyID, err := a.classify(sourceURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return nil, err
	}
	a.decorate(req, session)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var payload igResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode source response: %w", err)
	}

	flat := flatten(payload.Items)
	if storyID != "" {
		flat = filterByStoryID(flat, storyID)
	}
	if len(flat) == 0 {
		return nil, fmt.Errorf("%w: no media behind link", domain.ErrNotFound)
	}

	media := make([]adapter.RemoteMedia, 0, len(flat))
	for i, m := range flat {
		url, ext, ok := bestRendition(m)
		if !ok {
			continue
		}
		media = append(media, adapter.RemoteMedia{
			URL:      url,
			Filename: fmt.Sprintf("%s_%dof%d.%s", label, i+1, len(flat), ext),
		})
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("%w: no downloadable renditions", domain.ErrNotFound)
	}
	return media, nil
}

// Fetch streams one media file. The caller closes the reader.
func (a *InstagramFetchAdapter) Fetch(ctx context.Context, media adapter.RemoteMedia, session *model.Session) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, media.URL, nil)
	if err != nil {
		return nil, 0, err
	}
	a.decorate(req, session)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// classify maps a submitted link onto the info endpoint that lists its media.
// storyID is non-empty only for single-story links.
func (a *InstagramFetchAdapter) classify(sourceURL string) (infoURL, label, storyID string, err error) {
	if m := rePost.FindStringSubmatch(sourceURL); m != nil {
		code := m[1]
		return a.base + "/p/" + code + "/?__a=1&__d=dis", code, "", nil
	}
	if m := reHighlight.FindStringSubmatch(sourceURL); m != nil {
		id := m[1]
		return a.base + "/stories/highlights/" + id + "/?__a=1&__d=dis", "highlight_" + id, "", nil
	}
	if m := reStoryOne.FindStringSubmatch(sourceURL); m != nil {
		username, id := m[1], m[2]
		return a.base + "/stories/" + username + "/?__a=1&__d=dis", username, id, nil
	}
	if m := reStoriesAll.FindStringSubmatch(sourceURL); m != nil {
		username := m[1]
		return a.base + "/stories/" + username + "/?__a=1&__d=dis", username, "", nil
	}
	if reShareLink.MatchString(sourceURL) {
		return "", "", "", fmt.Errorf("%w: short share links are encoded, share the full link instead", domain.ErrInvalidArgument)
	}
	return "", "", "", fmt.Errorf("%w: unrecognized content link", domain.ErrInvalidArgument)
}

// decorate sets the headers the source expects plus the session cookies when
// an authenticated session is attached.
func (a *InstagramFetchAdapter) decorate(req *http.Request, session *model.Session) {
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("X-IG-App-ID", a.appID)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if session != nil {
		if cookie, err := cookieHeader(session.Payload); err == nil && cookie != "" {
			req.Header.Set("Cookie", cookie)
		}
	}
}

// cookieHeader renders a credential payload (a JSON object of cookie
// name/value pairs) as a Cookie header value with a stable order.
func cookieHeader(payload string) (string, error) {
	var cookies map[string]string
	if err := json.Unmarshal([]byte(payload), &cookies); err != nil {
		return "", fmt.Errorf("parse credential payload: %w", err)
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+cookies[name])
	}
	return strings.Join(parts, "; "), nil
}

func checkStatus(code int) error {
	switch {
	case code < 300:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return fmt.Errorf("%w: content removed or does not exist (http %d)", domain.ErrNotFound, code)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w (http %d)", domain.ErrSessionInvalid, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: source throttled the request", domain.ErrRateLimited)
	default:
		return fmt.Errorf("source http %d", code)
	}
}

func flatten(items []igMedia) []igMedia {
	out := make([]igMedia, 0, len(items))
	for _, it := range items {
		if len(it.CarouselMedia) > 0 {
			out = append(out, it.CarouselMedia...)
			continue
		}
		out = append(out, it)
	}
	return out
}

// filterByStoryID narrows a user's story reel to the single requested story.
// Story media ids are "<pk>_<userid>"; the link carries only the pk.
func filterByStoryID(items []igMedia, storyID string) []igMedia {
	out := make([]igMedia, 0, 1)
	for _, it := range items {
		if it.ID == storyID || strings.HasPrefix(it.ID, storyID+"_") {
			out = append(out, it)
		}
	}
	return out
}

func bestRendition(m igMedia) (url, ext string, ok bool) {
	if m.MediaType == 2 && len(m.VideoVersions) > 0 {
		return m.VideoVersions[0].URL, "mp4", true
	}
	if len(m.ImageVersions.Candidates) > 0 {
		return m.ImageVersions.Candidates[0].URL, "jpg", true
	}
	return "", "", false
}
