package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"telegram-media-courier/internal/config"
	"telegram-media-courier/internal/domain/ports/adapter"
)

var _ adapter.SessionValidatorAdapter = (*InstagramSessionValidator)(nil)

// InstagramSessionValidator checks a credential payload against the /web/__mid/
// endpoint, a lightweight authenticated call that returns a machine id without
// tripping the source's security checks.
type InstagramSessionValidator struct {
	base      string
	userAgent string
	appID     string
	client    *http.Client
}

func NewInstagramSessionValidator(cfg *config.SourceConfig) (*InstagramSessionValidator, error) {
	if cfg == nil {
		return nil, errors.New("source config is nil")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &InstagramSessionValidator{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		appID:     cfg.AppID,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// ValidateCredential returns the upstream verdict. A transport or server
// failure is an error, not a verdict; the caller leaves the session
// unvalidated in that case.
func (v *InstagramSessionValidator) ValidateCredential(ctx context.Context, payload string) (adapter.ValidationResult, error) {
	cookie, err := cookieHeader(payload)
	if err != nil {
		return adapter.ValidationResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.base+"/web/__mid/", nil)
	if err != nil {
		return adapter.ValidationResult{}, err
	}
	req.Header.Set("User-Agent", v.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("X-IG-App-ID", v.appID)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Cookie", cookie)

	resp, err := v.client.Do(req)
	if err != nil {
		return adapter.ValidationResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
		if err != nil {
			return adapter.ValidationResult{}, err
		}
		// A real machine id is a long opaque token; anything shorter means
		// the session was silently downgraded to anonymous.
		machineID := strings.Trim(strings.TrimSpace(string(body)), `"`)
		return adapter.ValidationResult{Valid: len(machineID) > 10}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return adapter.ValidationResult{Valid: false}, nil
	default:
		return adapter.ValidationResult{}, errors.New("session validation failed upstream")
	}
}
