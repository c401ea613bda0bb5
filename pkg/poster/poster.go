package poster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/devpulse-hq/devpulse-bot/internal/domain"
	"github.com/devpulse-hq/devpulse-bot/internal/logger"
	"github.com/devpulse-hq/devpulse-bot/pkg/httpclient"
	"github.com/dghubble/oauth1"
	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.x.com/2"

// Credentials holds the OAuth 1.0a user-context keys for the X API.
type Credentials struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
}

// Options tunes posting behavior.
type Options struct {
	BaseURL string
	Retries int
	Backoff time.Duration
	Timeout time.Duration
}

// Poster publishes drafts to X (API v2) with bounded retry and a dry-run
// bypass that makes no network calls.
type Poster struct {
	client  *resty.Client
	baseURL string
	retries int
	backoff time.Duration
	log     logger.Logger
}

// New builds a poster whose HTTP transport signs every request with the
// given OAuth 1.0a credentials.
func New(creds Credentials, opts Options, log logger.Logger) (*Poster, error) {
	if creds.APIKey == "" || creds.APISecret == "" || creds.AccessToken == "" || creds.AccessTokenSecret == "" {
		return nil, errors.New("x api credentials are not fully configured")
	}

	oauthCfg := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	signing := oauthCfg.Client(oauth1.NoContext, token)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return NewWithClient(httpclient.NewRestyWithTransport(signing, timeout), opts, log), nil
}

// NewWithClient builds a poster over a prepared client; tests use this to
// point at an httptest server without OAuth signing.
func NewWithClient(client *resty.Client, opts Options, log logger.Logger) *Poster {
	if log == nil {
		log = logger.NopLogger{}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	return &Poster{
		client:  client,
		baseURL: baseURL,
		retries: opts.Retries,
		backoff: backoff,
		log:     log,
	}
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// User is the authenticated account, as reported by the platform.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type meResponse struct {
	Data User `json:"data"`
}

// Publish submits the draft. Dry-run returns immediately with status
// dry_run and no network call. Retriable API errors are retried up to the
// configured bound with exponential backoff; non-retriable errors fail on
// the first attempt. The returned result is always terminal.
func (p *Poster) Publish(ctx context.Context, draft domain.PostDraft, dryRun bool) domain.PublishResult {
	if dryRun {
		p.log.InfoObj("dry run, post not submitted", "dry_run_post", map[string]any{
			"chars": len([]rune(draft.Text)),
			"text":  draft.Text,
		})
		return domain.PublishResult{Status: domain.StatusDryRun, Timestamp: time.Now().UTC()}
	}

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			if err := p.wait(ctx, attempt); err != nil {
				lastErr = err
				break
			}
		}

		id, err := p.createPost(ctx, draft.Text)
		if err == nil {
			p.log.InfoObj("post published", "publish_result", map[string]any{
				"post_id": id,
				"url":     fmt.Sprintf("https://x.com/i/web/status/%s", id),
			})
			return domain.PublishResult{
				Status:    domain.StatusPosted,
				PostID:    id,
				Timestamp: time.Now().UTC(),
			}
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retriable() {
			p.log.ErrorObj("post rejected, not retrying", "publish_error", map[string]any{
				"status": apiErr.StatusCode,
				"error":  apiErr.Detail,
			})
			break
		}
		p.log.WarnObj("post attempt failed", "publish_error", map[string]any{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	return domain.PublishResult{
		Status:    domain.StatusFailed,
		Error:     lastErr.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// VerifyCredentials fetches the authenticated user, proving the configured
// keys are valid.
func (p *Poster) VerifyCredentials(ctx context.Context) (User, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		Get(p.baseURL + "/users/me")
	if err != nil {
		return User{}, fmt.Errorf("verify credentials: %w", err)
	}
	if resp.IsError() {
		return User{}, &APIError{StatusCode: resp.StatusCode(), Detail: bodySnippet(resp.Body())}
	}

	var decoded meResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return User{}, fmt.Errorf("decode user response: %w", err)
	}
	if decoded.Data.ID == "" {
		return User{}, errors.New("platform returned no user data")
	}
	return decoded.Data, nil
}

func (p *Poster) createPost(ctx context.Context, text string) (string, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"text": text}).
		Post(p.baseURL + "/tweets")
	if err != nil {
		return "", fmt.Errorf("post request: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated && resp.IsError() {
		return "", &APIError{StatusCode: resp.StatusCode(), Detail: bodySnippet(resp.Body())}
	}

	var decoded tweetResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return "", fmt.Errorf("decode post response: %w", err)
	}
	if decoded.Data.ID == "" {
		return "", errors.New("platform returned no post id")
	}
	return decoded.Data.ID, nil
}

// wait sleeps the exponential backoff for the given attempt, aborting when
// the context is cancelled.
func (p *Poster) wait(ctx context.Context, attempt int) error {
	delay := p.backoff
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		s = s[:512]
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
