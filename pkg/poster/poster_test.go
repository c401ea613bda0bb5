package poster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devpulse-hq/devpulse-bot/internal/domain"
	"github.com/devpulse-hq/devpulse-bot/pkg/httpclient"
)

func testPoster(baseURL string, retries int) *Poster {
	return NewWithClient(httpclient.NewRestyHTTPClient(5*time.Second), Options{
		BaseURL: baseURL,
		Retries: retries,
		Backoff: time.Millisecond,
	}, nil)
}

func draft(text string) domain.PostDraft {
	return domain.PostDraft{Text: text, Method: domain.GenerationAI, LengthOK: true}
}

func TestPublishSuccess(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tweets" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"987","text":"hello"}}`)
	}))
	defer srv.Close()

	p := testPoster(srv.URL, 3)
	result := p.Publish(context.Background(), draft("hello"), false)

	if result.Status != domain.StatusPosted || result.PostID != "987" {
		t.Fatalf("unexpected result %+v", result)
	}
	if gotBody["text"] != "hello" {
		t.Fatalf("request body = %v", gotBody)
	}
}

func TestPublishDryRunMakesNoRequest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p := testPoster(srv.URL, 3)
	result := p.Publish(context.Background(), draft("hello"), true)

	if result.Status != domain.StatusDryRun {
		t.Fatalf("expected dry_run status, got %s", result.Status)
	}
	if calls != 0 {
		t.Fatalf("dry run must not hit the network, got %d calls", calls)
	}
}

func TestPublishRetriesRetriableErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := testPoster(srv.URL, 2)
	result := p.Publish(context.Background(), draft("hello"), false)

	if result.Status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %s", result.Status)
	}
	if attempts != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", attempts)
	}
}

func TestPublishRecoversOnLaterAttempt(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"1","text":"hello"}}`)
	}))
	defer srv.Close()

	p := testPoster(srv.URL, 2)
	result := p.Publish(context.Background(), draft("hello"), false)

	if result.Status != domain.StatusPosted {
		t.Fatalf("expected recovery, got %+v", result)
	}
	if attempts != 2 {
		t.Fatalf("expected success on second attempt, got %d", attempts)
	}
}

func TestPublishDoesNotRetryNonRetriableErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	p := testPoster(srv.URL, 3)
	result := p.Publish(context.Background(), draft("hello"), false)

	if result.Status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %s", result.Status)
	}
	if attempts != 1 {
		t.Fatalf("4xx must fail on the first attempt, got %d", attempts)
	}
}

func TestVerifyCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/me" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":{"id":"42","username":"devpulse","name":"DevPulse"}}`)
	}))
	defer srv.Close()

	p := testPoster(srv.URL, 0)
	user, err := p.VerifyCredentials(context.Background())
	if err != nil {
		t.Fatalf("VerifyCredentials: %v", err)
	}
	if user.ID != "42" || user.Username != "devpulse" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestVerifyCredentialsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := testPoster(srv.URL, 0)
	if _, err := p.VerifyCredentials(context.Background()); err == nil {
		t.Fatalf("expected error on 401")
	}
}

func TestNewRequiresFullCredentials(t *testing.T) {
	if _, err := New(Credentials{APIKey: "only-one"}, Options{}, nil); err == nil {
		t.Fatalf("expected error for partial credentials")
	}
}

func TestAPIErrorRetriable(t *testing.T) {
	cases := []struct {
		status    int
		retriable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusForbidden, false},
		{http.StatusBadRequest, false},
	}
	for _, tc := range cases {
		err := &APIError{StatusCode: tc.status}
		if err.Retriable() != tc.retriable {
			t.Fatalf("status %d retriable = %v, want %v", tc.status, err.Retriable(), tc.retriable)
		}
	}
}
