package notify

import (
	"context"
	"errors"
	"testing"
)

type stubNotifier struct {
	id    string
	typ   string
	err   error
	calls int
}

func (s *stubNotifier) ID() string   { return s.id }
func (s *stubNotifier) Type() string { return s.typ }
func (s *stubNotifier) Send(context.Context, Event) error {
	s.calls++
	return s.err
}

func TestFanoutSendAggregatesErrors(t *testing.T) {
	fanout := NewFanout([]Notifier{
		&stubNotifier{id: "ok", typ: "http"},
		&stubNotifier{id: "bad", typ: "http", err: errors.New("failed")},
	})

	count, err := fanout.Send(context.Background(), Event{})
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
}

func TestFanoutSendWithNoNotifiers(t *testing.T) {
	fanout := NewFanout(nil)
	count, err := fanout.Send(context.Background(), Event{})
	if count != 0 || err != nil {
		t.Fatalf("expected no-op send, got count=%d err=%v", count, err)
	}
	if fanout.Size() != 0 {
		t.Fatalf("expected empty fanout, size=%d", fanout.Size())
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	sinks, err := BuildAll(context.Background(), reg, []NotifierConfig{
		{ID: "hook", Type: TypeHTTP, HTTP: &HTTPNotifierConfig{URL: "https://example.com"}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(sinks) != 1 {
		t.Fatalf("expected 1 notifier, got %d", len(sinks))
	}
}

func TestBuildAllRejectsUnknownType(t *testing.T) {
	reg := DefaultRegistry()
	if _, err := BuildAll(context.Background(), reg, []NotifierConfig{
		{ID: "x", Type: "carrier-pigeon"},
	}, nil); err == nil {
		t.Fatalf("expected error for unknown notifier type")
	}
}
