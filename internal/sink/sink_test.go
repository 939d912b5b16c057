package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/livereload/reloader"
)

var change = reloader.Change{Path: "css/site.css", Options: reloader.Options{LiveCSS: true}}

func TestRouter_FanOut(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	ok := NewCallback(func(_ context.Context, c reloader.Change) (Report, error) {
		calls++
		return Report{Recipients: 2, Outcomes: []reloader.Outcome{reloader.OutcomeStylesheet}}, nil
	})
	failing := NewCallback(func(context.Context, reloader.Change) (Report, error) {
		calls++
		return Report{}, boom
	})
	r := NewRouter(nil, failing, ok)
	r.Add(NewCallback(nil))

	rep, err := r.Send(context.Background(), change)
	if !errors.Is(err, boom) {
		t.Fatalf("err: got %v, want boom", err)
	}
	if calls != 2 {
		t.Fatalf("calls: got %d, want 2 (a failure must not stop the fan-out)", calls)
	}
	if rep.Recipients != 2 || len(rep.Outcomes) != 1 {
		t.Fatalf("report: got %+v", rep)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestStdout_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	if _, err := s.Send(context.Background(), change); err != nil {
		t.Fatalf("Send: %v", err)
	}
	var got struct {
		Type string `json:"type"`
		Data Event  `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	if got.Type != "change" || got.Data.Path != "css/site.css" || !got.Data.LiveCSS {
		t.Fatalf("got %+v", got)
	}
}

func TestWebhook_Retries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: got %q", ct)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	rep, err := wh.Send(context.Background(), change)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if rep.Recipients != 1 || hits.Load() != 3 {
		t.Fatalf("recipients %d hits %d", rep.Recipients, hits.Load())
	}
}

func TestWebhook_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond))
	if _, err := wh.Send(context.Background(), change); err == nil {
		t.Fatal("want error after exhausting retries")
	}
}
