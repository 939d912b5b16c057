package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/hazyhaar/livereload/dom/memdom"
	"github.com/hazyhaar/livereload/reloader"
	"github.com/hazyhaar/livereload/timer"
)

const page = `<html><head><link rel="stylesheet" href="/css/site.css"></head><body></body></html>`

// memSession binds a session to an in-memory document instead of a tab.
func memSession(t *testing.T, ctx context.Context) (*session, *memdom.Document) {
	t.Helper()
	loop := timer.NewLoop(0, nil)
	go loop.Run(ctx)

	doc, err := memdom.ParseString(page, memdom.Options{
		BaseURL:   "http://localhost:3000/",
		Fetch:     memdom.FetchMap(map[string]string{"/css/site.css": "body { color: red; }"}),
		Scheduler: loop,
	})
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	rel, err := reloader.New(reloader.Config{Document: doc, Scheduler: loop})
	if err != nil {
		t.Fatalf("reloader.New: %v", err)
	}
	s := &session{url: "http://localhost:3000/", loop: loop, ctx: ctx, logger: slog.Default()}
	loop.Post(func() { s.rel = rel })
	return s, doc
}

func TestSession_Deliver(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := memSession(t, ctx)

	d, err := s.deliver(ctx, reloader.Change{Path: "css/site.css", Options: reloader.Options{LiveCSS: true}})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !d.bound || d.outcome != reloader.OutcomeStylesheet {
		t.Fatalf("got %+v, want bound stylesheet", d)
	}
}

func TestSession_Unbound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := memSession(t, ctx)
	s.loop.Post(func() { s.rel = nil })

	d, err := s.deliver(ctx, reloader.Change{Path: "index.html"})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if d.bound {
		t.Fatal("unbound session must not report an outcome")
	}
}

func TestSession_Stopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, _ := memSession(t, ctx)
	cancel()
	<-s.loop.Done()

	if _, err := s.deliver(context.Background(), reloader.Change{Path: "a.css"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err: got %v, want ErrStopped", err)
	}
}

func TestSessions_SendMerges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, _ := memSession(t, ctx)
	b, docB := memSession(t, ctx)

	ss := NewSessions(SessionsConfig{})
	ss.sessions = []*session{a, b}

	rep, err := ss.Send(ctx, reloader.Change{Path: "index.html", Options: reloader.Options{LiveCSS: true}})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if rep.Recipients != 2 || len(rep.Outcomes) != 2 || rep.Outcomes[1] != reloader.OutcomePage {
		t.Fatalf("report: got %+v", rep)
	}

	done := make(chan int, 1)
	b.loop.Post(func() { done <- docB.Reloads() })
	if n := <-done; n != 1 {
		t.Fatalf("reloads: got %d, want 1", n)
	}
}

func TestSessions_Chrome(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser integration in short mode")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no chrome binary found")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page)
	})
	mux.HandleFunc("/css/site.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		fmt.Fprint(w, "body { color: red; }")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	ss := NewSessions(SessionsConfig{Browser: Config{Headless: true}, Pages: []string{srv.URL + "/"}})
	errc := make(chan error, 1)
	go func() { errc <- ss.Run(ctx) }()

	change := reloader.Change{Path: "css/site.css", Options: reloader.Options{LiveCSS: true}}
	deadline := time.Now().Add(30 * time.Second)
	for {
		rep, err := ss.Send(ctx, change)
		if err == nil && rep.Recipients == 1 {
			if rep.Outcomes[0] != reloader.OutcomeStylesheet {
				t.Fatalf("outcome: got %v", rep.Outcomes[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never bound (last err %v)", err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
