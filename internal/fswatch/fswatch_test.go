package fswatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func startWatcher(t *testing.T, cfg Config) (<-chan []string, string) {
	t.Helper()
	if cfg.Root == "" {
		cfg.Root = t.TempDir()
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 50 * time.Millisecond
	}
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	batches := make(chan []string, 16)
	go w.Run(ctx, func(paths []string) { batches <- paths })
	return batches, w.Root()
}

func waitBatch(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("no batch within 5s")
		return nil
	}
}

func write(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_BatchesAndDedups(t *testing.T) {
	batches, root := startWatcher(t, Config{})

	write(t, filepath.Join(root, "a.css"), "a")
	write(t, filepath.Join(root, "a.css"), "b")
	write(t, filepath.Join(root, "b.png"), "c")

	b := waitBatch(t, batches)
	if strings.Join(b, ",") != "a.css,b.png" {
		t.Fatalf("batch: got %v, want [a.css b.png]", b)
	}
}

func TestWatcher_IncludeExclude(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "node_modules", "x"), 0o755); err != nil {
		t.Fatal(err)
	}
	batches, root := startWatcher(t, Config{
		Root:    root,
		Include: []string{"**/*.css", "**/*.png"},
		Exclude: []string{"node_modules/**", "**/*.tmp.css"},
	})

	write(t, filepath.Join(root, "node_modules", "x", "lib.css"), "x")
	write(t, filepath.Join(root, "notes.txt"), "x")
	write(t, filepath.Join(root, "draft.tmp.css"), "x")
	write(t, filepath.Join(root, "site.css"), "x")

	b := waitBatch(t, batches)
	if strings.Join(b, ",") != "site.css" {
		t.Fatalf("batch: got %v, want [site.css]", b)
	}
}

func TestWatcher_NewDirectories(t *testing.T) {
	batches, root := startWatcher(t, Config{})

	dir := filepath.Join(root, "css")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	write(t, filepath.Join(dir, "style.css"), "x")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case b := <-batches:
			for _, p := range b {
				if p == "css/style.css" {
					return
				}
			}
		case <-deadline:
			t.Fatal("change in new directory not reported")
		}
	}
}

func TestMatch(t *testing.T) {
	w := &Watcher{cfg: Config{
		Include: []string{"**/*.css"},
		Exclude: []string{".git/**"},
	}}
	tests := map[string]bool{
		"style.css":      true,
		"a/b/style.css":  true,
		"a/b/script.js":  false,
		".git/style.css": false,
	}
	for rel, want := range tests {
		if got := w.Match(rel); got != want {
			t.Errorf("Match(%q): got %v, want %v", rel, got, want)
		}
	}
	if !w.dirExcluded(".git") {
		t.Error("dirExcluded(.git): got false")
	}
}
