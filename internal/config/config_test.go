package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/livereload/reloader"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("root: ./site\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Listen != "127.0.0.1:35729" {
		t.Fatalf("listen: got %q", cfg.Listen)
	}
	if cfg.Watch.Debounce != 250*time.Millisecond {
		t.Fatalf("debounce: got %v", cfg.Watch.Debounce)
	}
	opts := cfg.Options()
	if !opts.LiveCSS || !opts.LiveImg {
		t.Fatalf("live options: got %+v", opts)
	}
	if opts.StylesheetReloadTimeout != reloader.DefaultStylesheetReloadTimeout {
		t.Fatalf("timeout: got %v", opts.StylesheetReloadTimeout)
	}
	if !*cfg.Browser.Headless {
		t.Fatal("headless should default to true")
	}
}

func TestParse_Overrides(t *testing.T) {
	data := []byte(`
root: /srv/www
listen: ":3001"
watch:
  include: ["**/*.css", "**/*.png"]
  debounce: 100ms
reload:
  live_css: false
  stylesheet_reload_timeout: 5s
  server_url: http://localhost:3001
  override_url: /__proxy
browser:
  enabled: true
  stealth: true
  headless: false
  pages: ["http://localhost:3001/"]
journal:
  path: ":memory:"
  retention: 1h
sinks:
  - type: stdout
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	opts := cfg.Options()
	if opts.LiveCSS || !opts.LiveImg {
		t.Fatalf("live options: got %+v", opts)
	}
	if opts.StylesheetReloadTimeout != 5*time.Second || opts.OverrideURL != "/__proxy" {
		t.Fatalf("options: got %+v", opts)
	}
	if cfg.Watch.Debounce != 100*time.Millisecond || len(cfg.Watch.Include) != 2 {
		t.Fatalf("watch: got %+v", cfg.Watch)
	}
	if *cfg.Browser.Headless || !cfg.Browser.Stealth || len(cfg.Browser.Pages) != 1 {
		t.Fatalf("browser: got %+v", cfg.Browser)
	}
	if cfg.Journal.Path != ":memory:" || cfg.Journal.Retention != time.Hour {
		t.Fatalf("journal: got %+v", cfg.Journal)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("root: [")); err == nil {
		t.Fatal("Parse invalid YAML: want error")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Root = dir
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !filepath.IsAbs(cfg.Root) {
		t.Fatalf("root not absolute: %q", cfg.Root)
	}

	cfg.Root = ""
	if err := cfg.Validate(); !errors.Is(err, ErrNoRoot) {
		t.Fatalf("empty root: got %v, want ErrNoRoot", err)
	}

	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Root = file
	if err := cfg.Validate(); err == nil {
		t.Fatal("file root: want error")
	}

	cfg.Root = dir
	cfg.Sinks = []SinkConfig{{Type: "webhook"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("webhook without url: want error")
	}
	cfg.Sinks = []SinkConfig{{Type: "nats"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown sink: want error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livereload.yaml")
	if err := os.WriteFile(path, []byte("listen: \":9999\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Listen != ":9999" || cfg.Root != "." {
		t.Fatalf("got %+v", cfg)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file: want error")
	}
}
