package urlpath

import (
	"net/url"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		in   string
		want Parts
	}{
		{"/a.css", Parts{URL: "/a.css"}},
		{"/a.css?x=1", Parts{URL: "/a.css", Params: "?x=1"}},
		{"/a.css#top", Parts{URL: "/a.css", Hash: "#top"}},
		{"/a.css?x=1#top", Parts{URL: "/a.css", Params: "?x=1", Hash: "#top"}},
		{"/a.css#top?x=1", Parts{URL: "/a.css", Hash: "#top?x=1"}},
		{"", Parts{}},
	}
	for _, tt := range tests {
		if got := Split(tt.in); got != tt.want {
			t.Errorf("Split(%q): got %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestPathFromURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://localhost:3000/css/style.css", "/css/style.css"},
		{"https://example.com/css/style.css?livereload=1#x", "/css/style.css"},
		{"//cdn.example.com/img/logo.png", "/img/logo.png"},
		{"file:///home/me/site/style.css", "/home/me/site/style.css"},
		{"file://localhost/home/me/site/style.css", "/home/me/site/style.css"},
		{"http://example.com/a%20b.css", "/a b.css"},
		{"http://example.com/a%3Bb.css", "/a;b.css"},
		{"css/style.css", "css/style.css"},
		{"http://example.com/bad%zz.css", "/bad%zz.css"},
	}
	for _, tt := range tests {
		if got := PathFromURL(tt.in); got != tt.want {
			t.Errorf("PathFromURL(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPathFromURL_FileRoundTrip(t *testing.T) {
	for _, p := range []string{"/tmp/style.css", "/srv/my site/a b.css", "/x/y;z/w.png", "/déjà/vu.css"} {
		u := (&url.URL{Scheme: "file", Path: p}).String()
		if got := PathFromURL(u); got != p {
			t.Errorf("PathFromURL(%q): got %q, want %q", u, got, p)
		}
	}
}

func TestMatchingSegments(t *testing.T) {
	tests := []struct {
		p1, p2 string
		want   int
	}{
		{"/a/b/c.css", "/a/b/c.css", ExactMatch},
		{"a/b/c.css", "///a/b/c.css", ExactMatch},
		{"/A/B/C.CSS", "/a/b/c.css", ExactMatch},
		{"/a/b/c.css", "c.css", 1},
		{"/a/b/c.css", "b/c.css", 2},
		{"/a/b/c.css", "/x/b/c.css", 2},
		{"/a/b/c.css", "x/y/z.css", 0},
		{"/a/b/c.css", "/a/b/d.css", 0},
	}
	for _, tt := range tests {
		if got := MatchingSegments(tt.p1, tt.p2); got != tt.want {
			t.Errorf("MatchingSegments(%q, %q): got %d, want %d", tt.p1, tt.p2, got, tt.want)
		}
	}
}

func TestMatchingSegments_SelfIsExact(t *testing.T) {
	for _, p := range []string{"a", "/a/b", "style.css", "/deep/er/path/x.png"} {
		if got := MatchingSegments(p, p); got != ExactMatch {
			t.Errorf("MatchingSegments(%q, itself): got %d", p, got)
		}
	}
}

func TestPathsMatch(t *testing.T) {
	if !PathsMatch("style.css", "/css/style.css") {
		t.Error("style.css should match /css/style.css")
	}
	if PathsMatch("style.css", "/css/other.css") {
		t.Error("style.css should not match /css/other.css")
	}
}

func TestPickBestMatch(t *testing.T) {
	id := func(s string) string { return s }

	t.Run("no match", func(t *testing.T) {
		_, ok := PickBestMatch("style.css", []string{"/a.css", "/b/c.css"}, id)
		if ok {
			t.Fatal("expected no match")
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, ok := PickBestMatch[string]("style.css", nil, id)
		if ok {
			t.Fatal("expected no match on empty candidates")
		}
	})

	t.Run("highest score", func(t *testing.T) {
		got, ok := PickBestMatch("/css/style.css", []string{"/other/style.css", "/site/css/style.css", "/x.css"}, id)
		if !ok {
			t.Fatal("expected a match")
		}
		if got.Object != "/site/css/style.css" || got.Score != 2 {
			t.Fatalf("got %+v, want /site/css/style.css with score 2", got)
		}
	})

	t.Run("exact wins", func(t *testing.T) {
		got, _ := PickBestMatch("/css/style.css", []string{"/a/css/style.css", "/css/style.css"}, id)
		if got.Score != ExactMatch {
			t.Fatalf("score: got %d, want %d", got.Score, ExactMatch)
		}
	})

	t.Run("first wins ties", func(t *testing.T) {
		type link struct{ name, href string }
		links := []link{{"first", "/a/style.css"}, {"second", "/b/style.css"}}
		got, ok := PickBestMatch("style.css", links, func(l link) string { return l.href })
		if !ok || got.Object.name != "first" {
			t.Fatalf("got %+v, want first", got)
		}
	})
}
