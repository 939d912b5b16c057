// Package cachebust rewrites resource URLs so the browser bypasses its HTTP
// cache for exactly one resource. The marker is a query parameter named
// "livereload"; an existing marker is overwritten, never duplicated.
package cachebust

import (
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/livereload/urlpath"
)

// Param is the query parameter that carries the cache-busting marker.
const Param = "livereload"

var markerRe = regexp.MustCompile(`(\?|&)` + Param + `=(\d+)`)

// Token returns a fresh marker ("livereload=<unix millis>") for t.
func Token(t time.Time) string {
	return Param + "=" + strconv.FormatInt(t.UnixMilli(), 10)
}

// Override routes generated URLs through a local proxy. It is active only
// when OverrideURL is set.
type Override struct {
	ServerURL   string
	OverrideURL string
}

// Generator builds cache-busted URLs.
type Generator struct {
	Override Override
	// Now supplies the clock for fresh tokens. Default: time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Token returns a fresh marker from the generator's clock.
func (g *Generator) Token() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return Token(now())
}

// URL returns rawURL with the marker token merged into its query string. An
// empty token is replaced by a fresh one. For a fixed token the result is
// stable: URL(URL(u, tok), tok) == URL(u, tok).
func (g *Generator) URL(rawURL, token string) string {
	if token == "" {
		token = g.Token()
	}

	parts := urlpath.Split(rawURL)
	base := parts.URL
	proxied := false

	if o := g.Override; o.OverrideURL != "" && !strings.Contains(base, o.ServerURL) {
		base = o.ServerURL + o.OverrideURL + "?url=" + encodeURIComponent(parts.URL)
		proxied = true
		if g.Logger != nil {
			g.Logger.Debug("cachebust: overriding source URL", "from", parts.URL, "to", base)
		}
	}

	params, found := replaceFirst(parts.Params, token)
	if !found {
		if parts.Params == "" {
			params = "?" + token
		} else {
			params = parts.Params + "&" + token
		}
	}
	// The proxy URL already carries a query string.
	if proxied && strings.HasPrefix(params, "?") {
		params = "&" + params[1:]
	}

	return base + params + parts.Hash
}

// replaceFirst swaps the first "livereload=<digits>" parameter for token,
// keeping its separator.
func replaceFirst(params, token string) (string, bool) {
	loc := markerRe.FindStringSubmatchIndex(params)
	if loc == nil {
		return params, false
	}
	sep := params[loc[2]:loc[3]]
	return params[:loc[0]] + sep + token + params[loc[1]:], true
}

// encodeURIComponent escapes s for use as a query value. Spaces become %20
// rather than '+'.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
