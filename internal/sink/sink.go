// Package sink defines the output backends a change is delivered to.
package sink

import (
	"context"

	"github.com/hazyhaar/livereload/reloader"
)

// Sink delivers changes to one backend (websocket clients, browser
// sessions, stdout, webhook, in-process callback).
type Sink interface {
	Send(ctx context.Context, change reloader.Change) (Report, error)
	Close() error
}

// Report tells what a delivery reached.
type Report struct {
	// Recipients is the number of clients or documents the change reached.
	Recipients int
	// Outcomes lists how each in-process document handled the change.
	Outcomes []reloader.Outcome
}

// merge adds o into r.
func (r *Report) merge(o Report) {
	r.Recipients += o.Recipients
	r.Outcomes = append(r.Outcomes, o.Outcomes...)
}

// Event is the JSON form of a change, shared by the stdout and webhook sinks.
type Event struct {
	Path        string `json:"path"`
	LiveCSS     bool   `json:"liveCSS"`
	LiveImg     bool   `json:"liveImg"`
	ServerURL   string `json:"serverURL,omitempty"`
	OverrideURL string `json:"overrideURL,omitempty"`
}

// NewEvent converts a change.
func NewEvent(c reloader.Change) Event {
	return Event{
		Path:        c.Path,
		LiveCSS:     c.Options.LiveCSS,
		LiveImg:     c.Options.LiveImg,
		ServerURL:   c.Options.ServerURL,
		OverrideURL: c.Options.OverrideURL,
	}
}
