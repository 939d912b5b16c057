// Package mutation defines the records a document emits while the reload
// engine works on it. Tests and the journal read them to see exactly which
// nodes and rules were touched.
package mutation

import "sync"

// Op is the type of document mutation.
type Op string

const (
	OpInsert     Op = "insert"      // node inserted
	OpRemove     Op = "remove"      // node removed
	OpAttr       Op = "attr"        // attribute or property written
	OpStyle      Op = "style"       // inline or rule declaration written
	OpRuleInsert Op = "rule_insert" // CSSStyleSheet.insertRule
	OpRuleDelete Op = "rule_delete" // CSSStyleSheet.deleteRule
	OpReload     Op = "reload"      // full navigation reload
)

// Record is a single mutation.
type Record struct {
	Op     Op     `json:"op"`
	Target string `json:"target"`          // element or stylesheet key
	Tag    string `json:"tag,omitempty"`   // element tag for node operations
	Name   string `json:"name,omitempty"`  // attribute or style property
	Value  string `json:"value,omitempty"` // new value, rule text, or href
	Index  int    `json:"index,omitempty"` // rule index for rule operations
}

// Log is an append-only, concurrency-safe list of records.
type Log struct {
	mu      sync.Mutex
	records []Record
}

// Add appends a record.
func (l *Log) Add(r Record) {
	l.mu.Lock()
	l.records = append(l.records, r)
	l.mu.Unlock()
}

// Records returns a copy of every record so far.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Filter returns the records with the given op.
func (l *Log) Filter(op Op) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Record
	for _, r := range l.records {
		if r.Op == op {
			out = append(out, r)
		}
	}
	return out
}

// Reset drops every record.
func (l *Log) Reset() {
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()
}
