package reloader

import (
	"strconv"

	"github.com/hazyhaar/livereload/dom"
)

// registry tracks in-flight work out of band, keyed by resource identity
// rather than by flags on host objects.
type registry struct {
	// pending holds the keys of elements scheduled for removal.
	pending map[string]struct{}
	// stamps maps an @import slot to the sequence number of its latest
	// reattachment.
	stamps map[string]uint64
	seq    uint64
}

func newRegistry() *registry {
	return &registry{
		pending: make(map[string]struct{}),
		stamps:  make(map[string]uint64),
	}
}

// markPending marks key as pending removal. It returns false when key was
// already marked.
func (g *registry) markPending(key string) bool {
	if _, ok := g.pending[key]; ok {
		return false
	}
	g.pending[key] = struct{}{}
	return true
}

func (g *registry) isPending(key string) bool {
	_, ok := g.pending[key]
	return ok
}

// release forgets key once its element has left the document.
func (g *registry) release(key string) {
	delete(g.pending, key)
}

// stamp starts a new reattachment of slot and returns its sequence number.
// Sequence numbers never repeat within a registry.
func (g *registry) stamp(slot string) uint64 {
	g.seq++
	g.stamps[slot] = g.seq
	return g.seq
}

// current reports whether seq is still the latest stamp for slot.
func (g *registry) current(slot string, seq uint64) bool {
	return g.stamps[slot] == seq
}

// settle drops the stamp for slot if seq still owns it.
func (g *registry) settle(slot string, seq uint64) {
	if g.stamps[slot] == seq {
		delete(g.stamps, slot)
	}
}

// slotKey identifies the rule at index in sheet.
func slotKey(sheet dom.StyleSheet, index int) string {
	return sheet.Key() + "#" + strconv.Itoa(index)
}
