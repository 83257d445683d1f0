package mixer

import "sync/atomic"

// configHandoff publishes MixerConfig via a single atomic pointer swap: the
// Control Surface is the only writer (invariant I6), the mix loop takes one
// handle per iteration (spec §4.5 step 2).
type configHandoff struct {
	ptr atomic.Pointer[MixerConfig]
}

func newConfigHandoff(initial MixerConfig) *configHandoff {
	h := &configHandoff{}
	h.store(initial)
	return h
}

func (h *configHandoff) store(cfg MixerConfig) { h.ptr.Store(&cfg) }

func (h *configHandoff) load() MixerConfig { return *h.ptr.Load() }

// vuHandoff publishes VU tables: written only by the mix loop, read
// (snapshot) by the status surface (spec §5: "VU tables are written only by
// the mix loop and snapshot-read by the UI").
type vuHandoff struct {
	ptr atomic.Pointer[VUTable]
}

// VUTable is every channel's and the master's current levels.
type VUTable struct {
	Channels map[uint32]Levels
	Master   Levels
}

func newVUHandoff() *vuHandoff {
	h := &vuHandoff{}
	h.ptr.Store(&VUTable{Channels: map[uint32]Levels{}})
	return h
}

func (h *vuHandoff) publish(t VUTable) { h.ptr.Store(&t) }

func (h *vuHandoff) snapshot() VUTable { return *h.ptr.Load() }
