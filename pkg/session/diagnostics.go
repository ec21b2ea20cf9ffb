package session

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Diagnostic is one compiler warning or error attached to a file.
type Diagnostic struct {
	Line int
	Text string
}

// Diagnostics is the outward diagnostics capability. The session resets it
// before every load and signals availability after a failed load; rendering
// is the presentation layer's business.
type Diagnostics interface {
	// Reset drops all recorded diagnostics for path.
	Reset(path string)
	// Publish records one diagnostic against path ("" when the compiler did
	// not attribute it to a file).
	Publish(path string, d Diagnostic)
	// Available signals that diagnostics for path are ready to render.
	Available(path string)
}

// Collector is the bundled in-memory Diagnostics implementation.
type Collector struct {
	mu      sync.Mutex
	byFile  map[string][]Diagnostic
	OnReady func(path string, ds []Diagnostic)
}

func NewCollector() *Collector {
	return &Collector{byFile: make(map[string][]Diagnostic)}
}

func (c *Collector) Reset(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byFile, path)
}

func (c *Collector) Publish(path string, d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byFile[path] = append(c.byFile[path], d)
}

func (c *Collector) Available(path string) {
	c.mu.Lock()
	ds := make([]Diagnostic, len(c.byFile[path]))
	copy(ds, c.byFile[path])
	ready := c.OnReady
	c.mu.Unlock()

	if ready != nil {
		ready(path, ds)
		return
	}
	for _, d := range ds {
		log.Warnf("%s:%d: %s", path, d.Line, d.Text)
	}
}

// For returns the recorded diagnostics for path.
func (c *Collector) For(path string) []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	ds := make([]Diagnostic, len(c.byFile[path]))
	copy(ds, c.byFile[path])
	return ds
}
