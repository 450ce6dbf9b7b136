package batch

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator hands out batch IDs unique to this process run.
type Generator struct {
	runId   string
	counter uint64
}

// New returns a Generator tagged with a random run ID.
func New() *Generator {
	return NewWithRunId(strings.SplitN(uuid.NewString(), "-", 2)[0])
}

// NewWithRunId returns a Generator with a fixed run ID.
func NewWithRunId(runId string) *Generator {
	return &Generator{runId: runId}
}

// RunId returns the run ID embedded in every batch ID.
func (g *Generator) RunId() string {
	return g.runId
}

// Next returns the next batch ID for source.
func (g *Generator) Next(source string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-%s-batch-%d", source, g.runId, n)
}
