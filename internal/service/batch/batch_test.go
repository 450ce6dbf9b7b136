package batch

import (
	"strconv"
	"strings"
	"sync"
	"testing"
)

func TestGenerator_Next(t *testing.T) {
	gen := NewWithRunId("run1")

	b1 := gen.Next("trades")
	if b1 != "trades-run1-batch-1" {
		t.Errorf("expected 'trades-run1-batch-1', got %s", b1)
	}

	b2 := gen.Next("trades")
	if b2 != "trades-run1-batch-2" {
		t.Errorf("expected 'trades-run1-batch-2', got %s", b2)
	}

	// Counter is shared across sources
	b3 := gen.Next("kafka")
	if b3 != "kafka-run1-batch-3" {
		t.Errorf("expected 'kafka-run1-batch-3', got %s", b3)
	}
}

func TestGenerator_RandomRunId(t *testing.T) {
	g1, g2 := New(), New()

	if g1.RunId() == "" {
		t.Fatal("expected non-empty run ID")
	}
	if len(g1.RunId()) != 8 {
		t.Errorf("expected 8-char run ID, got %q", g1.RunId())
	}
	if g1.RunId() == g2.RunId() {
		t.Error("expected distinct run IDs")
	}
	if !strings.HasPrefix(g1.Next("api"), "api-"+g1.RunId()+"-batch-") {
		t.Error("expected batch ID to embed the run ID")
	}
}

func TestGenerator_ThreadSafety(t *testing.T) {
	gen := New()
	numGoroutines := 100
	resultsPerGoroutine := 10

	var wg sync.WaitGroup
	results := make(chan string, numGoroutines*resultsPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < resultsPerGoroutine; j++ {
				results <- gen.Next("concurrent")
			}
		}()
	}

	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for id := range results {
		if seen[id] {
			t.Errorf("duplicate batch ID generated: %s", id)
		}
		seen[id] = true
	}

	expectedCount := numGoroutines * resultsPerGoroutine
	if len(seen) != expectedCount {
		t.Errorf("expected %d unique batch IDs, got %d", expectedCount, len(seen))
	}
}

func TestGenerator_CounterMonotonic(t *testing.T) {
	gen := NewWithRunId("run1")

	var prev uint64
	for i := 0; i < 100; i++ {
		id := gen.Next("test")
		n, err := strconv.ParseUint(id[strings.LastIndex(id, "-")+1:], 10, 64)
		if err != nil {
			t.Fatalf("failed to parse batch ID %s: %v", id, err)
		}
		if n <= prev {
			t.Errorf("counter not monotonic: %d <= %d", n, prev)
		}
		prev = n
	}
}
