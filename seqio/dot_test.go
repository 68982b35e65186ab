package seqio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDotGraphSinkWritesNodesAndEdges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.dot")
	sink := NewDotGraphSink(path)
	sink.AddNode("1", "v1")
	sink.AddNode("2", "v2")
	sink.AddEdge("1", "2", "ACG")
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, "digraph") && !strings.Contains(out, "strict") && !strings.Contains(out, "G") {
		t.Fatalf("output does not look like DOT: %s", out)
	}
	if !strings.Contains(out, "1") || !strings.Contains(out, "2") {
		t.Fatalf("expected both node IDs in output: %s", out)
	}
}
