package seqio

import (
	"os"

	"github.com/awalterschulze/gographviz"
)

// DotGraphSink writes the post-cleaning graph in DOT form, one node per
// vertex and one directed edge per adjacency bit. Grounded on
// constructdbg.go's GraphvizDBGArr: `gographviz.NewGraph()`,
// `g.SetDir(true)`, `g.AddNode`/`g.AddEdge`, `g.String()`.
type DotGraphSink struct {
	g    *gographviz.Graph
	path string
}

// NewDotGraphSink prepares a DOT graph that will be written to path on
// Flush.
func NewDotGraphSink(path string) *DotGraphSink {
	g := gographviz.NewGraph()
	g.SetName("G")
	g.SetDir(true)
	g.SetStrict(false)
	return &DotGraphSink{g: g, path: path}
}

// AddNode implements GraphSink.
func (s *DotGraphSink) AddNode(id string, label string) {
	attr := map[string]string{"shape": "record"}
	if label != "" {
		attr["label"] = "\"" + label + "\""
	}
	s.g.AddNode("G", id, attr)
}

// AddEdge implements GraphSink.
func (s *DotGraphSink) AddEdge(fromID, toID string, label string) {
	attr := map[string]string{"color": "Blue"}
	if label != "" {
		attr["label"] = "\"" + label + "\""
	}
	s.g.AddEdge(fromID, toID, true, attr)
}

// Flush implements GraphSink, writing the accumulated DOT source to the
// configured path.
func (s *DotGraphSink) Flush() error {
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(s.g.String())
	return err
}
