package dagmodel

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
)

// ToDOT renders the DAG as a Graphviz digraph, walked depth-first from the
// root. Status drives fill color so a stalled or failed branch is visible at
// a glance; merge nodes are diamond-shaped since they are the one node kind
// with more than one incoming edge.
func (d *IdeaDag) ToDOT() string {
	var buf bytes.Buffer
	buf.WriteString("digraph IdeaDag {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [fontname=\"monospace\", fontsize=11, style=filled];\n\n")

	visited := map[string]bool{}
	var walk func(id string)
	walk = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		n, ok := d.nodes[id]
		if !ok {
			return
		}

		shape := "box"
		if n.IsMergeNode() {
			shape = "diamond"
		}
		fmt.Fprintf(&buf, "  %q [label=%q, shape=%s, fillcolor=%s];\n",
			id, dotLabel(n), shape, statusColor(n.Status))

		for _, pid := range n.AllParentIDs() {
			fmt.Fprintf(&buf, "  %q -> %q;\n", pid, id)
		}
		for _, cid := range n.Children {
			walk(cid)
		}
	}
	walk(d.RootID)

	buf.WriteString("}\n")
	return buf.String()
}

func dotLabel(n *IdeaNode) string {
	if action := n.Action(); action != "" {
		return fmt.Sprintf("%s (%s)", n.Title, action)
	}
	return n.Title
}

func statusColor(s Status) string {
	switch s {
	case StatusDone:
		return "palegreen"
	case StatusFailed:
		return "salmon"
	case StatusBlocked:
		return "lightyellow"
	case StatusSkipped:
		return "lightgray"
	case StatusActive:
		return "lightblue"
	default:
		return "white"
	}
}

// RenderSVG renders ToDOT's output to SVG in-process through the go-graphviz
// library, producing a document suitable for embedding or saving straight to disk.
func (d *IdeaDag) RenderSVG(ctx context.Context) ([]byte, error) {
	dot := d.ToDOT()

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("dagmodel: init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("dagmodel: parse dot: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("dagmodel: render svg: %w", err)
	}
	return buf.Bytes(), nil
}

// NodeView is one node's public fields in the graph-data payload.
type NodeView struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Title  string   `json:"title"`
	Status Status   `json:"status"`
	Score  *float64 `json:"score,omitempty"`
}

// EdgeView is one parent-to-child edge in the graph-data payload.
type EdgeView struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GraphData is the JSON-friendly {nodes, edges} view of the DAG, for callers
// that want to render it themselves rather than going through Graphviz.
type GraphData struct {
	RootID string     `json:"root_id"`
	Nodes  []NodeView `json:"nodes"`
	Edges  []EdgeView `json:"edges"`
}

// GraphData builds the {nodes, edges} view of the whole reachable DAG.
func (d *IdeaDag) GraphData() GraphData {
	data := GraphData{RootID: d.RootID}
	d.WalkDepthFirst(func(n *IdeaNode) {
		data.Nodes = append(data.Nodes, NodeView{
			ID: n.NodeID, Label: dotLabel(n), Title: n.Title, Status: n.Status, Score: n.Score,
		})
		for _, pid := range n.AllParentIDs() {
			data.Edges = append(data.Edges, EdgeView{From: pid, To: n.NodeID})
		}
	})
	return data
}
