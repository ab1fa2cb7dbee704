package dagmodel

import "encoding/json"

type nodeWire struct {
	NodeID    string         `json:"node_id"`
	Title     string         `json:"title"`
	Status    Status         `json:"status"`
	Score     *float64       `json:"score,omitempty"`
	ParentID  *string        `json:"parent_id,omitempty"`
	ParentIDs []string       `json:"parent_ids,omitempty"`
	Children  []string       `json:"children"`
	MemoKey   *string        `json:"memo_key,omitempty"`
	Details   map[string]any `json:"details"`
}

type dagWire struct {
	RootID string     `json:"root_id"`
	Nodes  []nodeWire `json:"nodes"`
}

// MarshalJSON renders the DAG as a flat node list plus the root id.
func (d *IdeaDag) MarshalJSON() ([]byte, error) {
	wire := dagWire{RootID: d.RootID}
	for _, n := range d.nodes {
		details := make(map[string]any, len(n.Details))
		for k, v := range n.Details {
			details[string(k)] = v
		}
		wire.Nodes = append(wire.Nodes, nodeWire{
			NodeID: n.NodeID, Title: n.Title, Status: n.Status, Score: n.Score,
			ParentID: n.ParentID, ParentIDs: n.ParentIDs, Children: n.Children,
			MemoKey: n.MemoKey, Details: details,
		})
	}
	return json.Marshal(wire)
}

// UnmarshalJSON rebuilds the DAG from MarshalJSON's output.
func (d *IdeaDag) UnmarshalJSON(data []byte) error {
	var wire dagWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	d.RootID = wire.RootID
	d.nodes = make(map[string]*IdeaNode, len(wire.Nodes))
	for _, nw := range wire.Nodes {
		details := make(Details, len(nw.Details))
		for k, v := range nw.Details {
			details[DetailKey(k)] = v
		}
		d.nodes[nw.NodeID] = &IdeaNode{
			NodeID: nw.NodeID, Title: nw.Title, Status: nw.Status, Score: nw.Score,
			ParentID: nw.ParentID, ParentIDs: nw.ParentIDs, Children: nw.Children,
			MemoKey: nw.MemoKey, Details: details,
		}
	}
	return nil
}
