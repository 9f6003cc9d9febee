package canvas

import (
	"fmt"
	"sync"

	"stemboard/model"
)

// NodeType names a kind of canvas node the board knows how to render.
type NodeType string

const (
	// NodeWaveform is an audio player bound to one asset.
	NodeWaveform NodeType = "waveform"
)

// Node is a shape on the board. AssetID is set for media-bound nodes.
type Node struct {
	ID      string   `json:"id,omitempty"`
	Type    NodeType `json:"type"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	W       float64  `json:"w"`
	H       float64  `json:"h"`
	AssetID string   `json:"assetId,omitempty"`
}

// NodeSpec describes how a node type is sized by default.
type NodeSpec struct {
	Type   NodeType
	Width  float64
	Height float64
}

// NodeTypes is a registry of renderable node types.
type NodeTypes struct {
	mu    sync.RWMutex
	specs map[NodeType]NodeSpec
}

// NewNodeTypes returns a registry holding the built-in types.
func NewNodeTypes() *NodeTypes {
	r := &NodeTypes{specs: make(map[NodeType]NodeSpec)}
	r.specs[NodeWaveform] = NodeSpec{Type: NodeWaveform, Width: 300, Height: 120}
	return r
}

// Register adds a node type. Types cannot be registered twice.
func (r *NodeTypes) Register(spec NodeSpec) error {
	if spec.Type == "" {
		return fmt.Errorf("node type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[spec.Type]; ok {
		return fmt.Errorf("node type %q already registered", spec.Type)
	}
	r.specs[spec.Type] = spec
	return nil
}

// Lookup returns the spec for t.
func (r *NodeTypes) Lookup(t NodeType) (NodeSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[t]
	return spec, ok
}

// NewNode builds a node of type t at (x, y) with the type's default size.
func (r *NodeTypes) NewNode(t NodeType, assetID string, x, y float64) (Node, error) {
	spec, ok := r.Lookup(t)
	if !ok {
		return Node{}, fmt.Errorf("unknown node type %q", t)
	}
	return Node{Type: t, X: x, Y: y, W: spec.Width, H: spec.Height, AssetID: assetID}, nil
}

// Reconcile returns the waveform nodes to create so that every asset has
// one. The i-th asset is placed at (150*i, 150); assets that already have a
// waveform node are skipped but still count for placement.
func (r *NodeTypes) Reconcile(existing []Node, assets []model.Asset) []Node {
	have := make(map[string]bool, len(existing))
	for _, n := range existing {
		if n.Type == NodeWaveform && n.AssetID != "" {
			have[n.AssetID] = true
		}
	}

	var missing []Node
	for i, a := range assets {
		if have[a.ID] {
			continue
		}
		node, err := r.NewNode(NodeWaveform, a.ID, float64(150*i), 150)
		if err != nil {
			continue
		}
		have[a.ID] = true
		missing = append(missing, node)
	}
	return missing
}
