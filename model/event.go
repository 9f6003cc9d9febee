package model

import "encoding/json"

// EventType names a change pushed to collaborators watching a board.
type EventType string

const (
	EventSnapshotUpdated   EventType = "snapshot_updated"
	EventAssetAdded        EventType = "asset_added"
	EventStemAdded         EventType = "stem_added"
	EventCollaboratorAdded EventType = "collaborator_added"
	EventPing              EventType = "ping"
	EventPong              EventType = "pong"
)

// BoardEvent is the envelope exchanged over the event bus and websockets.
type BoardEvent struct {
	Type        EventType       `json:"type"`
	WorkspaceID string          `json:"projectId"`
	UserID      int64           `json:"userId,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Timestamp   int64           `json:"timestamp"`
}
