package model

import (
	"time"

	"gorm.io/datatypes"
)

// Workspace is a project board. Snapshot is the canvas engine's serialized
// document; it is stored and returned verbatim and never inspected here.
type Workspace struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	Name      string         `json:"name" gorm:"size:255;not null"`
	Snapshot  datatypes.JSON `json:"tldraw_snapshot" gorm:"column:tldraw_snapshot;type:json"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"-"`
}

// TableName 指定表名
func (Workspace) TableName() string {
	return "projects"
}

// HasSnapshot reports whether a canvas document was ever saved.
func (w *Workspace) HasSnapshot() bool {
	return len(w.Snapshot) > 0 && string(w.Snapshot) != "null"
}

// Membership grants a user read/write access to a workspace.
// The (project_id, user_id) pair is unique.
type Membership struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	WorkspaceID string    `json:"project_id" gorm:"column:project_id;size:36;not null;uniqueIndex:uq_project_user,priority:1"`
	UserID      int64     `json:"user_id" gorm:"not null;uniqueIndex:uq_project_user,priority:2;index"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 指定表名
func (Membership) TableName() string {
	return "project_users"
}
