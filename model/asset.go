package model

import "time"

// Asset is a primary demo recording placed on a workspace board.
// Stems are joined in after loading; they are not a stored column.
type Asset struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID string    `json:"project_id" gorm:"column:project_id;size:36;not null;index"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	MasterURL   string    `json:"master_url" gorm:"size:1024;not null"`
	ObjectKey   string    `json:"-" gorm:"size:767;not null"`
	Stems       []Stem    `json:"stems" gorm:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 指定表名
func (Asset) TableName() string {
	return "demos"
}

// Stem is a derived track (a single instrument bounce, say) of an Asset.
type Stem struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	AssetID   string    `json:"demo_id" gorm:"column:demo_id;size:36;not null;index"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	URL       string    `json:"url" gorm:"size:1024;not null"`
	ObjectKey string    `json:"-" gorm:"size:767;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (Stem) TableName() string {
	return "stems"
}

// JoinStems attaches each stem to its owning asset, preserving the order of
// both slices. Stems whose owner is not in assets are dropped.
func JoinStems(assets []Asset, stems []Stem) []Asset {
	byOwner := make(map[string][]Stem, len(assets))
	for _, s := range stems {
		byOwner[s.AssetID] = append(byOwner[s.AssetID], s)
	}
	out := make([]Asset, len(assets))
	for i, a := range assets {
		a.Stems = byOwner[a.ID]
		if a.Stems == nil {
			a.Stems = []Stem{}
		}
		out[i] = a
	}
	return out
}
