package model

import "testing"

func TestJoinStemsScopesByOwner(t *testing.T) {
	assets := []Asset{{ID: "a1", Name: "intro"}, {ID: "a2", Name: "verse"}}
	stems := []Stem{
		{ID: "s1", AssetID: "a1", Name: "drums"},
		{ID: "s2", AssetID: "zz", Name: "orphan"},
		{ID: "s3", AssetID: "a1", Name: "bass"},
	}

	joined := JoinStems(assets, stems)
	if len(joined) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(joined))
	}
	if got := len(joined[0].Stems); got != 2 {
		t.Fatalf("expected 2 stems on a1, got %d", got)
	}
	if joined[0].Stems[0].ID != "s1" || joined[0].Stems[1].ID != "s3" {
		t.Fatalf("stem order not preserved: %+v", joined[0].Stems)
	}
	if joined[1].Stems == nil || len(joined[1].Stems) != 0 {
		t.Fatalf("expected empty non-nil stem list on a2, got %#v", joined[1].Stems)
	}
	if assets[0].Stems != nil {
		t.Fatal("input slice must not be mutated")
	}
}

func TestWorkspaceHasSnapshot(t *testing.T) {
	cases := map[string]bool{"": false, "null": false, `{"store":{}}`: true}
	for raw, want := range cases {
		w := Workspace{Snapshot: []byte(raw)}
		if raw == "" {
			w.Snapshot = nil
		}
		if got := w.HasSnapshot(); got != want {
			t.Fatalf("HasSnapshot(%q) = %v, want %v", raw, got, want)
		}
	}
}
