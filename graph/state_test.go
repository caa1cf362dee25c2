package graph

import "testing"

func TestDeepCopyIsolatesBranches(t *testing.T) {
	orig := testState{
		Value:   "base",
		Visited: []string{"a"},
		Count:   1,
	}

	copied, err := deepCopy(orig)
	if err != nil {
		t.Fatalf("deepCopy: %v", err)
	}

	copied.Visited[0] = "mutated"
	copied.Value = "changed"

	if orig.Visited[0] != "a" {
		t.Error("slice mutation leaked into original")
	}
	if orig.Value != "base" {
		t.Error("scalar mutation leaked into original")
	}
}

func TestDeepCopyNestedMaps(t *testing.T) {
	type nested struct {
		Reports map[string]string `json:"reports"`
	}
	orig := nested{Reports: map[string]string{"market": "ok"}}

	copied, err := deepCopy(orig)
	if err != nil {
		t.Fatalf("deepCopy: %v", err)
	}
	copied.Reports["market"] = "mutated"

	if orig.Reports["market"] != "ok" {
		t.Error("map mutation leaked into original")
	}
}
