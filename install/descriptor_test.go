package install

import (
	"encoding/json"
	"testing"
)

func TestLibraryRules(t *testing.T) {
	var libs []Library
	err := json.Unmarshal([]byte(`[
		{"name":"plain"},
		{"name":"osx-only","rules":[{"action":"allow","os":{"name":"osx"}}]},
		{"name":"not-osx","rules":[{"action":"allow"},{"action":"disallow","os":{"name":"osx"}}]}
	]`), &libs)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	cases := []struct {
		goos string
		want []bool
	}{
		{goos: "linux", want: []bool{true, false, true}},
		{goos: "darwin", want: []bool{true, true, false}},
		{goos: "windows", want: []bool{true, false, true}},
	}

	for _, tc := range cases {
		for i, lib := range libs {
			if got := lib.Allowed(tc.goos); got != tc.want[i] {
				t.Fatalf("%s on %s: got %v, want %v", lib.Name, tc.goos, got, tc.want[i])
			}
		}
	}
}

func TestManifestFind(t *testing.T) {
	m := VersionManifest{Versions: []ManifestEntry{{ID: "1.20.1"}, {ID: "1.12.2", URL: "u"}}}

	if e, ok := m.Find("1.12.2"); !ok || e.URL != "u" {
		t.Fatalf("expected 1.12.2 entry, got %#v %v", e, ok)
	}

	if _, ok := m.Find("0.0.1"); ok {
		t.Fatalf("unexpected match")
	}
}
