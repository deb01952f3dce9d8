package pluto

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultGenres(t *testing.T) {
	g := DefaultGenres()
	var names []string
	for _, b := range g.Buckets() {
		names = append(names, b.Name)
	}
	if diff := cmp.Diff([]string{"Children", "News", "Sports", "Drama"}, names); diff != "" {
		t.Errorf("bucket order (-want +got):\n%s", diff)
	}
}

func TestGenresMatch(t *testing.T) {
	g := DefaultGenres()
	tests := []struct {
		name   string
		values []string
		want   []string
	}{
		{"kids tv", []string{"Kids' TV", "", ""}, []string{"Children"}},
		{"category only", []string{"Comedy", "Sitcoms", "Sports"}, []string{"Sports"}},
		{"several buckets", []string{"General News", "Crime", ""}, []string{"News", "Drama"}},
		{"case sensitive", []string{"kids", "news + opinion"}, nil},
		{"nothing", []string{"Comedy"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, g.Match(tt.values...)); diff != "" {
				t.Errorf("Match(%q) (-want +got):\n%s", tt.values, diff)
			}
		})
	}
}

func TestParseGenres(t *testing.T) {
	g, err := ParseGenres([]byte(`
- name: Music
  members: ["Music", "Concerts"]
`))
	if err != nil {
		t.Fatalf("ParseGenres: %v", err)
	}
	if diff := cmp.Diff([]string{"Music"}, g.Match("Concerts")); diff != "" {
		t.Errorf("Match (-want +got):\n%s", diff)
	}

	if _, err := ParseGenres([]byte(`- members: ["x"]`)); err == nil {
		t.Error("expected error for unnamed bucket")
	}
	if _, err := ParseGenres([]byte(`{not a list`)); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestGenresAreCopied(t *testing.T) {
	buckets := []GenreBucket{{Name: "A", Members: []string{"x"}}}
	g := NewGenres(buckets)
	buckets[0].Members[0] = "y"
	if got := g.Match("x"); len(got) != 1 {
		t.Errorf("Match(x) = %v, want [A]", got)
	}
	g.Buckets()[0].Members[0] = "z"
	if got := g.Match("x"); len(got) != 1 {
		t.Errorf("Match(x) after mutating Buckets() = %v", got)
	}
}
