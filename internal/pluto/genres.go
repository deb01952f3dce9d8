package pluto

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed genres.yaml
var genresYAML []byte

// GenreBucket is a coarse category and the vendor genre strings it covers.
type GenreBucket struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

// Genres is an immutable, ordered set of genre buckets.
type Genres struct {
	buckets []GenreBucket
	members []map[string]struct{}
}

// NewGenres builds a Genres table from buckets. Matching is exact and
// case-sensitive; bucket order is kept.
func NewGenres(buckets []GenreBucket) *Genres {
	g := &Genres{
		buckets: make([]GenreBucket, 0, len(buckets)),
		members: make([]map[string]struct{}, 0, len(buckets)),
	}
	for _, b := range buckets {
		set := make(map[string]struct{}, len(b.Members))
		for _, m := range b.Members {
			set[m] = struct{}{}
		}
		g.buckets = append(g.buckets, GenreBucket{Name: b.Name, Members: slices.Clone(b.Members)})
		g.members = append(g.members, set)
	}
	return g
}

// ParseGenres decodes a YAML list of buckets.
func ParseGenres(data []byte) (*Genres, error) {
	var buckets []GenreBucket
	if err := yaml.Unmarshal(data, &buckets); err != nil {
		return nil, fmt.Errorf("parse genres: %w", err)
	}
	for i, b := range buckets {
		if b.Name == "" {
			return nil, fmt.Errorf("parse genres: bucket %d has no name", i)
		}
	}
	return NewGenres(buckets), nil
}

var defaultGenres = sync.OnceValue(func() *Genres {
	g, err := ParseGenres(genresYAML)
	if err != nil {
		panic(err)
	}
	return g
})

// DefaultGenres returns the built-in bucket table (Children, News, Sports, Drama).
func DefaultGenres() *Genres {
	return defaultGenres()
}

// Buckets returns a copy of the bucket definitions.
func (g *Genres) Buckets() []GenreBucket {
	out := make([]GenreBucket, len(g.buckets))
	for i, b := range g.buckets {
		out[i] = GenreBucket{Name: b.Name, Members: slices.Clone(b.Members)}
	}
	return out
}

// Match returns, in bucket order, the name of every bucket that lists at
// least one of values.
func (g *Genres) Match(values ...string) []string {
	var out []string
	for i, set := range g.members {
		for _, v := range values {
			if _, ok := set[v]; ok {
				out = append(out, g.buckets[i].Name)
				break
			}
		}
	}
	return out
}
