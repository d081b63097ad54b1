// Package catalog resolves genres and soundscape ids to playable tracks.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknown is returned for a genre or soundscape the catalog lacks.
	ErrUnknown = errors.New("unknown catalog entry")
	// ErrExhausted is returned when every reachable track is excluded.
	ErrExhausted = errors.New("no playable track left")
)

// Track is a playable content reference.
type Track struct {
	ID       string  `yaml:"id" json:"id"`
	Title    string  `yaml:"title,omitempty" json:"title"`
	Duration float64 `yaml:"duration,omitempty" json:"duration,omitempty"`
	Genre    string  `yaml:"-" json:"genre"`
}

// Group is a genre or a soundscape with its tracks.
type Group struct {
	Title    string   `yaml:"title,omitempty"`
	Adjacent []string `yaml:"adjacent,omitempty"`
	Tracks   []Track  `yaml:"tracks"`
}

type file struct {
	Genres      map[string]*Group `yaml:"genres"`
	Soundscapes map[string]*Group `yaml:"soundscapes"`
}

type contents struct {
	genres      map[string]*Group
	soundscapes map[string]*Group
	byID        map[string]Track
}

// Catalog is safe for concurrent use.
type Catalog struct {
	path string

	mu   sync.RWMutex
	c    contents
	rand *rand.Rand
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithSource makes track picks reproducible.
func WithSource(src rand.Source) Option {
	return func(c *Catalog) { c.rand = rand.New(src) }
}

// Open loads the catalog file at path.
func Open(path string, opts ...Option) (*Catalog, error) {
	c := newCatalog(opts)
	c.path = path
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse builds a catalog from YAML data.
func Parse(data []byte, opts ...Option) (*Catalog, error) {
	parsed, err := parse(data)
	if err != nil {
		return nil, err
	}
	c := newCatalog(opts)
	c.c = parsed
	return c, nil
}

func newCatalog(opts []Option) *Catalog {
	c := &Catalog{}
	for _, o := range opts {
		o(c)
	}
	if c.rand == nil {
		seed := uint64(time.Now().UnixNano())
		c.rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return c
}

// Reload rereads the catalog file. On error the previous contents stay.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	parsed, err := parse(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.c = parsed
	c.mu.Unlock()
	return nil
}

func parse(data []byte) (contents, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return contents{}, fmt.Errorf("parse catalog: %w", err)
	}
	out := contents{
		genres:      normalize(f.Genres, true),
		soundscapes: normalize(f.Soundscapes, false),
		byID:        make(map[string]Track),
	}
	for _, groups := range []map[string]*Group{out.genres, out.soundscapes} {
		for _, g := range groups {
			for _, t := range g.Tracks {
				out.byID[t.ID] = t
			}
		}
	}
	return out, nil
}

func normalize(groups map[string]*Group, defaultEdges bool) map[string]*Group {
	out := make(map[string]*Group, len(groups))
	for name, g := range groups {
		if g == nil {
			g = &Group{}
		}
		if g.Adjacent == nil && defaultEdges {
			g.Adjacent = DefaultAdjacent[name]
		}
		tracks := g.Tracks[:0]
		for _, t := range g.Tracks {
			if t.ID == "" {
				continue
			}
			t.Genre = name
			if t.Title == "" {
				t.Title = DisplayName(name, t.ID)
			}
			tracks = append(tracks, t)
		}
		g.Tracks = tracks
		out[name] = g
	}
	return out
}

// Genres returns the genre names in sorted order.
func (c *Catalog) Genres() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.c.genres)
}

// Soundscapes returns the soundscape ids in sorted order.
func (c *Catalog) Soundscapes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.c.soundscapes)
}

// Track looks up a track by content id.
func (c *Catalog) Track(id string) (Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.c.byID[id]
	return t, ok
}

// Music picks a track for genre, skipping excluded ids. When the genre has
// nothing left the search widens through adjacent genres, nearest first.
func (c *Catalog) Music(ctx context.Context, genre string, exclude ...string) (Track, error) {
	return c.pick(ctx, "genre", genre, exclude)
}

// Soundscape picks a track for a soundscape id, skipping excluded ids.
func (c *Catalog) Soundscape(ctx context.Context, id string, exclude ...string) (Track, error) {
	return c.pick(ctx, "soundscape", id, exclude)
}

func (c *Catalog) pick(ctx context.Context, kind, start string, exclude []string) (Track, error) {
	if err := ctx.Err(); err != nil {
		return Track{}, err
	}

	// the random source is not safe for concurrent use
	c.mu.Lock()
	defer c.mu.Unlock()

	groups := c.c.genres
	if kind == "soundscape" {
		groups = c.c.soundscapes
	}
	if _, ok := groups[start]; !ok {
		return Track{}, fmt.Errorf("%s %q: %w", kind, start, ErrUnknown)
	}

	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		g := groups[name]
		if g == nil {
			continue
		}

		var candidates []Track
		for _, t := range g.Tracks {
			if !slices.Contains(exclude, t.ID) {
				candidates = append(candidates, t)
			}
		}
		if len(candidates) > 0 {
			return candidates[c.rand.IntN(len(candidates))], nil
		}

		for _, adj := range g.Adjacent {
			if !seen[adj] {
				seen[adj] = true
				queue = append(queue, adj)
			}
		}
	}
	return Track{}, fmt.Errorf("%s %q: %w", kind, start, ErrExhausted)
}

func sortedKeys(m map[string]*Group) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
