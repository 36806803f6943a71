package client

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/Sternrassler/creature-catalog/pkg/catalog"
)

// namedResource is the upstream {"name", "url"} reference.
type namedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// pageResponse is the body of GET /pokemon/?offset=&limit=.
type pageResponse struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  []namedResource `json:"results"`
}

// itemResponse is the subset of GET /pokemon/{id}/ the client needs.
type itemResponse struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Sprites struct {
		FrontDefault *string `json:"front_default"`
	} `json:"sprites"`
	Types []typeSlot `json:"types"`
}

type typeSlot struct {
	Slot int           `json:"slot"`
	Type namedResource `json:"type"`
}

func (p *pageResponse) summaries() ([]catalog.Summary, error) {
	if p.Results == nil {
		return nil, fmt.Errorf("missing results")
	}

	out := make([]catalog.Summary, 0, len(p.Results))
	for i, r := range p.Results {
		if r.Name == "" {
			return nil, fmt.Errorf("result %d: empty name", i)
		}
		id, err := idFromURL(r.URL)
		if err != nil {
			return nil, fmt.Errorf("result %d (%s): %w", i, r.Name, err)
		}
		out = append(out, catalog.Summary{ID: id, Name: r.Name})
	}
	return out, nil
}

func (it *itemResponse) detail() (*catalog.Detail, error) {
	if it.ID < 0 {
		return nil, fmt.Errorf("negative id %d", it.ID)
	}
	if it.Name == "" {
		return nil, fmt.Errorf("item %d: empty name", it.ID)
	}

	return &catalog.Detail{
		ID:              it.ID,
		Name:            it.Name,
		ImageURL:        it.Sprites.FrontDefault,
		PrimaryCategory: primaryType(it.Types),
	}, nil
}

// primaryType returns the type in the lowest slot, or "" when there is none.
func primaryType(types []typeSlot) string {
	best := -1
	for i, t := range types {
		if t.Type.Name == "" {
			continue
		}
		if best < 0 || t.Slot < types[best].Slot {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return types[best].Type.Name
}

// idFromURL extracts the trailing numeric segment of a resource URL,
// e.g. "https://pokeapi.co/api/v2/pokemon/25/" -> 25.
func idFromURL(raw string) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("empty resource url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("parse resource url: %w", err)
	}

	segment := path.Base(strings.TrimRight(u.Path, "/"))
	id, err := strconv.Atoi(segment)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("resource url %q has no numeric id", raw)
	}
	return id, nil
}
