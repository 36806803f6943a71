package enrichment

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Sternrassler/creature-catalog/pkg/catalog"
)

// DefaultCategory is the primary category of an item the catalog reports
// without one.
const DefaultCategory = "none"

// DisplayEntity is the enriched, view-ready record published to consumers.
type DisplayEntity struct {
	ID   int    `json:"id"`
	Name string `json:"name"`

	// ImageURL is nil when the catalog has no image; it is never synthesized.
	ImageURL *string `json:"image_url"`

	PrimaryCategory string `json:"primary_category"`
}

// FromDetail maps a resolved catalog detail to a display entity.
func FromDetail(d *catalog.Detail) DisplayEntity {
	category := d.PrimaryCategory
	if category == "" {
		category = DefaultCategory
	}

	var image *string
	if d.ImageURL != nil {
		u := *d.ImageURL
		image = &u
	}

	return DisplayEntity{
		ID:              d.ID,
		Name:            d.Name,
		ImageURL:        image,
		PrimaryCategory: category,
	}
}

// Title returns the name with its first letter upper-cased.
func (e DisplayEntity) Title() string {
	r, size := utf8.DecodeRuneInString(e.Name)
	if r == utf8.RuneError {
		return e.Name
	}
	return string(unicode.ToUpper(r)) + e.Name[size:]
}

// Number returns the catalog number formatted as "#001".
func (e DisplayEntity) Number() string {
	return fmt.Sprintf("#%03d", e.ID)
}

func (e DisplayEntity) clone() DisplayEntity {
	if e.ImageURL != nil {
		u := *e.ImageURL
		e.ImageURL = &u
	}
	return e
}

// ResultSet is one complete, ordered refresh result. The order of Entities is
// the order of the list page that produced it.
type ResultSet struct {
	// Generation of the refresh that produced the set; 0 for the initial empty set.
	Generation uint64 `json:"generation"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`

	Entities []DisplayEntity `json:"entities"`

	// PublishedAt is zero for the initial empty set.
	PublishedAt time.Time `json:"published_at"`
}

// Len returns the number of entities.
func (rs ResultSet) Len() int {
	return len(rs.Entities)
}

// IDs returns the entity ids in order.
func (rs ResultSet) IDs() []int {
	ids := make([]int, len(rs.Entities))
	for i, e := range rs.Entities {
		ids[i] = e.ID
	}
	return ids
}

// Find returns the entity with id.
func (rs ResultSet) Find(id int) (DisplayEntity, bool) {
	for _, e := range rs.Entities {
		if e.ID == id {
			return e.clone(), true
		}
	}
	return DisplayEntity{}, false
}

// String summarizes the set for logs and CLI output.
func (rs ResultSet) String() string {
	names := make([]string, len(rs.Entities))
	for i, e := range rs.Entities {
		names[i] = e.Name
	}
	return fmt.Sprintf("generation %d [%s]", rs.Generation, strings.Join(names, ", "))
}

func (rs ResultSet) clone() ResultSet {
	out := rs
	out.Entities = make([]DisplayEntity, len(rs.Entities))
	for i, e := range rs.Entities {
		out.Entities[i] = e.clone()
	}
	return out
}
