// Package domain defines the catalog entities, update commands and storage
// contracts shared by the catalogetl jobs.
package domain

// EntityType identifies the type of record captured in a Change.
type EntityType string

// Supported entity type identifiers.
const (
	// EntityProduct identifies a catalog product record.
	EntityProduct EntityType = "product"
	// EntityProperty identifies a real-estate property record.
	EntityProperty EntityType = "property"
	// EntityReview identifies a property review record.
	EntityReview EntityType = "review"
	// EntityTrack identifies a music track record.
	EntityTrack EntityType = "track"
	// EntityMovie identifies a movie record.
	EntityMovie EntityType = "movie"
)

// PriceFloor and QuantityFloor are the minimum values a product may hold
// after an update has been applied.
const (
	PriceFloor    = 1.0
	QuantityFloor = int64(1)
)

// DefaultCategory is assigned to products whose category column is missing.
const DefaultCategory = "Unknown"

// Product is one catalog item addressed by its unique name.
type Product struct {
	ID          int64   `json:"id,omitempty"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	Category    string  `json:"category"`
	FromCity    string  `json:"from_city"`
	Available   bool    `json:"is_available"`
	Views       int64   `json:"views"`
	UpdateCount int64   `json:"update_count"`
}

// Property is a real-estate listing loaded from the properties dataset.
type Property struct {
	ID        int64  `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Street    string `json:"street" db:"street"`
	City      string `json:"city" db:"city"`
	Zipcode   int64  `json:"zipcode" db:"zipcode"`
	Floors    int64  `json:"floors" db:"floors"`
	Year      int64  `json:"year" db:"year"`
	Parking   bool   `json:"parking" db:"parking"`
	ProbPrice int64  `json:"prob_price" db:"prob_price"`
	Views     int64  `json:"views" db:"views"`
}

// Review is a user review attached to a Property by name.
type Review struct {
	PropertyName  string  `json:"name" csv:"name" db:"property_name"`
	Rating        float64 `json:"rating" csv:"rating" db:"rating"`
	Convenience   int64   `json:"convenience" csv:"convenience" db:"convenience"`
	Security      int64   `json:"security" csv:"security" db:"security"`
	Functionality int64   `json:"functionality" csv:"functionality" db:"functionality"`
	Comment       string  `json:"comment" csv:"comment" db:"comment"`
}

// Track is a music track; (Artist, Song, Year) is unique.
type Track struct {
	Artist     string  `json:"artist" db:"artist"`
	Song       string  `json:"song" db:"song"`
	DurationMS int64   `json:"duration_ms" db:"duration_ms"`
	Year       int64   `json:"year" db:"year"`
	Tempo      float64 `json:"tempo" db:"tempo"`
	Genre      string  `json:"genre" db:"genre"`
}

// Complete reports whether the track carries the identifying fields required
// for loading.
func (t Track) Complete() bool {
	return t.Artist != "" && t.Song != "" && t.Year != 0
}

// Movie is a film record. Every column except ID may be absent in the source
// files and is therefore nullable.
type Movie struct {
	ID            int64    `json:"id" csv:"id" db:"id"`
	OriginalTitle *string  `json:"original_title" csv:"original_title,omitempty" db:"original_title"`
	ReleaseDate   *string  `json:"release_date" csv:"release_date,omitempty" db:"release_date"`
	Genre         *string  `json:"genre" csv:"genre,omitempty" db:"genre"`
	Duration      *float64 `json:"duration" csv:"duration,omitempty" db:"duration"`
	Country       *string  `json:"country" csv:"country,omitempty" db:"country"`
	Director      *string  `json:"director" csv:"director,omitempty" db:"director"`
	Income        *float64 `json:"income" csv:"income,omitempty" db:"income"`
	Votes         *float64 `json:"_votes_" csv:"_votes_,omitempty" db:"votes"`
	Score         *float64 `json:"score" csv:"score,omitempty" db:"score"`
}

// Action enumerates the mutations captured in a Change.
type Action string

// Change actions.
const (
	// ActionUpdate indicates a record was updated.
	ActionUpdate Action = "update"
	// ActionDelete indicates a record was deleted.
	ActionDelete Action = "delete"
)

// Change records a single mutation performed inside a transaction.
type Change struct {
	Entity EntityType `json:"entity"`
	Action Action     `json:"action"`
	Name   string     `json:"name"`
	Before *Product   `json:"before,omitempty"`
	After  *Product   `json:"after,omitempty"`
}

// Result summarises the mutations performed by a transaction.
type Result struct {
	Changes []Change `json:"changes"`
}

// Count returns the number of changes with the given action.
func (r Result) Count(action Action) int {
	n := 0
	for _, c := range r.Changes {
		if c.Action == action {
			n++
		}
	}
	return n
}
