// Package model contains domain models passed between layers.
package model

// Release identifies the release a listing belongs to.
type Release struct {
	URL    string // listing URL the release was scraped from
	Title  string // release title, the dedup key in the ledger
	Artist string // primary artist credit
	ID     string // numeric shortcut id, empty when the page has none
}

// RawEntry is one catalog row as a page driver reports it, before the
// rating label has been parsed.
type RawEntry struct {
	ContributorID string // username of the rater
	RatingLabel   string // e.g. "3.50 stars"
}

// Entry is one parsed catalog row.
type Entry struct {
	ContributorID string
	Score         float64
}

// Catalog is everything scraped from one listing: the release plus its
// entries in page order, then on-page order.
type Catalog struct {
	Release Release
	Entries []Entry
}

// Contribution is one contributor's rating of one release.
type Contribution struct {
	Release Release
	Score   float64
}
