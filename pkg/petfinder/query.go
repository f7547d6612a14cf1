package petfinder

import (
	"fmt"
	"strconv"

	"github.com/briangreenhill/petmatch/cache"
)

const (
	DefaultType  = "dog"
	DefaultLimit = 10
	MaxLimit     = 100

	animalsPath = "/animals"
)

// Query is one page of an animal search. It is a plain value and doubles as
// the result cache key.
type Query struct {
	Type     string `json:"type"`
	Location string `json:"location,omitempty"`
	Limit    int    `json:"limit"`
	Page     int    `json:"page"`
	// Status filters by adoption status; empty lets Petfinder apply its
	// default ("adoptable").
	Status string `json:"status,omitempty"`
}

// NewQuery returns a first-page query for species with the default page size
func NewQuery(species, location string) Query {
	return Query{Type: species, Location: location, Limit: DefaultLimit, Page: 1}
}

// Validate checks the query bounds
func (q Query) Validate() error {
	if q.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidQuery)
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d, got %d", ErrInvalidQuery, MaxLimit, q.Limit)
	}
	if q.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidQuery, q.Page)
	}
	return nil
}

// Params returns the search endpoint query parameters. Optional fields are
// omitted when empty.
func (q Query) Params() map[string]string {
	p := map[string]string{
		"type":  q.Type,
		"limit": strconv.Itoa(q.Limit),
		"page":  strconv.Itoa(q.Page),
	}
	if q.Location != "" {
		p["location"] = q.Location
	}
	if q.Status != "" {
		p["status"] = q.Status
	}
	return p
}

// Key is the cache key for the query
func (q Query) Key() string {
	return cache.KeyFor(animalsPath, q.Params())
}
