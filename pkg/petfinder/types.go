package petfinder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// SearchResponse is the body of GET /animals
type SearchResponse struct {
	Animals    []Animal   `json:"animals"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	CountPerPage int `json:"count_per_page"`
	TotalCount   int `json:"total_count"`
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
}

// Animal mirrors the subset of Petfinder's animal object we read.
// Nullable fields decode to their zero value (or nil for pointers).
type Animal struct {
	ID          AnimalID    `json:"id"`
	URL         string      `json:"url"`
	Type        string      `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Age         string      `json:"age"`
	Gender      string      `json:"gender"`
	Size        string      `json:"size"`
	Status      string      `json:"status"`
	Breeds      Breeds      `json:"breeds"`
	Photos      []Photo     `json:"photos"`
	Attributes  Attributes  `json:"attributes"`
	Environment Environment `json:"environment"`
	Contact     Contact     `json:"contact"`
	Distance    *float64    `json:"distance"` // only set for location searches
}

type Breeds struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Mixed     bool   `json:"mixed"`
	Unknown   bool   `json:"unknown"`
}

// Photo holds the size variants Petfinder serves for one picture
type Photo struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
	Full   string `json:"full"`
}

type Attributes struct {
	SpayedNeutered bool `json:"spayed_neutered"`
	HouseTrained   bool `json:"house_trained"`
	SpecialNeeds   bool `json:"special_needs"`
	ShotsCurrent   bool `json:"shots_current"`
}

type Environment struct {
	Children *bool `json:"children"`
	Dogs     *bool `json:"dogs"`
	Cats     *bool `json:"cats"`
}

type Contact struct {
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Address Address `json:"address"`
}

type Address struct {
	City     string `json:"city"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
}

// AnimalID is Petfinder's animal identifier. The API sends a number, but
// the value is treated as opaque; quoted ids are accepted as well.
type AnimalID string

func (id *AnimalID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = AnimalID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("animal id: %w", err)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*id = AnimalID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = AnimalID(n.String())
	return nil
}

// Record is the flat, display-ready view of one animal. Records are values;
// nothing in this package mutates one after Normalize returns it.
type Record struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	BreedPrimary   string   `json:"breed_primary"`
	BreedSecondary string   `json:"breed_secondary,omitempty"`
	Breeds         string   `json:"breeds"`
	Age            string   `json:"age"`
	Gender         string   `json:"gender"`
	Size           string   `json:"size,omitempty"`
	PhotoURL       string   `json:"photo_url"`
	Photos         []string `json:"photos,omitempty"`
	Description    string   `json:"description"`
	URL            string   `json:"url"`
	Status         string   `json:"status,omitempty"`

	City     string   `json:"city,omitempty"`
	State    string   `json:"state,omitempty"`
	Email    string   `json:"email,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Distance *float64 `json:"distance,omitempty"`

	GoodWithChildren *bool `json:"good_with_children,omitempty"`
	GoodWithDogs     *bool `json:"good_with_dogs,omitempty"`
	GoodWithCats     *bool `json:"good_with_cats,omitempty"`
	HouseTrained     bool  `json:"house_trained"`
	SpecialNeeds     bool  `json:"special_needs"`

	Tags []string `json:"tags,omitempty"`
}
