package petfinder

import (
	"html"
	"strings"
)

const (
	PlaceholderPhotoURL    = "https://via.placeholder.com/300x300?text=No+Photo"
	PlaceholderDescription = "No description provided."
	MixedBreed             = "Mixed Breed"
)

// Normalize flattens one Petfinder animal into a Record. It never fails:
// missing optional data is replaced by the placeholders above.
func Normalize(a Animal) Record {
	primary, secondary := breedNames(a.Breeds)

	r := Record{
		ID:             string(a.ID),
		Name:           strings.TrimSpace(a.Name),
		BreedPrimary:   primary,
		BreedSecondary: secondary,
		Breeds:         joinBreeds(primary, secondary),
		Age:            a.Age,
		Gender:         a.Gender,
		Size:           a.Size,
		PhotoURL:       primaryPhoto(a.Photos),
		Photos:         mediumPhotos(a.Photos),
		Description:    description(a.Description),
		URL:            a.URL,
		Status:         a.Status,

		City:     a.Contact.Address.City,
		State:    a.Contact.Address.State,
		Email:    a.Contact.Email,
		Phone:    a.Contact.Phone,
		Distance: copyFloat(a.Distance),

		GoodWithChildren: copyBool(a.Environment.Children),
		GoodWithDogs:     copyBool(a.Environment.Dogs),
		GoodWithCats:     copyBool(a.Environment.Cats),
		HouseTrained:     a.Attributes.HouseTrained,
		SpecialNeeds:     a.Attributes.SpecialNeeds,
	}
	r.Tags = tags(r, a.Breeds)
	return r
}

// NormalizeAll normalizes animals in order
func NormalizeAll(animals []Animal) []Record {
	records := make([]Record, 0, len(animals))
	for _, a := range animals {
		records = append(records, Normalize(a))
	}
	return records
}

// breedNames picks the primary/secondary pair; a lone secondary breed is
// promoted to primary.
func breedNames(b Breeds) (string, string) {
	primary := strings.TrimSpace(b.Primary)
	secondary := strings.TrimSpace(b.Secondary)
	switch {
	case primary != "":
		return primary, secondary
	case secondary != "":
		return secondary, ""
	}
	return MixedBreed, ""
}

func joinBreeds(primary, secondary string) string {
	if secondary == "" {
		return primary
	}
	return primary + ", " + secondary
}

// primaryPhoto returns the first photo's medium variant, falling back to
// the larger ones, then to the placeholder.
func primaryPhoto(photos []Photo) string {
	if len(photos) > 0 {
		p := photos[0]
		for _, u := range []string{p.Medium, p.Large, p.Full, p.Small} {
			if u != "" {
				return u
			}
		}
	}
	return PlaceholderPhotoURL
}

func mediumPhotos(photos []Photo) []string {
	var out []string
	for _, p := range photos {
		if p.Medium != "" {
			out = append(out, p.Medium)
		}
	}
	return out
}

// Petfinder returns HTML-escaped descriptions, sometimes twice over
func description(s string) string {
	s = strings.TrimSpace(html.UnescapeString(html.UnescapeString(s)))
	if s == "" {
		return PlaceholderDescription
	}
	return s
}

func tags(r Record, b Breeds) []string {
	var out []string
	if r.Age != "" {
		out = append(out, r.Age)
	}
	if r.Size != "" {
		out = append(out, r.Size)
	}
	if b.Primary != "" || b.Secondary != "" {
		out = append(out, r.BreedPrimary)
	}
	return out
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
