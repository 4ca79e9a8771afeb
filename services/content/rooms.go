package content

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"hotel-api-go/logcolors"
)

// RoomMatch is the per-rate enrichment resolved from static room groups.
type RoomMatch struct {
	Matched   bool     // false when only the hotel-image fallback applied
	GroupName string   // normalized name of the matched group, "" on fallback
	Images    []string // resolved image URLs
	Amenities []string
}

// NormalizeRoomName canonicalizes a free-text room name for matching:
// lowercase, parentheses stripped, whitespace collapsed, trimmed.
// "Deluxe Room (Sea View)" becomes "deluxe room sea view".
func NormalizeRoomName(name string) string {
	s := strings.ToLower(name)
	s = strings.NewReplacer("(", " ", ")", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// MatchRoom joins a priced rate's room name to a hotel's static room groups.
// Matching precedence: exact normalized match, then the first group whose
// key the rate name starts with (supplier names often append suffixes like
// "Standard Room Sea View" for group "Standard Room"), then a fallback to
// the hotel's primary image at reduced size with no amenities. First hit in
// group order wins within a tier.
func MatchRoom(roomName string, hotel HotelContent) RoomMatch {
	normalized := NormalizeRoomName(roomName)

	if normalized != "" {
		// Tier 1: exact normalized match
		for _, g := range hotel.RoomGroups {
			if NormalizeRoomName(g.Name) == normalized {
				return groupMatch(g)
			}
		}

		// Tier 2: rate name starts with the group key
		for _, g := range hotel.RoomGroups {
			key := NormalizeRoomName(g.Name)
			if key != "" && strings.HasPrefix(normalized, key) {
				log.Debugf("%s Prefix match %q -> group %q", logcolors.LogRoomMatch, normalized, key)
				return groupMatch(g)
			}
		}
	}

	// Tier 3: no match, fall back to the hotel's primary image
	match := RoomMatch{}
	if img := hotel.PrimaryImage(ImageSizeReduced); img != "" {
		match.Images = []string{img}
	}
	return match
}

func groupMatch(g RoomGroup) RoomMatch {
	return RoomMatch{
		Matched:   true,
		GroupName: NormalizeRoomName(g.Name),
		Images:    ImagesAt(g.Images, ImageSizeFull),
		Amenities: g.Amenities,
	}
}
