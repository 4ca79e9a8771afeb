package content

import (
	"encoding/json"
	"strings"
)

// Image size slugs understood by the supplier's image CDN templates.
const (
	ImageSizeFull    = "x500"
	ImageSizeReduced = "x220"
)

// HotelContent is the canonical static-content shape for one hotel. Local
// store documents come in two naming conventions (locally normalized
// camelCase vs raw-API snake_case); both are folded into this shape at the
// store boundary so downstream logic never branches on field naming.
type HotelContent struct {
	HID        int64       `json:"hid"`
	Name       string      `json:"name"`
	Address    string      `json:"address"`
	StarRating int         `json:"star_rating"`
	Images     []string    `json:"images"` // CDN templates, may contain a {size} placeholder
	Amenities  []string    `json:"amenities"`
	Facilities []string    `json:"facilities"`
	RoomGroups []RoomGroup `json:"room_groups"`
}

// RoomGroup is static metadata for one room category of a hotel.
type RoomGroup struct {
	Name      string   `json:"name"`
	Images    []string `json:"images"`
	Amenities []string `json:"amenities"`
}

// PrimaryImage returns the hotel's lead image at the given size, or "" when
// the hotel has no images.
func (h HotelContent) PrimaryImage(size string) string {
	if len(h.Images) == 0 {
		return ""
	}
	return ImageAt(h.Images[0], size)
}

// ImageAt resolves a CDN image template to a concrete size. Templates
// without a placeholder are returned unchanged.
func ImageAt(tmpl, size string) string {
	return strings.Replace(tmpl, "{size}", size, 1)
}

// ImagesAt resolves a list of image templates to a concrete size.
func ImagesAt(tmpls []string, size string) []string {
	if len(tmpls) == 0 {
		return nil
	}
	out := make([]string, 0, len(tmpls))
	for _, tmpl := range tmpls {
		out = append(out, ImageAt(tmpl, size))
	}
	return out
}

// rawHotelDoc accepts both store document shapes. Snake_case fields carry
// the raw supplier dump shape, camelCase the locally normalized one.
type rawHotelDoc struct {
	HID     int64  `json:"hid"`
	Name    string `json:"name"`
	Address string `json:"address"`

	StarRating      int `json:"star_rating"`
	StarRatingCamel int `json:"starRating"`

	Images         []string   `json:"images"`
	ImagesExt      []rawImage `json:"images_ext"`
	ImagesExtCamel []rawImage `json:"imagesExt"`

	AmenityGroups      []rawAmenityGroup `json:"amenity_groups"`
	AmenityGroupsCamel []rawAmenityGroup `json:"amenityGroups"`

	Facilities []string `json:"facilities"`

	RoomGroups      []rawRoomGroup `json:"room_groups"`
	RoomGroupsCamel []rawRoomGroup `json:"roomGroups"`
}

type rawImage struct {
	URL string `json:"url"`
}

type rawAmenityGroup struct {
	GroupName      string   `json:"group_name"`
	GroupNameCamel string   `json:"groupName"`
	Amenities      []string `json:"amenities"`
}

type rawRoomGroup struct {
	Name           string     `json:"name"`
	Images         []string   `json:"images"`
	ImagesExt      []rawImage `json:"images_ext"`
	ImagesExtCamel []rawImage `json:"imagesExt"`

	RoomAmenities      []string `json:"room_amenities"`
	RoomAmenitiesCamel []string `json:"roomAmenities"`
}

// NormalizeDoc parses a store document in either naming convention into the
// canonical HotelContent shape.
func NormalizeDoc(hid int64, doc json.RawMessage) (HotelContent, error) {
	var raw rawHotelDoc
	if err := json.Unmarshal(doc, &raw); err != nil {
		return HotelContent{}, err
	}

	hc := HotelContent{
		HID:        hid,
		Name:       raw.Name,
		Address:    raw.Address,
		StarRating: pickInt(raw.StarRating, raw.StarRatingCamel),
		Images:     pickImages(raw.Images, raw.ImagesExt, raw.ImagesExtCamel),
		Facilities: raw.Facilities,
	}
	if raw.HID != 0 {
		hc.HID = raw.HID
	}

	for _, g := range pickAmenityGroups(raw.AmenityGroups, raw.AmenityGroupsCamel) {
		hc.Amenities = append(hc.Amenities, g.Amenities...)
	}

	for _, rg := range pickRoomGroups(raw.RoomGroups, raw.RoomGroupsCamel) {
		hc.RoomGroups = append(hc.RoomGroups, RoomGroup{
			Name:      rg.Name,
			Images:    pickImages(rg.Images, rg.ImagesExt, rg.ImagesExtCamel),
			Amenities: pickStrings(rg.RoomAmenities, rg.RoomAmenitiesCamel),
		})
	}

	return hc, nil
}

func pickInt(snake, camel int) int {
	if snake != 0 {
		return snake
	}
	return camel
}

func pickStrings(snake, camel []string) []string {
	if len(snake) > 0 {
		return snake
	}
	return camel
}

func pickAmenityGroups(snake, camel []rawAmenityGroup) []rawAmenityGroup {
	if len(snake) > 0 {
		return snake
	}
	return camel
}

func pickRoomGroups(snake, camel []rawRoomGroup) []rawRoomGroup {
	if len(snake) > 0 {
		return snake
	}
	return camel
}

// pickImages prefers the extended image objects (both conventions) and
// falls back to the plain URL list.
func pickImages(plain []string, ext, extCamel []rawImage) []string {
	images := ext
	if len(images) == 0 {
		images = extCamel
	}
	if len(images) > 0 {
		out := make([]string, 0, len(images))
		for _, img := range images {
			if img.URL != "" {
				out = append(out, img.URL)
			}
		}
		return out
	}
	return plain
}
