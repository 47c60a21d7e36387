package generation

import "fmt"

// Room and theme catalogs. Clients may send either the canonical English
// name or the localized display name; both normalize to canonical before
// prompt construction.

var themeNames = map[string]string{
	"Modern":       "Modern",
	"Minimalist":   "Minimalis",
	"Professional": "Profesional",
	"Tropical":     "Tropis",
	"Industrial":   "Industrial",
	"Scandinavian": "Skandinavia",
	"Classic":      "Klasik",
	"Contemporary": "Kontemporer",
	"Japandi":      "Japandi",
	"Bohemian":     "Bohemian",
	"Rustic":       "Rustic",
	"Art Deco":     "Art Deco",
}

var roomNames = map[string]string{
	"Living Room":  "Ruang Tamu",
	"Family Room":  "Ruang Keluarga",
	"Dining Room":  "Ruang Makan",
	"Kitchen":      "Dapur",
	"Bedroom":      "Kamar Tidur",
	"Bathroom":     "Kamar Mandi",
	"Study Room":   "Ruang Belajar",
	"Office":       "Kantor",
	"Prayer Room":  "Musholla",
	"Terrace":      "Teras",
	"Gaming Room":  "Ruang Gaming",
	"Laundry Room": "Ruang Laundry",
	"Library":      "Perpustakaan",
	"Balcony":      "Balkon",
}

// NormalizeTheme maps a canonical or localized theme name to canonical.
// Unknown input falls back to Modern.
func NormalizeTheme(s string) string {
	if _, ok := themeNames[s]; ok {
		return s
	}
	for en, local := range themeNames {
		if local == s {
			return en
		}
	}
	return "Modern"
}

// NormalizeRoom maps a canonical or localized room name to canonical.
// Unknown input falls back to Living Room.
func NormalizeRoom(s string) string {
	if _, ok := roomNames[s]; ok {
		return s
	}
	for en, local := range roomNames {
		if local == s {
			return en
		}
	}
	return "Living Room"
}

// Positive and negative prompt guidance sent with every job.
const (
	assistPrompt   = "best quality, extremely detailed, photo from Pinterest, interior, cinematic photo, ultra-detailed, ultra-realistic, award-winning, interior design, natural lighting"
	negativePrompt = "longbody, lowres, bad anatomy, bad hands, missing fingers, extra digit, fewer digits, cropped, worst quality, low quality"
)

// BuildPrompt renders the deterministic prompt for a theme+room pair.
// Gaming rooms get their own template: the generic one reads as a generic
// lounge and loses the setup.
func BuildPrompt(theme, room string) string {
	if room == "Gaming Room" {
		return fmt.Sprintf("%s style gaming room with a gaming desk, dual monitors, LED accent lighting and an ergonomic gaming chair", theme)
	}
	return fmt.Sprintf("%s style %s", theme, room)
}
