package catalog

// DefaultAdjacent connects the built-in genres. A genre declared in the
// catalog file without an adjacent list borrows its edges from here.
// Fallback only follows edges, never jumps across the graph.
var DefaultAdjacent = map[string][]string{
	"ambient":       {"chillwave", "classical"},
	"chillwave":     {"ambient", "lofi", "classical", "synthwave"},
	"lofi":          {"chillwave", "jazz"},
	"jazz":          {"lofi", "bossa nova", "acoustic folk"},
	"bossa nova":    {"jazz"},
	"acoustic folk": {"jazz"},
	"classical":     {"ambient", "chillwave", "cinematic"},
	"cinematic":     {"classical"},
	"synthwave":     {"chillwave", "electronic"},
	"electronic":    {"synthwave"},
}

// genreAdjectives gives each genre a pool of descriptors for display names.
var genreAdjectives = map[string][]string{
	"ambient":       {"floating", "weightless", "still", "glacial", "infinite"},
	"chillwave":     {"hazy", "sunlit", "faded", "dreamy", "pastel"},
	"lofi":          {"rainy", "dusty", "warm", "mellow", "quiet"},
	"jazz":          {"smoky", "midnight", "velvet", "golden", "swinging"},
	"bossa nova":    {"coastal", "breezy", "gentle", "tropical", "swaying"},
	"acoustic folk": {"wooded", "fireside", "open", "rustic", "earthen"},
	"classical":     {"delicate", "flowing", "stately", "luminous", "grand"},
	"cinematic":     {"epic", "soaring", "vast", "rising", "thundering"},
	"synthwave":     {"neon", "chrome", "pulsing", "electric", "retro"},
	"electronic":    {"radiant", "surging", "prismatic", "kinetic", "orbital"},
	"rain":          {"soft", "steady", "distant", "heavy", "gentle"},
	"ocean":         {"rolling", "tidal", "deep", "calm", "moonlit"},
	"forest":        {"mossy", "green", "hushed", "morning", "ancient"},
}

// DisplayName returns a deterministic "<adjective> <genre>" name for an
// untitled track.
func DisplayName(genre, trackID string) string {
	if genre == "" || trackID == "" {
		return ""
	}

	adjs := genreAdjectives[genre]
	if len(adjs) == 0 {
		return genre + " session"
	}

	var h int
	for i := 0; i < len(trackID) && i < 8; i++ {
		h = h*31 + int(trackID[i])
	}
	if h < 0 {
		h = -h
	}

	return adjs[h%len(adjs)] + " " + genre
}
