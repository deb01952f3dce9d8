package pluto

// Vendor document shapes for GET /v2/channels. Every field the vendor may
// omit is a pointer or a slice so absence is distinguishable from empty.

type imageRef struct {
	Path *string `json:"path"`
}

type stitchedURL struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type stitched struct {
	URLs []stitchedURL `json:"urls"`
}

// channelRecord is one element of the /v2/channels array.
type channelRecord struct {
	ID            string     `json:"_id"`
	Slug          string     `json:"slug"`
	IsStitched    bool       `json:"isStitched"`
	Number        int        `json:"number"`
	Name          string     `json:"name"`
	Hash          string     `json:"hash"`
	Summary       *string    `json:"summary"`
	Category      string     `json:"category"`
	FeaturedImage *imageRef  `json:"featuredImage"`
	ColorLogoPNG  *imageRef  `json:"colorLogoPNG"`
	Stitched      *stitched  `json:"stitched"`
	Timelines     []timeline `json:"timelines"`
}

// timeline is one scheduled slot; only present when start/stop are requested.
type timeline struct {
	ID      string   `json:"_id"`
	Start   string   `json:"start"`
	Stop    string   `json:"stop"`
	Title   string   `json:"title"`
	Episode *episode `json:"episode"`
}

type episode struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Number      *int      `json:"number"`
	Description string    `json:"description"`
	Genre       string    `json:"genre"`
	SubGenre    string    `json:"subGenre"`
	Rating      string    `json:"rating"`
	FirstAired  *string   `json:"firstAired"`
	Poster      *imageRef `json:"poster"`
	Clip        *clip     `json:"clip"`
	Series      *series   `json:"series"`
}

type clip struct {
	OriginalReleaseDate *string `json:"originalReleaseDate"`
}

type series struct {
	ID   *string   `json:"_id"`
	Name string    `json:"name"`
	Type string    `json:"type"`
	Tile *imageRef `json:"tile"`
}

func (i *imageRef) path() *string {
	if i == nil {
		return nil
	}
	return i.Path
}
