// Package playlist renders channel lists as extended M3U playlists.
package playlist

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/voyagen/plutotv/internal/models"
)

// ContentType is the media type served for M3U playlists.
const ContentType = "audio/x-mpegurl"

// Options tune the rendered playlist.
type Options struct {
	// GuideURL is advertised as url-tvg in the header when set.
	GuideURL string
	// Headers are written as #EXTVLCOPT lines after every entry.
	Headers models.PlaybackHeaders
}

var (
	attrEscaper = strings.NewReplacer(`"`, "'", "\r", " ", "\n", " ")
	lineEscaper = strings.NewReplacer("\r", " ", "\n", " ")
)

// WriteM3U writes channels in order as an extended M3U playlist.
func WriteM3U(w io.Writer, channels []models.Channel, opts Options) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("#EXTM3U")
	if opts.GuideURL != "" {
		fmt.Fprintf(bw, ` url-tvg="%s"`, attrEscaper.Replace(opts.GuideURL))
	}
	bw.WriteByte('\n')

	for _, ch := range channels {
		bw.WriteString("#EXTINF:-1")
		attr(bw, "tvg-id", ch.ID)
		attr(bw, "tvg-chno", strconv.Itoa(ch.Number))
		attr(bw, "tvg-name", ch.Name)
		if ch.Logo != nil {
			attr(bw, "tvg-logo", *ch.Logo)
		}
		if ch.Category != "" {
			attr(bw, "group-title", ch.Category)
		}
		bw.WriteByte(',')
		bw.WriteString(lineEscaper.Replace(ch.Name))
		bw.WriteByte('\n')

		h := opts.Headers
		if h.UserAgent != "" {
			fmt.Fprintf(bw, "#EXTVLCOPT:http-user-agent=%s\n", h.UserAgent)
		}
		if h.Referrer != "" {
			fmt.Fprintf(bw, "#EXTVLCOPT:http-referrer=%s\n", h.Referrer)
		}
		if h.Origin != "" {
			fmt.Fprintf(bw, "#EXTVLCOPT:http-origin=%s\n", h.Origin)
		}

		bw.WriteString(ch.StreamURL)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func attr(bw *bufio.Writer, name, value string) {
	fmt.Fprintf(bw, ` %s="%s"`, name, attrEscaper.Replace(value))
}
