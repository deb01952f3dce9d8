package server

import (
	"fmt"
	"iter"
	"log"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/voyagen/plutotv/internal/cache"
	"github.com/voyagen/plutotv/internal/models"
	"github.com/voyagen/plutotv/internal/playlist"
	"github.com/voyagen/plutotv/internal/source"
)

// ndjsonContentType is used for the streamed guide.
const ndjsonContentType = "application/x-ndjson"

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	stored, err := s.store.ListProviders(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	byID := make(map[string]models.ProviderStatus, len(stored))
	for _, st := range stored {
		byID[st.ID] = st
	}

	out := make([]models.ProviderStatus, 0, len(stored))
	for _, src := range s.sources.List() {
		st := byID[src.Info().ID]
		st.ProviderInfo = src.Info()
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, out)
}

// lookup resolves the {provider} path value, writing a 404 when unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (source.ChannelSource, bool) {
	src, err := s.sources.Lookup(r.PathValue("provider"))
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return nil, false
	}
	return src, true
}

func (s *Server) handleProviderChannels(w http.ResponseWriter, r *http.Request) {
	src, ok := s.lookup(w, r)
	if !ok {
		return
	}
	channels, err := src.Channels(r.Context(), r.URL.Query().Get("device"))
	if err != nil {
		writeErr(w, statusFor(err), fmt.Errorf("channels: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

// guideLine is one NDJSON line of the streamed guide.
type guideLine struct {
	Channel models.Channel  `json:"channel"`
	Airings []models.Airing `json:"airings"`
}

// guideErrorLine terminates a guide stream that failed midway.
type guideErrorLine struct {
	Error string `json:"error"`
}

// handleProviderGuide streams the live guide as NDJSON, one line per channel
// with its airings. Entries are written as they are pulled from the
// provider; a failure after the first line ends the stream with an
// {"error": ...} line, preceded by any airings the failing channel had
// already yielded.
func (s *Server) handleProviderGuide(w http.ResponseWriter, r *http.Request) {
	src, ok := s.lookup(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	start, err := queryUnix(q, "start")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	var seconds int
	if err := queryInt(q, "duration", &seconds); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if seconds < 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid duration: %d", seconds))
		return
	}
	var from time.Time
	if start != nil {
		from = *start
	}

	guide := src.Guide(r.Context(), from, time.Duration(seconds)*time.Second, q.Get("device"))
	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)

	started := false
	begin := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", ndjsonContentType)
		w.Header().Set("X-Guide-Start", guide.Start.Format(time.RFC3339))
		w.Header().Set("X-Guide-Stop", guide.Stop.Format(time.RFC3339))
		w.WriteHeader(http.StatusOK)
	}
	fail := func(err error) {
		if !started {
			writeErr(w, statusFor(err), fmt.Errorf("guide: %w", err))
			return
		}
		log.Printf("guide stream[%s]: %v", src.Info().ID, err)
		_ = enc.Encode(guideErrorLine{Error: err.Error()})
	}

	lines := 0
	defer func() { note(r, "lines", lines) }()
	for entry, err := range guide.Entries {
		if err != nil {
			fail(err)
			return
		}
		// Airings pulled before a failure are still valid and go out
		// ahead of the error line.
		airings, pullErr := collect(entry.Airings)
		if pullErr == nil || len(airings) > 0 {
			begin()
			if err := enc.Encode(guideLine{Channel: entry.Channel, Airings: airings}); err != nil {
				log.Printf("guide stream[%s]: %v", src.Info().ID, err)
				return
			}
			lines++
			_ = rc.Flush()
		}
		if pullErr != nil {
			fail(fmt.Errorf("channel %s: %w", entry.Channel.ID, pullErr))
			return
		}
	}
	begin()
}

// collect drains one channel's airings. On error it returns the airings
// pulled so far along with it.
func collect(seq iter.Seq2[models.Airing, error]) ([]models.Airing, error) {
	out := []models.Airing{}
	for a, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Server) handleProviderPlaylist(w http.ResponseWriter, r *http.Request) {
	src, ok := s.lookup(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	channels, err := src.Channels(r.Context(), q.Get("device"))
	if err != nil {
		writeErr(w, statusFor(err), fmt.Errorf("playlist: %w", err))
		return
	}
	opts := playlist.Options{
		GuideURL: q.Get("epg_url"),
		Headers: models.PlaybackHeaders{
			UserAgent: q.Get("user_agent"),
			Referrer:  q.Get("referrer"),
			Origin:    q.Get("origin"),
		},
	}
	w.Header().Set("Content-Type", playlist.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.m3u"`, src.Info().ID))
	w.WriteHeader(http.StatusOK)
	if err := playlist.WriteM3U(w, channels.List(), opts); err != nil {
		log.Printf("playlist: %v", err)
	}
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	q := r.URL.Query()
	kind := q.Get("kind")
	if kind == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("kind is required (channels or guide)"))
		return
	}
	job := cache.SyncJob{Provider: provider, Kind: kind, EnqueuedAt: time.Now()}
	if start, err := queryUnix(q, "start"); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	} else if start != nil {
		job.Start = start.Unix()
	}
	var seconds int
	if err := queryInt(q, "duration", &seconds); err != nil || seconds < 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid duration: %s", q.Get("duration")))
		return
	}
	job.Duration = int64(seconds)

	result, queued, err := s.syncer.Submit(r.Context(), job)
	if err != nil {
		writeErr(w, statusFor(err), fmt.Errorf("sync %s/%s: %w", provider, kind, err))
		return
	}
	if queued {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"provider": provider,
			"kind":     kind,
			"queued":   true,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
