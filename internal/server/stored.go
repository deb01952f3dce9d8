package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/voyagen/plutotv/internal/models"
	"github.com/voyagen/plutotv/internal/store"
)

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ChannelFilter{
		Provider: q.Get("provider"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}
	if err := queryInt(q, "limit", &filter.Limit); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := queryInt(q, "offset", &filter.Offset); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	// Apply defaults so the response reflects actual values used.
	filter.Limit = clampLimit(filter.Limit)
	filter.Offset = max(filter.Offset, 0)

	channels, total, err := s.store.ListChannels(r.Context(), filter)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if channels == nil {
		channels = []models.Channel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": channels,
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	provider, id := r.PathValue("provider"), r.PathValue("id")
	ch, err := s.store.GetChannel(r.Context(), provider, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, fmt.Errorf("channel %s/%s not found", provider, id))
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context(), r.URL.Query().Get("provider"))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleListAirings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AiringFilter{
		Provider:  q.Get("provider"),
		ChannelID: q.Get("channel_id"),
		Category:  q.Get("category"),
	}
	var err error
	if filter.From, err = queryUnix(q, "from"); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if filter.To, err = queryUnix(q, "to"); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("to must be after from"))
		return
	}
	if err := queryInt(q, "limit", &filter.Limit); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := queryInt(q, "offset", &filter.Offset); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	filter.Limit = clampLimit(filter.Limit)
	filter.Offset = max(filter.Offset, 0)

	airings, total, err := s.store.ListAirings(r.Context(), filter)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if airings == nil {
		airings = []models.Airing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"airings": airings,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}
