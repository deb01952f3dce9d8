package store

import (
	"fmt"
	"strings"
)

// where accumulates AND-ed conditions with numbered placeholders.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT and OFFSET placeholders and returns the full args.
func (w *where) page(limit, offset int) (string, []any) {
	n := len(w.args)
	args := append(append([]any(nil), w.args...), clampLimit(limit), max(offset, 0))
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), args
}

func channelWhere(f ChannelFilter) *where {
	w := &where{}
	if f.Provider != "" {
		w.add("provider = ?", f.Provider)
	}
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	if f.Search != "" {
		w.add("name ILIKE ?", "%"+f.Search+"%")
	}
	return w
}

func airingWhere(f AiringFilter) *where {
	w := &where{}
	if f.Provider != "" {
		w.add("source = ?", f.Provider)
	}
	if f.ChannelID != "" {
		w.add("channel_id = ?", f.ChannelID)
	}
	if f.Category != "" {
		w.add("? = ANY(categories)", f.Category)
	}
	if f.From != nil {
		w.add("stop_time > ?", *f.From)
	}
	if f.To != nil {
		w.add("start_time < ?", *f.To)
	}
	return w
}
