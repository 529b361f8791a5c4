package sections

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Response is a learner's answer to one activity. Only the fields relevant
// to the activity type are read.
type Response struct {
	Item       string            `json:"item,omitempty"`
	Choice     string            `json:"choice,omitempty"`
	Choices    []string          `json:"choices,omitempty"`
	Placements map[string]string `json:"placements,omitempty"`
	Order      []string          `json:"order,omitempty"`
	Index      *int              `json:"index,omitempty"`
	Text       string            `json:"text,omitempty"`
}

// SelectedIndex returns the chosen index, or -1 when none was sent.
func (r Response) SelectedIndex() int {
	if r.Index == nil {
		return -1
	}
	return *r.Index
}

// ParseForm reads a Response from submitted form values.
//
//	item            activity ID (story interactions)
//	choice          single choice
//	choices         repeated, multi-select
//	place_<item>    drag-match target for an item
//	order           repeated, in order; or pos_<event>=<n> positions
//	index           cloze or evidence sentence index
//	text            free text
func ParseForm(form url.Values) Response {
	resp := Response{
		Item:    strings.TrimSpace(form.Get("item")),
		Choice:  form.Get("choice"),
		Choices: form["choices"],
		Order:   form["order"],
		Text:    form.Get("text"),
	}
	if v := form.Get("index"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			resp.Index = &n
		}
	}

	type pos struct {
		id string
		n  int
	}
	var positions []pos
	for key, vals := range form {
		if len(vals) == 0 {
			continue
		}
		switch {
		case strings.HasPrefix(key, "place_"):
			if resp.Placements == nil {
				resp.Placements = map[string]string{}
			}
			resp.Placements[strings.TrimPrefix(key, "place_")] = vals[0]
		case strings.HasPrefix(key, "pos_"):
			n, err := strconv.Atoi(vals[0])
			if err != nil {
				continue
			}
			positions = append(positions, pos{id: strings.TrimPrefix(key, "pos_"), n: n})
		}
	}
	if len(resp.Order) == 0 && len(positions) > 0 {
		sort.SliceStable(positions, func(i, j int) bool {
			if positions[i].n == positions[j].n {
				return positions[i].id < positions[j].id
			}
			return positions[i].n < positions[j].n
		})
		for _, p := range positions {
			resp.Order = append(resp.Order, p.id)
		}
	}
	return resp
}
