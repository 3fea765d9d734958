package catalog

import "streamclean/internal/api"

// applyLanguage rebuilds a selection in stream order. Streams in lang are
// forced to selected; all other streams keep their current state.
func applyLanguage(streams []api.Stream, current []int, lang string, selected bool) []int {
	matched := false
	for _, s := range streams {
		if s.Language == lang {
			matched = true
			break
		}
	}
	if !matched {
		return current
	}
	out := make([]int, 0, len(streams))
	for _, s := range streams {
		keep := containsID(current, s.ID)
		if s.Language == lang {
			keep = selected
		}
		if keep {
			out = append(out, s.ID)
		}
	}
	return out
}

// applyStream sets one stream id and returns the selection in stream order.
func applyStream(streams []api.Stream, current []int, id int, selected bool) []int {
	out := make([]int, 0, len(streams))
	for _, s := range streams {
		keep := containsID(current, s.ID)
		if s.ID == id {
			keep = selected
		}
		if keep {
			out = append(out, s.ID)
		}
	}
	return out
}

func hasStream(streams []api.Stream, id int) bool {
	for _, s := range streams {
		if s.ID == id {
			return true
		}
	}
	return false
}
