package device

import (
	"strconv"
	"strings"
)

type inputCandidate struct {
	Index            int
	Name             string
	MaxInputChannels int
}

// matchInput resolves a device id to a position in candidates. The id is
// either a device index or a case-insensitive name fragment; exact names win.
func matchInput(candidates []inputCandidate, id string) int {
	id = strings.TrimSpace(id)
	if idx, err := strconv.Atoi(id); err == nil {
		for i, c := range candidates {
			if c.Index == idx && c.MaxInputChannels > 0 {
				return i
			}
		}
		return -1
	}
	lower := strings.ToLower(id)
	partial := -1
	for i, c := range candidates {
		if c.MaxInputChannels <= 0 {
			continue
		}
		name := strings.ToLower(c.Name)
		if name == lower {
			return i
		}
		if partial < 0 && strings.Contains(name, lower) {
			partial = i
		}
	}
	return partial
}
