package winapi

import (
	"sort"
	"strings"
	"time"
)

// CharacterWindow is one client window found during enumeration.
type CharacterWindow struct {
	// Title is the full window title, e.g. "EVE - Pilot Alpha".
	Title string
	// Character is the name extracted from the title, empty for clients
	// still on the login screen.
	Character string
	Handle    uintptr
	PID       uint32
	// Launched is the owning process start time, used for stable ordering
	// when several clients share a title.
	Launched time.Time
}

// CharacterFromTitle extracts the character name from a client window title.
// Client titles follow "<game> - <character>"; a title without the separator
// belongs to a client that has no character logged in yet.
func CharacterFromTitle(title string) string {
	title = strings.TrimSpace(title)
	if i := strings.Index(title, " - "); i >= 0 {
		return strings.TrimSpace(title[i+3:])
	}
	return ""
}

// SortWindows orders windows by process launch time, oldest first, with the
// title as tiebreaker. Launch order stays stable while titles change as
// characters log in and out.
func SortWindows(windows []CharacterWindow) {
	sort.SliceStable(windows, func(i, j int) bool {
		if !windows[i].Launched.Equal(windows[j].Launched) {
			return windows[i].Launched.Before(windows[j].Launched)
		}
		return windows[i].Title < windows[j].Title
	})
}

// normalizeProcessNames lowercases and trims the configured process list,
// dropping empties.
func normalizeProcessNames(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}
