package vfs

import (
	"strconv"
	"strings"
)

// uniqueName returns name trimmed, suffixed with " 2", " 3", ... until it no
// longer collides (case-insensitively) with any record other than excludeID.
// An empty result means the name was blank.
func uniqueName(name string, rows []FileModel, excludeID string) string {
	base := strings.TrimSpace(name)
	if base == "" {
		return ""
	}
	taken := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		taken[strings.ToLower(r.Name)] = struct{}{}
	}
	if _, ok := taken[strings.ToLower(base)]; !ok {
		return base
	}
	for i := 2; ; i++ {
		candidate := base + " " + strconv.Itoa(i)
		if _, ok := taken[strings.ToLower(candidate)]; !ok {
			return candidate
		}
	}
}
