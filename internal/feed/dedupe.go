package feed

import "strings"

// Dedupe collapses a snapshot batch to one snapshot per callsign,
// preserving insertion order. The first occurrence of a callsign wins.
// Snapshots with an empty callsign, or a callsign starting with one of
// the configured non-aircraft telemetry prefixes, are discarded.
func Dedupe(batch []Snapshot, ignorePrefixes []string) []Snapshot {
	seen := make(map[string]bool, len(batch))
	result := make([]Snapshot, 0, len(batch))

	for _, snap := range batch {
		if snap.Callsign == "" {
			continue
		}
		if hasIgnoredPrefix(snap.Callsign, ignorePrefixes) {
			continue
		}
		if seen[snap.Callsign] {
			continue
		}
		seen[snap.Callsign] = true
		result = append(result, snap)
	}

	return result
}

func hasIgnoredPrefix(callsign string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(callsign, p) {
			return true
		}
	}
	return false
}
