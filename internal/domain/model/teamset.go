package model

import (
	"encoding/json"
	"slices"
	"strings"
)

// TeamSet is a sorted set of distinct, non-empty team names.
type TeamSet []string

// NewTeamSet builds a set from names, dropping blanks and duplicates.
// Names are compared exactly; no case folding happens.
func NewTeamSet(teams ...string) TeamSet {
	out := make(TeamSet, 0, len(teams))
	for _, t := range teams {
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Contains reports whether team is in the set.
func (s TeamSet) Contains(team string) bool {
	_, ok := slices.BinarySearch(s, team)
	return ok
}

// IntersectCount returns |s ∩ other|.
func (s TeamSet) IntersectCount(other TeamSet) int {
	n := 0
	for _, t := range s {
		if other.Contains(t) {
			n++
		}
	}
	return n
}

// Single returns the only member of a one-element set, or "".
func (s TeamSet) Single() string {
	if len(s) != 1 {
		return ""
	}
	return s[0]
}

// Empty reports whether the set has no members.
func (s TeamSet) Empty() bool { return len(s) == 0 }

// MarshalJSON encodes a nil set as [] rather than null.
func (s TeamSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// EncodeTeamList renders teams as the JSON text stored in SQL columns.
func EncodeTeamList(s TeamSet) string {
	b, _ := s.MarshalJSON()
	return string(b)
}

// DecodeTeamSet parses a stored JSON list. Blank input is an empty set.
// ok is false when the payload is not a JSON list of strings.
func DecodeTeamSet(raw string) (set TeamSet, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return TeamSet{}, true
	}
	var teams []string
	if err := json.Unmarshal([]byte(raw), &teams); err != nil {
		return TeamSet{}, false
	}
	return NewTeamSet(teams...), true
}

// DecodeOutcome parses a stored outcome value. Champions are stored as a JSON
// string, sets as JSON lists; anything unparseable is treated as unset.
func DecodeOutcome(key OutcomeKey, raw string) TeamSet {
	if key == OutcomeChampion {
		var champ string
		if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &champ); err != nil {
			// Legacy rows kept the bare name.
			champ = strings.TrimSpace(raw)
			if strings.HasPrefix(champ, "[") || strings.HasPrefix(champ, "{") || champ == "null" {
				return TeamSet{}
			}
		}
		return NewTeamSet(champ)
	}
	set, ok := DecodeTeamSet(raw)
	if !ok {
		return TeamSet{}
	}
	return set
}

// EncodeOutcome renders an outcome value for storage.
func EncodeOutcome(key OutcomeKey, set TeamSet) string {
	if key == OutcomeChampion {
		b, _ := json.Marshal(set.Single())
		return string(b)
	}
	return EncodeTeamList(set)
}

// DecodeMetaPrediction turns stored columns into a validated prediction.
// A payload that fails to parse degrades to no picks at all; a set of the
// wrong size degrades to an empty set.
func DecodeMetaPrediction(email, playoffsRaw, finalistsRaw, champion string) MetaPrediction {
	mp := MetaPrediction{Email: email, PlayoffTeams: TeamSet{}, Finalists: TeamSet{}}

	playoffs, ok1 := DecodeTeamSet(playoffsRaw)
	finalists, ok2 := DecodeTeamSet(finalistsRaw)
	if !ok1 || !ok2 {
		return mp
	}
	if len(playoffs) == PlayoffTeamCount {
		mp.PlayoffTeams = playoffs
	}
	if len(finalists) == FinalistCount {
		mp.Finalists = finalists
	}
	mp.Champion = strings.TrimSpace(champion)
	return mp
}
