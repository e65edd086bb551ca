package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// ExpandGroups expands generative brace groups in an envlist entry.
// "py{27,38}-requests" expands to ["py27-requests", "py38-requests"];
// alternatives may be empty ("py38{,-coverage}"). Expansion is
// combinatorial in declaration order. Entries without groups are returned
// unchanged. An unterminated group is ErrMalformedName.
func ExpandGroups(entry string) ([]string, error) {
	open := strings.IndexByte(entry, '{')
	if open == -1 {
		return []string{entry}, nil
	}
	closing := strings.IndexByte(entry[open:], '}')
	if closing == -1 {
		err := zerr.With(ErrMalformedName, "entry", entry)
		return nil, zerr.With(err, "reason", "unterminated brace group")
	}
	closing += open

	prefix := entry[:open]
	alternatives := strings.Split(entry[open+1:closing], ",")
	rests, err := ExpandGroups(entry[closing+1:])
	if err != nil {
		return nil, err
	}

	expanded := make([]string, 0, len(alternatives)*len(rests))
	for _, alt := range alternatives {
		alt = strings.TrimSpace(alt)
		for _, rest := range rests {
			expanded = append(expanded, prefix+alt+rest)
		}
	}
	return expanded, nil
}

// ExpandEnvList expands every entry of a generative envlist and parses the
// results into environment names, preserving declaration order and
// dropping exact duplicates.
func ExpandEnvList(entries []string) ([]EnvName, error) {
	names := make([]EnvName, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		expanded, err := ExpandGroups(entry)
		if err != nil {
			return nil, err
		}
		for _, raw := range expanded {
			if _, ok := seen[raw]; ok {
				continue
			}
			seen[raw] = struct{}{}
			name, err := ParseEnvName(raw)
			if err != nil {
				return nil, zerr.With(err, "envlist_entry", entry)
			}
			names = append(names, name)
		}
	}
	return names, nil
}
