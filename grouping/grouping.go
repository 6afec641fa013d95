// Package grouping partitions thermography image filenames into composite
// groups. Each physical sample is measured at three excitation frequencies,
// producing three grayscale files whose names differ only in the frequency
// token. Filenames must follow the naming contract
//
//	<prefix> <digits>[_digits]Hz <suffix>.<ext>
//
// with single spaces around the frequency token. Stripping the token leaves
// prefix and suffix separated by a double space, which is the group key.
package grouping

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"thermopipe/types"
)

// GroupSize is the required number of frequency measurements per sample.
const GroupSize = 3

var freqRe = regexp.MustCompile(`[0-9]+_?[0-9]*Hz`)

// GroupSizeError reports a composite group whose member count is not
// exactly GroupSize. This is a data integrity failure: the offending paths
// are enumerated and the group is never silently dropped or padded.
type GroupSizeError struct {
	Key   string
	Paths []string
}

func (e *GroupSizeError) Error() string {
	return fmt.Sprintf("composite group %q has %d members, expected %d: %s",
		e.Key, len(e.Paths), GroupSize, strings.Join(e.Paths, ", "))
}

// ContractError reports a filename that does not follow the naming contract.
type ContractError struct {
	Path   string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("filename %q violates the naming contract: %s", e.Path, e.Reason)
}

// ParseRef extracts the identifier fields from one image path.
func ParseRef(path string) (types.ImageRef, error) {
	base := filepath.Base(path)

	token := freqRe.FindString(base)
	if token == "" {
		return types.ImageRef{}, &ContractError{Path: path, Reason: "no frequency token (<digits>[_digits]Hz)"}
	}

	key := freqRe.ReplaceAllString(base, "")
	prefix, suffix, err := SplitKey(key)
	if err != nil {
		return types.ImageRef{}, &ContractError{Path: path, Reason: err.Error()}
	}

	return types.ImageRef{
		Path:      path,
		Prefix:    prefix,
		Suffix:    suffix,
		FreqToken: token,
		Frequency: FrequencyValue(token),
		GroupKey:  key,
	}, nil
}

// SplitKey splits a group key on the double-space separator left behind when
// the frequency token is removed.
func SplitKey(key string) (prefix, suffix string, err error) {
	parts := strings.SplitN(key, "  ", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("no double-space separator in group key %q", key)
	}
	return parts[0], parts[1], nil
}

// FrequencyValue converts a frequency token to its numeric value in Hz.
// The underscore acts as a decimal separator, e.g. "0_5Hz" is 0.5.
func FrequencyValue(token string) float64 {
	s := strings.TrimSuffix(token, "Hz")
	s = strings.ReplaceAll(s, "_", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// CompositeName converts a group key to the composite output filename by
// collapsing the double-space separator to a single space.
func CompositeName(key string) string {
	return strings.Replace(key, "  ", " ", 1)
}

// Partition groups the given image paths into composite groups of exactly
// GroupSize members each. Members within a group are ordered by frequency
// value ascending so that downstream channel assignment is deterministic.
// Groups are returned sorted by key. Any group with a member count other
// than GroupSize aborts the partition with a GroupSizeError naming it.
func Partition(paths []string) ([]types.CompositeGroup, error) {
	refs := make([]types.ImageRef, 0, len(paths))
	for _, p := range paths {
		ref, err := ParseRef(p)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	// Distinct group keys, kept sorted for stable output.
	seen := make(map[string]bool)
	keys := make([]string, 0)
	for _, r := range refs {
		if !seen[r.GroupKey] {
			seen[r.GroupKey] = true
			keys = append(keys, r.GroupKey)
		}
	}
	sort.Strings(keys)

	groups := make([]types.CompositeGroup, 0, len(keys))
	for _, key := range keys {
		prefix, suffix, err := SplitKey(key)
		if err != nil {
			return nil, &ContractError{Path: key, Reason: err.Error()}
		}

		// Select members whose filename carries both identifier fragments.
		members := make([]types.ImageRef, 0, GroupSize)
		for _, r := range refs {
			base := filepath.Base(r.Path)
			if strings.Contains(base, prefix) && strings.Contains(base, suffix) {
				members = append(members, r)
			}
		}

		if len(members) != GroupSize {
			return nil, &GroupSizeError{Key: key, Paths: refPaths(members)}
		}

		sort.Slice(members, func(i, j int) bool {
			return members[i].Frequency < members[j].Frequency
		})

		groups = append(groups, types.CompositeGroup{Key: key, Members: members})
	}

	return groups, nil
}

func refPaths(refs []types.ImageRef) []string {
	paths := make([]string, len(refs))
	for i, r := range refs {
		paths[i] = r.Path
	}
	return paths
}
