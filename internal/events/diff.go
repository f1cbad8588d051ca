package events

import (
	"sort"

	"github.com/angelmondragon/eventcore/pkg/types"
)

// ChangedFields returns the sorted keys whose values differ between the two
// snapshots. A key present on only one side counts as changed.
func ChangedFields(previous, current map[string]any) []string {
	changed := []string{}
	for key, prev := range previous {
		cur, ok := current[key]
		if !ok || !types.JSONEqual(prev, cur) {
			changed = append(changed, key)
		}
	}
	for key := range current {
		if _, ok := previous[key]; !ok {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}
