package archive

import "sort"

func sortGroups(groups []GizmoGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i].Titles) != len(groups[j].Titles) {
			return len(groups[i].Titles) > len(groups[j].Titles)
		}
		return groups[i].GizmoID < groups[j].GizmoID
	})
}
