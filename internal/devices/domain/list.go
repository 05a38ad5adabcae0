package devices

import "sort"

// SortNewestFirst orders by created_at descending, ties broken by id descending.
func SortNewestFirst(list []Device) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}

// FilterByQuery keeps devices whose name matches query.
func FilterByQuery(list []Device, query string) []Device {
	result := make([]Device, 0, len(list))
	for _, d := range list {
		if d.MatchesQuery(query) {
			result = append(result, d)
		}
	}
	return result
}
