package media

import (
	"sort"
	"strconv"
)

// DedupKeys returns the identity keys of a record. With numbers set, season
// and episode numbers are appended so episodes of one show stay distinct.
func DedupKeys(r Record, numbers bool) []string {
	keys := r.IDs.Keys()
	if !numbers || (r.Media != Season && r.Media != Episode) {
		return keys
	}
	suffix := ":" + strconv.Itoa(r.Season)
	if r.Media == Episode {
		suffix += ":" + strconv.Itoa(r.Episode)
	}
	for i := range keys {
		keys[i] += suffix
	}
	return keys
}

// Group partitions records into sets sharing any id, transitively. Groups
// hold record indexes in input order and are ordered by their first member.
func Group(records []Record, numbers bool) [][]int {
	parent := make([]int, len(records))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	owner := make(map[string]int)
	for i, r := range records {
		for _, k := range DedupKeys(r, numbers) {
			if j, ok := owner[k]; ok {
				a, b := find(i), find(j)
				if a != b {
					if a < b {
						parent[b] = a
					} else {
						parent[a] = b
					}
				}
				continue
			}
			owner[k] = i
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := range records {
		root := find(i)
		if _, ok := groups[root]; !ok {
			roots = append(roots, root)
		}
		groups[root] = append(groups[root], i)
	}
	sort.Ints(roots)
	out := make([][]int, 0, len(roots))
	for _, root := range roots {
		out = append(out, groups[root])
	}
	return out
}

// Dedup collapses records that share any id. Groups are formed transitively,
// so no two returned records share an id. The output is ordered by the
// position of each group's first member.
func Dedup(records []Record, policy DedupPolicy, numbers bool) []Record {
	if policy == KeepAll || policy == "" || len(records) < 2 {
		return records
	}

	groups := Group(records, numbers)
	out := make([]Record, 0, len(groups))
	for _, members := range groups {
		switch policy {
		case KeepFirst:
			out = append(out, records[members[0]])
		case KeepLast:
			out = append(out, records[members[len(members)-1]])
		default:
			merged := records[members[0]]
			for _, m := range members[1:] {
				merged = Merge(merged, records[m])
			}
			out = append(out, merged)
		}
	}
	return out
}
