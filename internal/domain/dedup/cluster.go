package dedup

import (
	"sort"

	"github.com/ehr/dedup/internal/platform/dataset"
)

// BuildCluster returns every row whose field value equals value by normalized
// comparison. Null values and unknown fields yield an empty cluster.
func BuildCluster(ds *dataset.Dataset, field string, value dataset.Value) Cluster {
	if value.IsNull() {
		return nil
	}
	return groupRows(ds, field)[value.Text()]
}

// groupRows partitions the rows with a non-null field value by normalized
// value in a single scan.
func groupRows(ds *dataset.Dataset, field string) map[string]Cluster {
	groups := make(map[string]Cluster)
	values, err := ds.Column(field)
	if err != nil {
		return groups
	}
	for i, idx := range ds.Indices() {
		v := values[i]
		if v.IsNull() {
			continue
		}
		groups[v.Text()] = append(groups[v.Text()], idx)
	}
	for _, c := range groups {
		sort.Ints(c)
	}
	return groups
}
