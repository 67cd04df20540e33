package aggregator

import (
	"sort"
	"strings"

	"github.com/ppiankov/dastgate/internal/models"
)

// DefaultSurfaceLimit is how many clusters a report highlights.
const DefaultSurfaceLimit = 5

// Cluster groups findings that share a location and severity
type Cluster struct {
	Location string
	Severity models.Severity
	Count    int
	scanners map[models.Source]bool
}

// Scanners returns the contributing scanner names in alphabetical order.
func (c Cluster) Scanners() []string {
	names := make([]string, 0, len(c.scanners))
	for s := range c.scanners {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

// Score is the ranking key: severity weight times count.
func (c Cluster) Score() int {
	return models.SeverityWeight(string(c.Severity)) * c.Count
}

// AttackSurface groups findings by (location, severity) and ranks the
// clusters by score, then count. Clusters that tie on both keep the order
// in which they were first seen.
func AttackSurface(findings []models.Finding) []Cluster {
	type key struct {
		location string
		severity models.Severity
	}

	index := make(map[key]int)
	var clusters []Cluster

	for _, f := range findings {
		location := f.Location
		if location == "" {
			location = models.UnknownLocation
		}
		sev := models.Severity(strings.ToUpper(string(f.Severity)))
		if sev == "" {
			sev = models.SeverityInfo
		}

		k := key{location: location, severity: sev}
		i, ok := index[k]
		if !ok {
			i = len(clusters)
			index[k] = i
			clusters = append(clusters, Cluster{
				Location: location,
				Severity: sev,
				scanners: make(map[models.Source]bool),
			})
		}
		clusters[i].Count++
		clusters[i].scanners[f.Origin()] = true
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		si, sj := clusters[i].Score(), clusters[j].Score()
		if si != sj {
			return si > sj
		}
		return clusters[i].Count > clusters[j].Count
	})

	return clusters
}

// TopClusters returns at most k clusters. k <= 0 uses DefaultSurfaceLimit.
func TopClusters(clusters []Cluster, k int) []Cluster {
	if k <= 0 {
		k = DefaultSurfaceLimit
	}
	if k >= len(clusters) {
		return clusters
	}
	return clusters[:k]
}
