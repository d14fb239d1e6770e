package similarity

import (
	"fmt"
	"sort"
	"strings"
)

// Metric compares two strings and returns a normalized similarity score in
// [0,1], where 1 means identical.
type Metric interface {
	Similarity(a, b string) float64
}

// MetricFunc adapts a plain function to the Metric interface.
type MetricFunc func(a, b string) float64

// Similarity implements Metric.
func (f MetricFunc) Similarity(a, b string) float64 {
	return f(a, b)
}

// Metric names accepted by ByName.
const (
	NameJaroWinkler = "jaro-winkler"
	NameLevenshtein = "levenshtein"
	NameGestalt     = "gestalt"
	NameSoundex     = "soundex"
)

var registry = map[string]Metric{
	NameJaroWinkler: MetricFunc(JaroWinkler),
	NameLevenshtein: MetricFunc(LevenshteinRatio),
	NameGestalt:     MetricFunc(Gestalt),
	NameSoundex:     MetricFunc(SoundexMatch),
}

// Default returns the Jaro-Winkler metric.
func Default() Metric {
	return registry[NameJaroWinkler]
}

// ByName resolves a metric from its configuration name. Lookup is
// case-insensitive; an empty name yields the default metric.
func ByName(name string) (Metric, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default(), nil
	}
	m, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown similarity metric %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return m, nil
}

// Names lists the registered metric names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
