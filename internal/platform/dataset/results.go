package dataset

import (
	"fmt"
	"strings"
)

// Outcome is the binary result of a lab test.
type Outcome uint8

const (
	Negative Outcome = iota
	Positive
)

func (o Outcome) String() string {
	if o == Positive {
		return "positive"
	}
	return "negative"
}

// ParseOutcome decodes the raw encodings seen in lab extracts:
// "P"/"Positive"/"pos" and "N"/"Negative"/"neg", case-insensitive.
func ParseOutcome(raw string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "p", "pos", "positive":
		return Positive, nil
	case "n", "neg", "negative":
		return Negative, nil
	default:
		return Negative, fmt.Errorf("unrecognized test outcome %q", raw)
	}
}

// TestResults maps an identifier to the outcomes recorded for it. It is built
// once and then only read; a nil *TestResults behaves as an empty set.
type TestResults struct {
	byID map[string][]Outcome
}

// NewTestResults returns an empty result set.
func NewTestResults() *TestResults {
	return &TestResults{byID: make(map[string][]Outcome)}
}

// Add records an outcome for id. Null identifiers are ignored.
func (t *TestResults) Add(id Value, o Outcome) {
	if id.IsNull() {
		return
	}
	t.byID[id.Text()] = append(t.byID[id.Text()], o)
}

// Len returns the number of distinct tested identifiers.
func (t *TestResults) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byID)
}

// Tested reports whether id has at least one recorded outcome.
func (t *TestResults) Tested(id Value) bool {
	if t == nil || id.IsNull() {
		return false
	}
	_, ok := t.byID[id.Text()]
	return ok
}

// Positive reports whether id has at least one positive outcome.
func (t *TestResults) Positive(id Value) bool {
	if t == nil || id.IsNull() {
		return false
	}
	for _, o := range t.byID[id.Text()] {
		if o == Positive {
			return true
		}
	}
	return false
}

// TestResultsFromDataset reads identifiers from idCol and raw outcomes from
// outcomeCol. Rows with a null identifier are skipped; an undecodable outcome
// fails the whole load.
func TestResultsFromDataset(ds *Dataset, idCol, outcomeCol string) (*TestResults, error) {
	ids, err := ds.Column(idCol)
	if err != nil {
		return nil, fmt.Errorf("test results: %w", err)
	}
	outcomes, err := ds.Column(outcomeCol)
	if err != nil {
		return nil, fmt.Errorf("test results: %w", err)
	}

	results := NewTestResults()
	indices := ds.Indices()
	for i, id := range ids {
		if id.IsNull() {
			continue
		}
		o, err := ParseOutcome(outcomes[i].Text())
		if err != nil {
			return nil, fmt.Errorf("test results row %d: %w", indices[i], err)
		}
		results.Add(id, o)
	}
	return results, nil
}
