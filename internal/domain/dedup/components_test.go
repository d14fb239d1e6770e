package dedup

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ehr/dedup/internal/platform/dataset"
	"github.com/ehr/dedup/internal/platform/similarity"
)

// rows builds a dataset from columns and positional string rows. An empty
// string cell becomes null.
func rows(t *testing.T, columns []string, data ...[]string) *dataset.Dataset {
	t.Helper()
	vals := make([][]dataset.Value, len(data))
	for i, r := range data {
		vals[i] = make([]dataset.Value, len(r))
		for j, cell := range r {
			if cell == "" {
				vals[i][j] = dataset.Null()
			} else {
				vals[i][j] = dataset.String(cell)
			}
		}
	}
	ds, err := dataset.FromRows(columns, vals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ds
}

func testResults(t *testing.T, pairs ...string) *dataset.TestResults {
	t.Helper()
	res := dataset.NewTestResults()
	for i := 0; i+1 < len(pairs); i += 2 {
		o, err := dataset.ParseOutcome(pairs[i+1])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		res.Add(dataset.String(pairs[i]), o)
	}
	return res
}

var personCols = []string{"patient_id", "given_name", "surname", "state"}

// =========== ClusterBuilder Tests ===========

func TestBuildCluster(t *testing.T) {
	ds := rows(t, personCols,
		[]string{"p1", "josjua", "whiite", "nsw"},
		[]string{"p2", "joshua", "white", "nsw"},
		[]string{"p3", "vanessa", "bristow", "qld"},
		[]string{"p4", "thierry", "ekers", "nsw"},
	)

	got := BuildCluster(ds, "state", dataset.String("nsw"))
	if diff := cmp.Diff(Cluster{0, 1, 3}, got); diff != "" {
		t.Errorf("cluster mismatch (-want +got):\n%s", diff)
	}

	if got := BuildCluster(ds, "state", dataset.String("NSW")); len(got) != 0 {
		t.Errorf("expected no fuzzy clustering, got %v", got)
	}
	if got := BuildCluster(ds, "state", dataset.Null()); len(got) != 0 {
		t.Errorf("expected empty cluster for null, got %v", got)
	}
	if got := BuildCluster(ds, "missing", dataset.String("nsw")); len(got) != 0 {
		t.Errorf("expected empty cluster for unknown field, got %v", got)
	}
}

func TestBuildCluster_NumericNormalization(t *testing.T) {
	ds, err := dataset.FromRows([]string{"postcode"}, [][]dataset.Value{
		{dataset.Number(2000)},
		{dataset.String("2000")},
		{dataset.Number(2001)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := BuildCluster(ds, "postcode", dataset.Number(2000))
	if diff := cmp.Diff(Cluster{0, 1}, got); diff != "" {
		t.Errorf("cluster mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildCluster_SortsByIndex(t *testing.T) {
	ds, err := dataset.New([]string{"state"}, []dataset.Record{
		{Index: 9, Values: map[string]dataset.Value{"state": dataset.String("nsw")}},
		{Index: 2, Values: map[string]dataset.Value{"state": dataset.String("nsw")}},
		{Index: 5, Values: map[string]dataset.Value{"state": dataset.String("nsw")}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := BuildCluster(ds, "state", dataset.String("nsw"))
	if diff := cmp.Diff(Cluster{2, 5, 9}, got); diff != "" {
		t.Errorf("cluster mismatch (-want +got):\n%s", diff)
	}
}

// =========== ReferenceSelector Tests ===========

func TestSelectReference(t *testing.T) {
	ds := rows(t, personCols,
		[]string{"p1", "anna", "lee", "nsw"},
		[]string{"p2", "anna", "lee", "nsw"},
		[]string{"p3", "anna", "lee", "nsw"},
		[]string{"", "anna", "lee", "nsw"},
	)
	cluster := Cluster{0, 1, 2, 3}

	tests := []struct {
		name    string
		results *dataset.TestResults
		wantRef int
		wantRes Resolution
	}{
		{"no results", nil, 0, ResolutionUntested},
		{"none tested", testResults(t, "zz", "P"), 0, ResolutionUntested},
		{"single tested", testResults(t, "p3", "N"), 2, ResolutionSingleTested},
		{"positive preferred", testResults(t, "p2", "N", "p3", "P"), 2, ResolutionPositive},
		{"first positive wins", testResults(t, "p3", "P", "p2", "P"), 1, ResolutionPositive},
		{"positive among several outcomes", testResults(t, "p2", "N", "p3", "N", "p3", "P"), 2, ResolutionPositive},
		{"ambiguous uses first tested", testResults(t, "p3", "N", "p2", "N"), 1, ResolutionAmbiguous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, res := SelectReference(cluster, ds, "patient_id", tt.results)
			if ref != tt.wantRef {
				t.Errorf("expected reference %d, got %d", tt.wantRef, ref)
			}
			if res != tt.wantRes {
				t.Errorf("expected resolution %s, got %s", tt.wantRes, res)
			}
		})
	}
}

func TestSelectReference_MissingIDColumn(t *testing.T) {
	ds := rows(t, []string{"given_name"}, []string{"anna"}, []string{"anna"})
	ref, res := SelectReference(Cluster{0, 1}, ds, "patient_id", testResults(t, "anna", "P"))
	if ref != 0 || res != ResolutionUntested {
		t.Errorf("expected untested first row, got %d (%s)", ref, res)
	}
}

// =========== FieldMatcher Tests ===========

func TestMatch(t *testing.T) {
	ds := rows(t, personCols,
		[]string{"p1", "josjua", "whiite", "nsw"},
		[]string{"p2", "Joshua", "white", "nsw"},
		[]string{"p4", "thierry", "", "nsw"},
	)
	policy := NewFieldPolicy(ds.Columns(), []string{"given_name", "surname"}, similarity.Default(), 0.9)

	got := Match(ds, Cluster{0, 1, 2}, 0, policy)
	want := MatchMatrix{
		1: {"patient_id": false, "given_name": true, "surname": true, "state": true},
		2: {"patient_id": false, "given_name": false, "surname": false, "state": true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("matrix mismatch (-want +got):\n%s", diff)
	}
	if _, ok := got[0]; ok {
		t.Error("expected reference row to be excluded from the matrix")
	}
}

func TestComparators_Null(t *testing.T) {
	fuzzy := Fuzzy{Metric: similarity.Default(), Confidence: 0.9}
	for name, c := range map[string]Comparator{"exact": Exact{}, "fuzzy": fuzzy} {
		if !c.Agree(dataset.Null(), dataset.Null()) {
			t.Errorf("%s: expected null to agree with null", name)
		}
		if c.Agree(dataset.Null(), dataset.String("x")) || c.Agree(dataset.String("x"), dataset.Null()) {
			t.Errorf("%s: expected null to disagree with a value", name)
		}
	}
}

func TestFuzzy_StrictlyAboveConfidence(t *testing.T) {
	half := similarity.MetricFunc(func(a, b string) float64 { return 0.5 })
	if (Fuzzy{Metric: half, Confidence: 0.5}).Agree(dataset.String("a"), dataset.String("b")) {
		t.Error("expected similarity equal to confidence not to agree")
	}
	if !(Fuzzy{Metric: half, Confidence: 0.49}).Agree(dataset.String("a"), dataset.String("b")) {
		t.Error("expected similarity above confidence to agree")
	}
}

func TestFuzzy_CaseFolded(t *testing.T) {
	var seen [2]string
	spy := similarity.MetricFunc(func(a, b string) float64 {
		seen = [2]string{a, b}
		return 1
	})
	(Fuzzy{Metric: spy, Confidence: 0.9}).Agree(dataset.String("WHITE"), dataset.String("White"))
	if seen != [2]string{"white", "white"} {
		t.Errorf("expected case-folded inputs, got %v", seen)
	}
}

func TestNewFieldPolicy(t *testing.T) {
	policy := NewFieldPolicy([]string{"a", "b"}, []string{"b"}, nil, 0.8)
	if _, ok := policy["a"].(Exact); !ok {
		t.Errorf("expected exact comparator for a, got %T", policy["a"])
	}
	f, ok := policy["b"].(Fuzzy)
	if !ok {
		t.Fatalf("expected fuzzy comparator for b, got %T", policy["b"])
	}
	if f.Confidence != 0.8 || f.Metric == nil {
		t.Errorf("unexpected fuzzy comparator %+v", f)
	}
	if _, ok := policy.comparator("unknown").(Exact); !ok {
		t.Error("expected exact comparator for unlisted columns")
	}
}

// =========== MatchScorer Tests ===========

func TestScore(t *testing.T) {
	matrix := MatchMatrix{
		1: {"given_name": true, "surname": true, "state": true, "patient_id": false},
		2: {"given_name": false, "surname": false, "state": true, "patient_id": true},
	}
	got := Score(matrix, []string{"given_name", "surname", "state"})
	want := map[int]float64{1: 1, 2: 1.0 / 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ratios mismatch (-want +got):\n%s", diff)
	}

	if got := Score(MatchMatrix{}, []string{"state"}); len(got) != 0 {
		t.Errorf("expected no ratios for an empty matrix, got %v", got)
	}
}

// =========== DuplicateClassifier Tests ===========

func TestClassify(t *testing.T) {
	ratios := map[int]float64{1: 0.7, 2: 0.69, 3: 1, 4: 7.0 / 10}
	got := Classify(ratios, 0.7).Sorted()
	if diff := cmp.Diff([]int{1, 3, 4}, got); diff != "" {
		t.Errorf("duplicates mismatch (-want +got):\n%s", diff)
	}

	if got := Classify(nil, 0.7); len(got) != 0 {
		t.Errorf("expected empty set for empty ratios, got %v", got)
	}
}

func TestClassify_ThresholdBoundary(t *testing.T) {
	ratios := Score(MatchMatrix{5: {"a": true, "b": false}}, []string{"a", "b"})
	if !Classify(ratios, 0.5).Has(5) {
		t.Error("expected ratio equal to threshold to be a duplicate")
	}
}
