package ensemble

import (
	"bytes"
	"context"
	"encoding/gob"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

// makeBlobs は 2 つの分離したクラスタを生成する
func makeBlobs(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	r := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(2*n, 3, nil)
	y := mat.NewDense(2*n, 1, nil)
	for i := 0; i < 2*n; i++ {
		center := 0.0
		label := 0.0
		if i >= n {
			center, label = 5.0, 1.0
		}
		X.Set(i, 0, center+r.NormFloat64()*0.5)
		X.Set(i, 1, center+r.NormFloat64()*0.5)
		X.Set(i, 2, r.Float64()) // ノイズ
		y.Set(i, 0, label)
	}
	return X, y
}

func TestRandomForestClassifier_SeparableData(t *testing.T) {
	X, y := makeBlobs(40, 1)

	rf := NewRandomForestClassifier(WithNEstimators(25), WithRandomState(42))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !rf.IsFitted() {
		t.Fatal("forest should be fitted")
	}
	if got := len(rf.Estimators()); got != 25 {
		t.Errorf("expected 25 estimators, got %d", got)
	}

	if acc := rf.Score(X, y); acc < 0.95 {
		t.Errorf("training accuracy too low: %v", acc)
	}

	proba, err := rf.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	n, c := proba.Dims()
	if c != 2 {
		t.Fatalf("expected 2 probability columns, got %d", c)
	}
	for i := 0; i < n; i++ {
		sum := proba.At(i, 0) + proba.At(i, 1)
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %d: probabilities sum to %v", i, sum)
		}
	}

	pos, err := rf.PositiveProba(mat.NewDense(2, 3, []float64{0, 0, 0.5, 5, 5, 0.5}))
	if err != nil {
		t.Fatalf("PositiveProba failed: %v", err)
	}
	if pos[0] >= 0.5 || pos[1] <= 0.5 {
		t.Errorf("unexpected positive probabilities: %v", pos)
	}
}

func TestRandomForestClassifier_DeterministicAcrossWorkers(t *testing.T) {
	X, y := makeBlobs(30, 7)

	serial := NewRandomForestClassifier(WithNEstimators(15), WithRandomState(42), WithNJobs(1))
	parallel := NewRandomForestClassifier(WithNEstimators(15), WithRandomState(42), WithNJobs(4))
	if err := serial.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := parallel.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	p1, _ := serial.PredictProba(X)
	p2, _ := parallel.PredictProba(X)
	if !mat.Equal(p1, p2) {
		t.Error("probabilities differ between NJobs=1 and NJobs=4")
	}

	other := NewRandomForestClassifier(WithNEstimators(15), WithRandomState(7))
	if err := other.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	p3, _ := other.PredictProba(X)
	if mat.Equal(p1, p3) {
		t.Log("different seeds produced identical probabilities; data may be too easy")
	}
}

func TestRandomForestClassifier_FeatureImportances(t *testing.T) {
	X, y := makeBlobs(30, 3)
	rf := NewRandomForestClassifier(WithNEstimators(10))
	if err := rf.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	imp := rf.GetFeatureImportances()
	if len(imp) != 3 {
		t.Fatalf("expected 3 importances, got %d", len(imp))
	}
	sum := 0.0
	for _, v := range imp {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("importances should sum to 1, got %v", sum)
	}
	if imp[2] > imp[0] && imp[2] > imp[1] {
		t.Errorf("noise feature should not dominate: %v", imp)
	}
}

func TestRandomForestClassifier_GobRoundTrip(t *testing.T) {
	X, y := makeBlobs(20, 5)
	rf := NewRandomForestClassifier(WithNEstimators(8), WithMaxDepth(4))
	if err := rf.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rf); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	restored := NewRandomForestClassifier()
	if err := gob.NewDecoder(&buf).Decode(restored); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if restored.GetParams()["max_depth"] != 4 {
		t.Errorf("max_depth not restored: %v", restored.GetParams()["max_depth"])
	}
	p1, _ := rf.PredictProba(X)
	p2, err := restored.PredictProba(X)
	if err != nil {
		t.Fatalf("restored PredictProba failed: %v", err)
	}
	if !mat.Equal(p1, p2) {
		t.Error("restored forest predicts differently")
	}
}

func TestRandomForestClassifier_Errors(t *testing.T) {
	rf := NewRandomForestClassifier()
	_, err := rf.PredictProba(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	X, y := makeBlobs(5, 1)
	bad := NewRandomForestClassifier(WithNEstimators(0))
	if err := bad.Fit(X, y); err == nil {
		t.Error("expected error for n_estimators=0")
	}

	bad = NewRandomForestClassifier(WithMaxFeatures("half"))
	if err := bad.Fit(X, y); err == nil {
		t.Error("expected error for invalid max_features")
	}

	ok := NewRandomForestClassifier(WithNEstimators(3))
	if err := ok.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	_, err = ok.PredictProba(mat.NewDense(1, 5, nil))
	var de *errors.DimensionError
	if !errors.As(err, &de) {
		t.Errorf("expected DimensionError, got %v", err)
	}

	if err := ok.SetParams(map[string]interface{}{"unknown": 1}); err == nil {
		t.Error("expected error for unknown parameter")
	}
}

func TestRandomForestClassifier_CanceledContext(t *testing.T) {
	X, y := makeBlobs(10, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rf := NewRandomForestClassifier(WithNEstimators(5))
	if err := rf.FitContext(ctx, X, y); err == nil {
		t.Error("expected error for canceled context")
	}
	if rf.IsFitted() {
		t.Error("forest should not be fitted after cancellation")
	}
}

func TestResolveMaxFeatures(t *testing.T) {
	tests := []struct {
		in   string
		d    int
		want int
	}{
		{"sqrt", 16, 4},
		{"log2", 16, 4},
		{"all", 16, 16},
		{"", 5, 5},
		{"3", 10, 3},
		{"50", 10, 10},
		{"sqrt", 1, 1},
	}
	for _, tt := range tests {
		got, err := resolveMaxFeatures(tt.in, tt.d)
		if err != nil {
			t.Errorf("resolveMaxFeatures(%q, %d) error: %v", tt.in, tt.d, err)
			continue
		}
		if got != tt.want {
			t.Errorf("resolveMaxFeatures(%q, %d) = %d, want %d", tt.in, tt.d, got, tt.want)
		}
	}
}

func TestRandomForestClassifier_NonFiniteInput(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 1, 1, math.NaN(), 2, 3, 3, 4})
	y := mat.NewVecDense(4, []float64{0, 1, 0, 1})

	err := NewRandomForestClassifier(WithNEstimators(3)).Fit(X, y)
	var ni *errors.NumericalInstabilityError
	if !errors.As(err, &ni) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if ni.Row != 1 {
		t.Errorf("Row = %d, want 1", ni.Row)
	}
}
