package imbalance

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

// imbalanced は陽性 pos 件、陰性 neg 件の 2 次元データを返す。
// 陽性は [10,11]x[10,11]、陰性は [0,1]x[0,1] に置く。
func imbalanced(pos, neg int) (*mat.Dense, *mat.VecDense) {
	n := pos + neg
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < neg; i++ {
		X.Set(i, 0, float64(i%5)/5)
		X.Set(i, 1, float64(i%3)/3)
	}
	for i := 0; i < pos; i++ {
		r := neg + i
		X.Set(r, 0, 10+float64(i%4)/4)
		X.Set(r, 1, 10+float64(i%2)/2)
		y.SetVec(r, 1)
	}
	return X, y
}

func countLabels(y mat.Vector) (neg, pos int) {
	for i := 0; i < y.Len(); i++ {
		if y.AtVec(i) == 1 {
			pos++
		} else {
			neg++
		}
	}
	return neg, pos
}

func TestSMOTEBalancesClasses(t *testing.T) {
	X, y := imbalanced(12, 40)

	sm := NewSMOTE()
	XRes, yRes, err := sm.FitResample(X, y)
	if err != nil {
		t.Fatal(err)
	}

	neg, pos := countLabels(yRes)
	if neg != pos {
		t.Errorf("classes not balanced: neg=%d pos=%d", neg, pos)
	}
	if sm.NSynthetic != 28 {
		t.Errorf("NSynthetic = %d, want 28", sm.NSynthetic)
	}

	// 元の行は先頭にそのまま残る
	for i := 0; i < 52; i++ {
		if XRes.At(i, 0) != X.At(i, 0) || XRes.At(i, 1) != X.At(i, 1) || yRes.AtVec(i) != y.AtVec(i) {
			t.Fatalf("original row %d changed", i)
		}
	}
	// 合成サンプルは少数クラスの領域内にある
	r, _ := XRes.Dims()
	for i := 52; i < r; i++ {
		for j := 0; j < 2; j++ {
			v := XRes.At(i, j)
			if v < 10 || v > 11 {
				t.Fatalf("synthetic row %d col %d = %v outside minority hull", i, j, v)
			}
		}
	}
}

func TestSMOTEDeterministic(t *testing.T) {
	X, y := imbalanced(8, 30)
	a, _, err := NewSMOTE(WithRandomState(7)).FitResample(X, y)
	if err != nil {
		t.Fatal(err)
	}
	b, _, _ := NewSMOTE(WithRandomState(7)).FitResample(X, y)
	if !mat.Equal(a, b) {
		t.Error("same seed should produce identical samples")
	}
}

func TestSMOTESamplingRatio(t *testing.T) {
	X, y := imbalanced(10, 40)
	_, yRes, err := NewSMOTE(WithSamplingRatio(0.5)).FitResample(X, y)
	if err != nil {
		t.Fatal(err)
	}
	neg, pos := countLabels(yRes)
	if neg != 40 || pos != 20 {
		t.Errorf("got neg=%d pos=%d, want 40/20", neg, pos)
	}
}

func TestSMOTELowersKNeighbors(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	X, y := imbalanced(3, 10)
	sm := NewSMOTE(WithKNeighbors(5))
	_, yRes, err := sm.FitResample(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if sm.KUsed != 2 {
		t.Errorf("KUsed = %d, want 2", sm.KUsed)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %d", len(warnings))
	}
	var rw *errors.ResamplingWarning
	if !errors.As(warnings[0], &rw) || rw.To != 2 {
		t.Errorf("unexpected warning %v", warnings[0])
	}
	if neg, pos := countLabels(yRes); neg != pos {
		t.Errorf("classes not balanced: %d/%d", neg, pos)
	}
}

func TestSMOTEErrors(t *testing.T) {
	single, ySingle := imbalanced(1, 10)
	allNeg, yNeg := imbalanced(0, 10)
	X, y := imbalanced(5, 10)
	bad := mat.NewVecDense(15, nil)
	bad.SetVec(3, 2)

	tests := []struct {
		name       string
		smote      *SMOTE
		X          *mat.Dense
		y          *mat.VecDense
		degenerate bool
	}{
		{"one minority sample", NewSMOTE(), single, ySingle, true},
		{"single class", NewSMOTE(), allNeg, yNeg, true},
		{"non binary label", NewSMOTE(), X, bad, false},
		{"zero neighbours", NewSMOTE(WithKNeighbors(0)), X, y, false},
		{"bad ratio", NewSMOTE(WithSamplingRatio(1.5)), X, y, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.smote.FitResample(tt.X, tt.y)
			if err == nil {
				t.Fatal("expected error")
			}
			var dd *errors.DegenerateDataError
			if errors.As(err, &dd) != tt.degenerate {
				t.Errorf("degenerate = %v, want %v (%v)", !tt.degenerate, tt.degenerate, err)
			}
		})
	}
}

func TestSMOTEDoesNotMutateInput(t *testing.T) {
	X, y := imbalanced(6, 20)
	XCopy := mat.DenseCopyOf(X)
	yCopy := mat.VecDenseCopyOf(y)

	if _, _, err := NewSMOTE().FitResample(X, y); err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(X, XCopy) || !mat.Equal(y, yCopy) {
		t.Error("input was modified")
	}
}
