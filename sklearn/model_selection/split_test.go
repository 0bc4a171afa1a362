package model_selection

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func labels(pos, neg int) *mat.VecDense {
	y := mat.NewVecDense(pos+neg, nil)
	for i := 0; i < pos; i++ {
		y.SetVec(i*(pos+neg)/pos, 1)
	}
	return y
}

func features(n int) *mat.Dense {
	X := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i*i))
	}
	return X
}

func TestTrainTestSplitStratified(t *testing.T) {
	y := labels(20, 80)
	X := features(100)

	s, err := TrainTestSplit(X, y, 0.2, 42, true)
	if err != nil {
		t.Fatal(err)
	}

	if got := len(s.TestIndices); got != 20 {
		t.Errorf("test size = %d, want 20", got)
	}
	if got := len(s.TrainIndices); got != 80 {
		t.Errorf("train size = %d, want 80", got)
	}

	testCounts := ClassCounts(s.YTest)
	if testCounts[1] != 4 || testCounts[0] != 16 {
		t.Errorf("stratified test counts = %v, want 4 positive and 16 negative", testCounts)
	}

	// 行の対応が保たれていること
	for i, idx := range s.TestIndices {
		if s.XTest.At(i, 0) != float64(idx) {
			t.Fatalf("row %d: feature %v does not match source index %d", i, s.XTest.At(i, 0), idx)
		}
		if s.YTest.AtVec(i) != y.AtVec(idx) {
			t.Fatalf("row %d: label mismatch", i)
		}
	}

	seen := make(map[int]bool)
	for _, idx := range append(append([]int{}, s.TrainIndices...), s.TestIndices...) {
		if seen[idx] {
			t.Fatalf("index %d appears twice", idx)
		}
		seen[idx] = true
	}
	if len(seen) != 100 {
		t.Errorf("expected every row exactly once, got %d", len(seen))
	}
}

func TestTrainTestSplitDeterministic(t *testing.T) {
	y := labels(7, 23)
	a, _, err := SplitIndices(y, 0.2, 42, true)
	if err != nil {
		t.Fatal(err)
	}
	b, _, _ := SplitIndices(y, 0.2, 42, true)
	c, _, _ := SplitIndices(y, 0.2, 7, true)

	if !equalInts(a, b) {
		t.Error("same seed should give the same split")
	}
	if equalInts(a, c) {
		t.Error("different seeds should usually give different splits")
	}
}

func TestSmallMinorityKeptInBothSplits(t *testing.T) {
	// 10 行中 3 行が陽性: round(0.6)=1 行がテストへ
	y := labels(3, 7)
	s, err := TrainTestSplit(features(10), y, 0.2, 42, true)
	if err != nil {
		t.Fatal(err)
	}
	if ClassCounts(s.YTest)[1] != 1 || ClassCounts(s.YTrain)[1] != 2 {
		t.Errorf("unexpected minority allocation: train=%v test=%v", ClassCounts(s.YTrain), ClassCounts(s.YTest))
	}
}

func TestTrainTestSplitNonStratified(t *testing.T) {
	s, err := TrainTestSplit(features(50), labels(10, 40), 0.3, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.TestIndices) != 15 || len(s.TrainIndices) != 35 {
		t.Errorf("got %d/%d", len(s.TrainIndices), len(s.TestIndices))
	}
}

func TestTrainTestSplitErrors(t *testing.T) {
	tests := []struct {
		name     string
		X        *mat.Dense
		y        *mat.VecDense
		testSize float64
	}{
		{"zero test size", features(10), labels(3, 7), 0},
		{"test size one", features(10), labels(3, 7), 1},
		{"single sample", features(1), labels(1, 0), 0.2},
		{"length mismatch", features(9), labels(3, 7), 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TrainTestSplit(tt.X, tt.y, tt.testSize, 42, true); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
