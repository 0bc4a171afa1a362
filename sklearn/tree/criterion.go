package tree

import "math"

// impurityFunc は重み付きクラス件数と合計から不純度を計算する
type impurityFunc func(counts []float64, total float64) float64

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}

func entropy(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := c / total
		h -= p * math.Log2(p)
	}
	return h
}

func impurityFor(criterion string) (impurityFunc, bool) {
	switch criterion {
	case "gini":
		return gini, true
	case "entropy", "log_loss":
		return entropy, true
	}
	return nil, false
}
