package tree

import (
	"math/rand/v2"
	"sort"
)

const impurityEpsilon = 1e-12

// builder は深さ優先で木を構築する。Fit の間だけ使う。
type builder struct {
	dt       *DecisionTreeClassifier
	cols     [][]float64 // 列優先の特徴量
	y        []int
	weight   []float64
	nClasses int
	impurity impurityFunc
	rng      *rand.Rand

	nodes      []Node
	importance []float64
	maxDepth   int
	nLeaves    int
}

type split struct {
	feature   int
	threshold float64
	score     float64 // 子ノードの重み付き不純度の和（小さいほど良い）
}

func (b *builder) build(samples []int, depth int) int {
	counts, total := b.classCounts(samples)
	imp := b.impurity(counts, total)

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature:         -1,
		Value:           normalize(counts, total),
		Impurity:        imp,
		WeightedSamples: total,
		Depth:           depth,
	})
	if depth > b.maxDepth {
		b.maxDepth = depth
	}

	if b.stop(total, imp, depth) {
		b.nLeaves++
		return idx
	}
	best, ok := b.bestSplit(samples)
	if !ok {
		b.nLeaves++
		return idx
	}

	left, right := b.partition(samples, best.feature, best.threshold)
	b.importance[best.feature] += total*imp - best.score

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)

	node := &b.nodes[idx]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = l
	node.Right = r
	return idx
}

func (b *builder) stop(total, imp float64, depth int) bool {
	dt := b.dt
	switch {
	case dt.maxDepth > 0 && depth >= dt.maxDepth:
		return true
	case total < float64(dt.minSamplesSplit):
		return true
	case total < 2*float64(dt.minSamplesLeaf):
		return true
	case imp <= impurityEpsilon:
		return true
	}
	return false
}

// bestSplit は候補特徴量の中で子ノードの重み付き不純度が最小になる分割を探す。
// maxFeatures 個の特徴量を調べても有効な分割がない場合は残りの特徴量も調べる。
func (b *builder) bestSplit(samples []int) (split, bool) {
	nFeatures := len(b.cols)
	order := make([]int, nFeatures)
	for i := range order {
		order[i] = i
	}
	limit := nFeatures
	if mf := b.dt.maxFeatures; mf > 0 && mf < nFeatures {
		b.rng.Shuffle(nFeatures, func(i, j int) { order[i], order[j] = order[j], order[i] })
		limit = mf
	}

	var best split
	found := false
	sorted := make([]int, len(samples))
	leftCounts := make([]float64, b.nClasses)
	rightCounts := make([]float64, b.nClasses)
	minLeaf := float64(b.dt.minSamplesLeaf)

	for visited, f := range order {
		if visited >= limit && found {
			break
		}
		col := b.cols[f]
		copy(sorted, samples)
		sort.Slice(sorted, func(i, j int) bool { return col[sorted[i]] < col[sorted[j]] })
		if col[sorted[0]] == col[sorted[len(sorted)-1]] {
			continue // 定数列
		}

		for c := range leftCounts {
			leftCounts[c] = 0
		}
		_, rightW := b.fillCounts(rightCounts, sorted)
		leftW := 0.0

		for p := 0; p < len(sorted)-1; p++ {
			s := sorted[p]
			w := b.weight[s]
			leftCounts[b.y[s]] += w
			rightCounts[b.y[s]] -= w
			leftW += w
			rightW -= w

			v, next := col[s], col[sorted[p+1]]
			if v == next {
				continue
			}
			if leftW < minLeaf || rightW < minLeaf {
				continue
			}
			score := leftW*b.impurity(leftCounts, leftW) + rightW*b.impurity(rightCounts, rightW)
			if !found || score < best.score {
				threshold := v + (next-v)/2
				if threshold >= next {
					threshold = v
				}
				best = split{feature: f, threshold: threshold, score: score}
				found = true
			}
		}
	}
	return best, found
}

func (b *builder) partition(samples []int, feature int, threshold float64) (left, right []int) {
	col := b.cols[feature]
	for _, s := range samples {
		if col[s] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	return left, right
}

func (b *builder) classCounts(samples []int) ([]float64, float64) {
	return b.fillCounts(make([]float64, b.nClasses), samples)
}

func (b *builder) fillCounts(counts []float64, samples []int) ([]float64, float64) {
	for c := range counts {
		counts[c] = 0
	}
	total := 0.0
	for _, s := range samples {
		counts[b.y[s]] += b.weight[s]
		total += b.weight[s]
	}
	return counts, total
}

func normalize(counts []float64, total float64) []float64 {
	out := make([]float64, len(counts))
	if total <= 0 {
		return out
	}
	for i, c := range counts {
		out[i] = c / total
	}
	return out
}
