// Package drift detects shifts in the mean of a value stream. The dashboard
// feeds it the risk scores of every upload so a change in the scored
// population is surfaced without labels.
package drift

import (
	"math"
	"sync"
)

// ADWIN (Adaptive Windowing) keeps a window of recent values and drops its
// older part whenever the means of two sub-windows differ by more than a
// Hoeffding bound.
// A. Bifet, R. Gavalda (2007) "Learning from time-changing data with adaptive windowing"
type ADWIN struct {
	// ハイパーパラメータ
	delta     float64 // 信頼度パラメータ（小さいほど鈍感）
	maxWidth  int     // ウィンドウの最大長
	minWindow int     // 比較する部分ウィンドウの最小長
	clock     int     // 何件ごとに検定するか

	window     []float64
	sinceCheck int
	drifts     int

	mu sync.RWMutex
}

// Stats is a snapshot of the detector.
type Stats struct {
	Width  int     `json:"width"`
	Mean   float64 `json:"mean"`
	Drifts int     `json:"drifts"`
	Delta  float64 `json:"delta"`
}

// ADWINOption はADWINの設定オプション
type ADWINOption func(*ADWIN)

// WithDelta は信頼度パラメータを設定
func WithDelta(delta float64) ADWINOption {
	return func(a *ADWIN) { a.delta = delta }
}

// WithMaxWidth はウィンドウの最大長を設定。超えた分は古い順に捨てる
func WithMaxWidth(n int) ADWINOption {
	return func(a *ADWIN) { a.maxWidth = n }
}

// WithMinWindow は部分ウィンドウの最小長を設定
func WithMinWindow(n int) ADWINOption {
	return func(a *ADWIN) { a.minWindow = n }
}

// WithClock sets how many values are added between two cut tests.
func WithClock(n int) ADWINOption {
	return func(a *ADWIN) { a.clock = n }
}

// NewADWIN は新しいADWINを作成
func NewADWIN(options ...ADWINOption) *ADWIN {
	a := &ADWIN{
		delta:     0.002,
		maxWidth:  5000,
		minWindow: 30,
		clock:     32,
	}
	for _, opt := range options {
		opt(a)
	}
	if a.clock < 1 {
		a.clock = 1
	}
	if a.minWindow < 1 {
		a.minWindow = 1
	}
	return a
}

// Update adds one value and reports whether a drift was detected.
func (a *ADWIN) Update(value float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.add(value)
}

// UpdateBatch adds values in order and reports whether any of them triggered a drift.
func (a *ADWIN) UpdateBatch(values []float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	detected := false
	for _, v := range values {
		if a.add(v) {
			detected = true
		}
	}
	return detected
}

func (a *ADWIN) add(value float64) bool {
	a.window = append(a.window, value)
	if a.maxWidth > 0 && len(a.window) > a.maxWidth {
		a.window = a.window[len(a.window)-a.maxWidth:]
	}

	a.sinceCheck++
	if a.sinceCheck < a.clock {
		return false
	}
	a.sinceCheck = 0

	detected := false
	for a.cut() {
		detected = true
	}
	if detected {
		a.drifts++
	}
	return detected
}

// cut drops the older sub-window at the first split whose means differ
// significantly and reports whether it did.
func (a *ADWIN) cut() bool {
	n := len(a.window)
	if n < 2*a.minWindow {
		return false
	}

	total := 0.0
	for _, v := range a.window {
		total += v
	}
	// δ' = δ/n でウィンドウ内の全分割点に対する多重検定を補正する
	logTerm := math.Log(2 * float64(n) / a.delta)

	head := 0.0
	for i := 0; i < n-a.minWindow; i++ {
		head += a.window[i]
		n0 := i + 1
		if n0 < a.minWindow {
			continue
		}
		n1 := n - n0
		mean0 := head / float64(n0)
		mean1 := (total - head) / float64(n1)
		if math.Abs(mean0-mean1) > hoeffdingBound(n0, n1, logTerm) {
			a.window = append([]float64(nil), a.window[n0:]...)
			return true
		}
	}
	return false
}

// hoeffdingBound はホフディング境界を計算
func hoeffdingBound(n0, n1 int, logTerm float64) float64 {
	m := 1.0/float64(n0) + 1.0/float64(n1)
	return math.Sqrt(0.5 * m * logTerm)
}

// Mean は現在のウィンドウの平均を返す
func (a *ADWIN) Mean() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mean()
}

func (a *ADWIN) mean() float64 {
	if len(a.window) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range a.window {
		s += v
	}
	return s / float64(len(a.window))
}

// Width は現在のウィンドウ幅を返す
func (a *ADWIN) Width() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.window)
}

// Stats returns width, mean and the number of drifts so far.
func (a *ADWIN) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Stats{Width: len(a.window), Mean: a.mean(), Drifts: a.drifts, Delta: a.delta}
}

// Reset はADWINをリセット
func (a *ADWIN) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.window = nil
	a.sinceCheck = 0
	a.drifts = 0
}
