// Package report derives the business-facing retention ROI summary from risk scores.
package report

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

// HighRiskThreshold is the risk score above which an employee counts as high risk.
// A score exactly equal to the threshold is not high risk.
const HighRiskThreshold = 0.7

// ROISummary is the projected saving of a retention programme aimed at the
// high-risk employees. It is derived on demand and never persisted.
type ROISummary struct {
	HighRiskCount    int     `json:"high_risk_count" yaml:"high_risk_count"`
	AverageCost      float64 `json:"avg_cost" yaml:"avg_cost"`
	RetentionRate    float64 `json:"retention_rate" yaml:"retention_rate"` // percent, 0-100
	EstimatedSavings float64 `json:"estimated_savings" yaml:"estimated_savings"`
	Threshold        float64 `json:"threshold" yaml:"threshold"`
}

// CountHighRisk returns how many scores are strictly above HighRiskThreshold.
func CountHighRisk(scores []float64) int {
	n := 0
	for _, s := range scores {
		if s > HighRiskThreshold {
			n++
		}
	}
	return n
}

// EstimateSavings = highRisk × avgCost × retentionRate/100
func EstimateSavings(highRisk int, avgCost, retentionRate float64) float64 {
	return float64(highRisk) * avgCost * retentionRate / 100
}

// Validate checks the user supplied assumptions.
func Validate(highRisk int, avgCost, retentionRate float64) error {
	if highRisk < 0 {
		return errors.NewValidationError("high_risk", "must not be negative", highRisk)
	}
	if avgCost < 0 {
		return errors.NewValidationError("avg_cost", "must not be negative", avgCost)
	}
	if retentionRate < 0 || retentionRate > 100 {
		return errors.NewValidationError("retention_rate", "must be within [0, 100]", retentionRate)
	}
	return nil
}

// NewROISummary counts the high-risk scores and projects the savings.
func NewROISummary(scores []float64, avgCost, retentionRate float64) (ROISummary, error) {
	return FromCount(CountHighRisk(scores), avgCost, retentionRate)
}

// FromCount builds a summary from an already known high-risk count.
func FromCount(highRisk int, avgCost, retentionRate float64) (ROISummary, error) {
	if err := Validate(highRisk, avgCost, retentionRate); err != nil {
		return ROISummary{}, err
	}
	return ROISummary{
		HighRiskCount:    highRisk,
		AverageCost:      avgCost,
		RetentionRate:    retentionRate,
		EstimatedSavings: EstimateSavings(highRisk, avgCost, retentionRate),
		Threshold:        HighRiskThreshold,
	}, nil
}

// Format writes the summary as the dashboard shows it, with thousands separators
// for the printer's language. A nil printer uses English.
func (s ROISummary) Format(w io.Writer, p *message.Printer) error {
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	lines := []string{
		p.Sprintf("High-risk employees (score > %.1f): %d", s.Threshold, s.HighRiskCount),
		p.Sprintf("Average cost per leaver: %.0f", s.AverageCost),
		p.Sprintf("Assumed retention success rate: %.0f%%", s.RetentionRate),
		p.Sprintf("Estimated savings: %.0f", s.EstimatedSavings),
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return errors.Wrap(err, "write roi summary")
		}
	}
	return nil
}

// String formats the summary in English.
func (s ROISummary) String() string {
	return message.NewPrinter(language.English).Sprintf(
		"%d high-risk employees, estimated savings %.0f", s.HighRiskCount, s.EstimatedSavings)
}
