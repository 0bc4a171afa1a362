package server

import (
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/spf13/cast"

	"github.com/YuminosukeSato/attrition/core/model"
	"github.com/YuminosukeSato/attrition/dataset"
	"github.com/YuminosukeSato/attrition/internal/config"
	"github.com/YuminosukeSato/attrition/internal/pipeline"
	"github.com/YuminosukeSato/attrition/internal/report"
	"github.com/YuminosukeSato/attrition/pkg/errors"
	"github.com/YuminosukeSato/attrition/pkg/log"
)

// previewRows is how many uploaded rows are echoed back.
const previewRows = 5

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
}

// RankedRow is one scored employee in API responses.
type RankedRow struct {
	Rank      int               `json:"rank"`
	Index     int               `json:"index"`
	RiskScore float64           `json:"risk_score"`
	Record    map[string]string `json:"record"`
}

// ScoreResponse is returned by POST /api/v1/score.
type ScoreResponse struct {
	Rows    int                 `json:"rows"`
	Preview []map[string]string `json:"preview"`
	Top     []RankedRow         `json:"top"`
	ROI     report.ROISummary   `json:"roi"`

	// DriftDetected is set when this upload shifted the monitored score mean.
	DriftDetected bool `json:"drift_detected"`
}

// ModelResponse is returned by GET /api/v1/model.
type ModelResponse struct {
	Card       *model.ModelCard     `json:"card"`
	Evaluation *pipeline.Evaluation `json:"evaluation,omitempty"`
	Config     config.Config        `json:"config"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		RunID:     s.scorer.Artifact().RunID,
	})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	a := s.scorer.Artifact()
	render.JSON(w, r, ModelResponse{
		Card:       a.Card(),
		Evaluation: a.Evaluation,
		Config:     a.Config,
	})
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.drift.Stats())
}

// handleROI recomputes the summary from a high-risk count, as the dashboard
// does when the cost or retention inputs change.
func (s *Server) handleROI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	highRisk, err := intParam(q.Get("high_risk"), "high_risk", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	avgCost, rate, err := s.roiParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := report.FromCount(highRisk, avgCost, rate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

// handleScore accepts a multipart "file" field (CSV or XLSX) or a raw CSV body.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	avgCost, rate, err := s.roiParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	top, err := intParam(r.URL.Query().Get("top"), "top", s.cfg.TopN)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if top < 1 {
		s.writeError(w, r, errors.NewValidationError("top", "must be positive", top))
		return
	}

	body := &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxUploadMB)<<20)}
	r.Body = body
	tbl, err := s.readUpload(r)
	if err != nil {
		if body.exceeded {
			err = errors.Wrapf(errUploadTooLarge, "limit is %d MB", s.cfg.MaxUploadMB)
		}
		s.writeError(w, r, err)
		return
	}

	records, err := s.scorer.Score(tbl)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	scores := pipeline.Scores(records)
	summary, err := report.NewROISummary(scores, avgCost, rate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.metrics.RowsScored.Add(float64(len(records)))
	for _, v := range scores {
		s.metrics.RiskScores.Observe(v)
	}
	s.metrics.HighRisk.Set(float64(summary.HighRiskCount))

	drifted := s.drift.UpdateBatch(scores)
	stats := s.drift.Stats()
	s.metrics.ScoreMean.Set(stats.Mean)
	if drifted {
		s.metrics.Drifts.Inc()
		s.logger.Warn("risk score drift detected",
			"window", stats.Width,
			"window_mean", stats.Mean,
			log.RequestIDKey, w.Header().Get(RequestIDHeader),
		)
	}
	s.logger.Info("upload scored",
		log.SamplesKey, len(records),
		log.HighRiskKey, summary.HighRiskCount,
		log.SavingsKey, summary.EstimatedSavings,
		log.RequestIDKey, w.Header().Get(RequestIDHeader),
	)

	resp := ScoreResponse{
		Rows:    tbl.NumRows(),
		Preview: make([]map[string]string, 0, previewRows),
		ROI:     summary,

		DriftDetected: drifted,
	}
	head := tbl.Head(previewRows)
	for i := range head.Rows {
		resp.Preview = append(resp.Preview, head.Record(i))
	}
	for _, rec := range pipeline.Top(records, top) {
		resp.Top = append(resp.Top, RankedRow{
			Rank:      rec.Rank,
			Index:     rec.Index,
			RiskScore: rec.RiskScore,
			Record:    tbl.Record(rec.Index),
		})
	}
	render.JSON(w, r, resp)
}

// limitedBody remembers whether the size limit was hit. The CSV, XLSX and
// multipart readers do not all keep the original error in their chains.
type limitedBody struct {
	io.ReadCloser
	exceeded bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	var tooLarge *http.MaxBytesError
	if err != nil && errors.As(err, &tooLarge) {
		b.exceeded = true
	}
	return n, err
}

func (s *Server) readUpload(r *http.Request) (*dataset.Table, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	charset := r.URL.Query().Get("charset")

	if mediaType != "multipart/form-data" {
		return dataset.ReadCSVCharset(r.Body, charset)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errors.NewDataFormatError(errors.StageLoad, 0, "", "multipart field \"file\" is required")
	}
	defer file.Close()

	if dataset.IsXLSX(header.Filename) {
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, errors.Wrap(err, "read upload")
		}
		return dataset.ReadXLSXBytes(data)
	}
	return dataset.ReadCSVCharset(file, charset)
}

// roiParams reads avg_cost and retention_rate, falling back to the configured defaults.
func (s *Server) roiParams(r *http.Request) (float64, float64, error) {
	q := r.URL.Query()
	avgCost, err := floatParam(q.Get("avg_cost"), "avg_cost", s.cfg.AvgCost)
	if err != nil {
		return 0, 0, err
	}
	rate, err := floatParam(q.Get("retention_rate"), "retention_rate", s.cfg.RetentionRate)
	if err != nil {
		return 0, 0, err
	}
	if err := report.Validate(0, avgCost, rate); err != nil {
		return 0, 0, err
	}
	return avgCost, rate, nil
}

func floatParam(raw, name string, def float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, errors.NewValidationError(name, "must be a number", raw)
	}
	return v, nil
}

func intParam(raw, name string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return 0, errors.NewValidationError(name, "must be an integer", raw)
	}
	return v, nil
}
