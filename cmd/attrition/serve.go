package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/attrition/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the retention dashboard API",
		Long: `Loads the artifact once and serves scoring, ROI simulation, model
metadata and Prometheus metrics over HTTP until interrupted.`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}

	f := cmd.Flags()
	f.String("addr", "", "listen address (default :8501)")
	f.String("model", "", "artifact path")
	f.String("cors-origins", "", "comma separated allowed origins")
	f.Float64("avg-cost", 0, "default average cost of one leaver")
	f.Float64("retention-rate", 0, "default retention success rate in percent")
	f.String("unknown-category", "", "override the trained unseen-category policy: error or code")
	f.Int("top", 0, "default number of ranked rows returned")
	f.Float64("score-rps", 0, "scoring requests per second, 0 for unlimited")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scorer, err := a.loadScorer()
	if err != nil {
		return err
	}
	return server.New(a.cfg, scorer).Run(ctx)
}
