package record

import (
	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/context"
	"github.com/blacktop/fcs-keys/internal/fetch"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct{}

func (metrics) String() string                 { return "metrics" }
func (metrics) Skip(ctx *context.Context) bool { return ctx.Config.Report.Metrics == "" }

// Record writes the run metrics in the node_exporter textfile format.
func (metrics) Record(ctx *context.Context) error {
	reg := prometheus.NewRegistry()

	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fcs_keys",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last completed run.",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fcs_keys",
		Name:      "last_run_duration_seconds",
		Help:      "Duration of the last completed run.",
	})
	upToDate := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fcs_keys",
		Name:      "up_to_date",
		Help:      "1 when AppleDB had no new commits.",
	})
	builds := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fcs_keys",
		Name:      "builds",
		Help:      "Builds processed by the last run by status.",
	}, []string{"status"})
	stored := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fcs_keys",
		Name:      "keys_stored",
		Help:      "Key files newly stored by the last run.",
	})
	reg.MustRegister(lastRun, duration, upToDate, builds, stored)

	s := ctx.Summary
	lastRun.Set(float64(s.Finished.Unix()))
	duration.Set(s.Finished.Sub(s.Started).Seconds())
	if s.UpToDate {
		upToDate.Set(1)
	}
	c := s.Counts()
	builds.WithLabelValues(string(fetch.StatusFetched)).Set(float64(c.Fetched))
	builds.WithLabelValues(string(fetch.StatusSkipped)).Set(float64(c.Skipped))
	builds.WithLabelValues(string(fetch.StatusFailed)).Set(float64(c.Failed))
	stored.Set(float64(c.Stored))

	if err := prometheus.WriteToTextfile(ctx.Config.Report.Metrics, reg); err != nil {
		return err
	}
	log.WithField("path", ctx.Config.Report.Metrics).Info("saved")
	return nil
}
