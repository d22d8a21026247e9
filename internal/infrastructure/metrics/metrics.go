package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dbkeeper"

// Recorder holds the backup metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	backups        *prometheus.CounterVec
	restores       *prometheus.CounterVec
	pruned         *prometheus.CounterVec
	lastSuccess    prometheus.Gauge
	backupDuration prometheus.Histogram
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_total",
			Help:      "Backup runs by result.",
		}, []string{"result"}),
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restores_total",
			Help:      "Restore runs by result.",
		}, []string{"result"}),
		pruned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_total",
			Help:      "Remote backups selected by retention, by deletion result.",
		}, []string{"result"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_backup_success_timestamp_seconds",
			Help:      "Unix time of the last backup that reached remote storage.",
		}),
		backupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backup_duration_seconds",
			Help:      "Duration of backup runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}

	r.registry.MustRegister(r.backups, r.restores, r.pruned, r.lastSuccess, r.backupDuration)
	return r
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (r *Recorder) ObserveBackup(d time.Duration, err error) {
	if r == nil {
		return
	}
	r.backups.WithLabelValues(result(err)).Inc()
	r.backupDuration.Observe(d.Seconds())
	if err == nil {
		r.lastSuccess.SetToCurrentTime()
	}
}

func (r *Recorder) ObserveRestore(err error) {
	if r == nil {
		return
	}
	r.restores.WithLabelValues(result(err)).Inc()
}

func (r *Recorder) ObservePrune(deleted, failed int) {
	if r == nil {
		return
	}
	r.pruned.WithLabelValues("success").Add(float64(deleted))
	r.pruned.WithLabelValues("failure").Add(float64(failed))
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
