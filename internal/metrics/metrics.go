// Package metrics records the outcome of the last completed run as a
// Prometheus textfile, consumable by the node_exporter textfile
// collector or served by `runguard exporter`. Metrics are an audit
// surface only and never influence whether a run happens.
package metrics

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// RunSample is what one completed run leaves behind.
type RunSample struct {
	Start    time.Time
	Duration time.Duration
	ExitCode int
}

// Write renders sample as a Prometheus text exposition at path. The
// file is written to a temp sibling and renamed so readers never see a
// partial exposition.
func Write(path string, sample RunSample) error {
	reg := prometheus.NewRegistry()

	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "runguard_last_run_timestamp_seconds",
		Help: "Unix time at which the last batch run started.",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "runguard_last_run_duration_seconds",
		Help: "Wall-clock duration of the last batch run.",
	})
	exitCode := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "runguard_last_run_exit_code",
		Help: "Exit code reported by the batch program on the last run.",
	})
	success := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "runguard_last_run_success",
		Help: "1 if the last batch run exited zero, 0 otherwise.",
	})
	reg.MustRegister(lastRun, duration, exitCode, success)

	lastRun.Set(float64(sample.Start.Unix()))
	duration.Set(sample.Duration.Seconds())
	exitCode.Set(float64(sample.ExitCode))
	if sample.ExitCode == 0 {
		success.Set(1)
	}

	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather run metrics: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return fmt.Errorf("encode run metrics: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close metrics file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish metrics file: %w", err)
	}
	return nil
}

// Read parses a previously written textfile back into metric families.
func Read(path string) (map[string]*dto.MetricFamily, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(f)
	if err != nil {
		return nil, fmt.Errorf("parse metrics file %s: %w", path, err)
	}
	return families, nil
}

// Encode writes families to w in text exposition format, in name
// order, so repeated scrapes are byte-stable.
func Encode(w io.Writer, families map[string]*dto.MetricFamily) error {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, name := range names {
		if err := enc.Encode(families[name]); err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
	}
	return nil
}

// GaugeValue extracts a plain gauge's value from families. The second
// return is false when the family is missing or not a simple gauge.
func GaugeValue(families map[string]*dto.MetricFamily, name string) (float64, bool) {
	mf, ok := families[name]
	if !ok || len(mf.Metric) == 0 || mf.Metric[0].Gauge == nil {
		return 0, false
	}
	return mf.Metric[0].Gauge.GetValue(), true
}
