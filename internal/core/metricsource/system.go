// Package metricsource provides the production MetricSource backed by
// host statistics. Dashboards and tests substitute their own sources; the
// engine only sees the interface.
package metricsource

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/taskhub-ops/taskhub-backend-go/internal/core/monitoring"
)

// Metric names answered by the system source.
const (
	MetricCPUUsage    = "system.cpu.usage"
	MetricMemoryUsage = "system.memory.usage"
	MetricDiskUsage   = "system.disk.usage"
	MetricLoad1       = "system.load.1m"
)

// SystemSource samples host utilization. Values are instantaneous; the
// aggregation and window arguments are accepted for interface parity and
// noted at debug level when they request history this source cannot serve.
type SystemSource struct {
	diskPath string
	logger   *logrus.Logger
}

// NewSystemSource creates a system metric source. diskPath defaults to "/".
func NewSystemSource(diskPath string, logger *logrus.Logger) *SystemSource {
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemSource{diskPath: diskPath, logger: logger}
}

func (s *SystemSource) Query(ctx context.Context, metric string, agg monitoring.Aggregation, window time.Duration, filters map[string]string) (float64, error) {
	switch metric {
	case MetricCPUUsage:
		percents, err := cpu.PercentWithContext(ctx, 0, false)
		if err != nil {
			return 0, fmt.Errorf("sample cpu: %w", err)
		}
		if len(percents) == 0 {
			return 0, fmt.Errorf("sample cpu: no data")
		}
		return percents[0], nil

	case MetricMemoryUsage:
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("sample memory: %w", err)
		}
		return vm.UsedPercent, nil

	case MetricDiskUsage:
		path := s.diskPath
		if p, ok := filters["path"]; ok {
			path = p
		}
		usage, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("sample disk %s: %w", path, err)
		}
		return usage.UsedPercent, nil

	case MetricLoad1:
		avg, err := load.AvgWithContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("sample load: %w", err)
		}
		return avg.Load1, nil

	default:
		return 0, fmt.Errorf("unknown metric %q", metric)
	}
}
