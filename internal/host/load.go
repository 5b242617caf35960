package host

import (
	"fmt"
	"time"

	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"netcard-affinity/internal/logging"
	"netcard-affinity/internal/sysfs"
)

const DefaultSampleInterval = time.Second

// CPUTimes holds the eight accounted fields of one cpuN line of the stat file.
type CPUTimes struct {
	User    float64
	Nice    float64
	System  float64
	Idle    float64
	Iowait  float64
	IRQ     float64
	SoftIRQ float64
	Steal   float64
}

func (c CPUTimes) Total() float64 {
	return c.User + c.Nice + c.System + c.Idle + c.Iowait + c.IRQ + c.SoftIRQ + c.Steal
}

// IdleTime counts iowait as idle.
func (c CPUTimes) IdleTime() float64 {
	return c.Idle + c.Iowait
}

// Busy returns the busy percentage between two snapshots of the same CPU.
// No elapsed ticks means no load.
func Busy(prev, cur CPUTimes) float64 {
	total := cur.Total() - prev.Total()
	if total <= 0 {
		return 0
	}
	idle := cur.IdleTime() - prev.IdleTime()
	return (total - idle) / total * 100
}

// StatSource yields the current counters for one logical CPU.
type StatSource interface {
	CPUTimes(cpu int) (CPUTimes, error)
}

// ProcStatSource reads /proc/stat through prometheus/procfs.
type ProcStatSource struct {
	fs procfs.FS
}

func NewProcStatSource(procRoot string) (*ProcStatSource, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: open procfs %s: %w", sysfs.ErrFileAccess, procRoot, err)
	}
	return &ProcStatSource{fs: fs}, nil
}

func (s *ProcStatSource) CPUTimes(cpu int) (CPUTimes, error) {
	stat, err := s.fs.Stat()
	if err != nil {
		return CPUTimes{}, fmt.Errorf("%w: read stat: %w", sysfs.ErrFileAccess, err)
	}
	c, ok := stat.CPU[int64(cpu)]
	if !ok {
		return CPUTimes{}, fmt.Errorf("%w: no stat line for cpu%d", sysfs.ErrFileAccess, cpu)
	}
	return CPUTimes{
		User:    c.User,
		Nice:    c.Nice,
		System:  c.System,
		Idle:    c.Idle,
		Iowait:  c.Iowait,
		IRQ:     c.IRQ,
		SoftIRQ: c.SoftIRQ,
		Steal:   c.Steal,
	}, nil
}

// LoadSampler measures per-core utilisation over one interval.
type LoadSampler struct {
	topology *TopologyReader
	source   StatSource
	interval time.Duration
	logger   logrus.FieldLogger
}

func NewLoadSampler(topology *TopologyReader, source StatSource, interval time.Duration, logger logrus.FieldLogger) *LoadSampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &LoadSampler{
		topology: topology,
		source:   source,
		interval: interval,
		logger:   logging.OrDefault(logger),
	}
}

// SampleCoreLoad takes two snapshots of cpu one interval apart.
func (s *LoadSampler) SampleCoreLoad(cpu int) (float64, error) {
	prev, err := s.source.CPUTimes(cpu)
	if err != nil {
		return 0, err
	}
	time.Sleep(s.interval)
	cur, err := s.source.CPUTimes(cpu)
	if err != nil {
		return 0, err
	}
	return Busy(prev, cur), nil
}

// SampleAllCoreLoads samples every online CPU concurrently, one goroutine per
// CPU, so the interval is paid once for the batch. Any failed worker fails the
// whole sample.
func (s *LoadSampler) SampleAllCoreLoads() (map[int]float64, error) {
	cpus, err := s.topology.OnlineCPUs()
	if err != nil {
		return nil, err
	}

	// each worker owns one slot
	loads := make([]float64, len(cpus))
	var g errgroup.Group
	for i, cpu := range cpus {
		i, cpu := i, cpu
		g.Go(func() error {
			load, err := s.SampleCoreLoad(cpu)
			if err != nil {
				return fmt.Errorf("sample cpu%d: %w", cpu, err)
			}
			loads[i] = load
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[int]float64, len(cpus))
	for i, cpu := range cpus {
		result[cpu] = loads[i]
	}

	s.logger.WithFields(logrus.Fields{
		"cpus":     len(cpus),
		"interval": s.interval,
	}).Debug("Sampled core loads")

	return result, nil
}
