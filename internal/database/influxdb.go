package database

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"

	"netcard-affinity/internal/affinity"
	"netcard-affinity/internal/config"
	"netcard-affinity/internal/logging"
	"netcard-affinity/internal/placement"
)

const (
	LoadMeasurement      = "cpu_load"
	PlacementMeasurement = "irq_placement"
)

// PointWriter is the blocking write side of an InfluxDB client.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type InfluxDBClient struct {
	client influxdb2.Client
	writer PointWriter
	host   string
	logger logrus.FieldLogger
}

// NewInfluxDBClient connects and health-checks the server before handing out
// a client.
func NewInfluxDBClient(cfg config.InfluxDBConfig, host string) (*InfluxDBClient, error) {
	logger := logging.GetLogger()

	client := influxdb2.NewClient(cfg.Host, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		logger.WithField("host", cfg.Host).WithError(err).Error("Failed to connect to InfluxDB")
		client.Close()
		return nil, err
	}
	if health.Status != "pass" {
		message := ""
		if health.Message != nil {
			message = *health.Message
		}
		logger.WithFields(logrus.Fields{
			"host":    cfg.Host,
			"status":  health.Status,
			"message": message,
		}).Error("InfluxDB health check failed")
		client.Close()
		return nil, fmt.Errorf("influxdb %s unhealthy: %s", cfg.Host, health.Status)
	}

	logger.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"bucket": cfg.Bucket,
		"org":    cfg.Org,
	}).Info("Connected to InfluxDB")

	idb := NewWithWriter(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), host, logger)
	idb.client = client
	return idb, nil
}

// NewWithWriter builds a client around an existing writer. host tags every
// point.
func NewWithWriter(writer PointWriter, host string, logger logrus.FieldLogger) *InfluxDBClient {
	return &InfluxDBClient{
		writer: writer,
		host:   host,
		logger: logging.OrDefault(logger),
	}
}

// WriteLoadSamples stores one point per CPU with its busy percentage.
func (idb *InfluxDBClient) WriteLoadSamples(ctx context.Context, loads map[int]float64, ts time.Time) error {
	cpus := make([]int, 0, len(loads))
	for cpu := range loads {
		cpus = append(cpus, cpu)
	}
	sort.Ints(cpus)

	points := make([]*write.Point, 0, len(cpus))
	for _, cpu := range cpus {
		points = append(points, influxdb2.NewPoint(LoadMeasurement,
			map[string]string{
				"host": idb.host,
				"cpu":  strconv.Itoa(cpu),
			},
			map[string]interface{}{
				"busy_percent": loads[cpu],
			},
			ts))
	}
	return idb.write(ctx, points, LoadMeasurement)
}

// WritePlacement stores one point per interrupt line of plan with the CPU
// list it was given.
func (idb *InfluxDBClient) WritePlacement(ctx context.Context, plan *placement.Plan, ts time.Time) error {
	var points []*write.Point
	for _, iface := range plan.Interrupts.Interfaces() {
		for _, line := range plan.Interrupts.Lines(iface) {
			cpus, ok := plan.Assignment.Get(line.IRQ)
			if !ok {
				continue
			}
			points = append(points, influxdb2.NewPoint(PlacementMeasurement,
				map[string]string{
					"host":      idb.host,
					"netcard":   plan.Netcard,
					"kind":      string(plan.Kind),
					"mode":      plan.Mode.String(),
					"socket":    strconv.Itoa(plan.Socket),
					"interface": iface,
					"queue":     line.Queue,
					"irq":       line.IRQ,
				},
				map[string]interface{}{
					"cpus":      affinity.FormatCPUList(cpus),
					"cpu_count": len(cpus),
				},
				ts))
		}
	}
	return idb.write(ctx, points, PlacementMeasurement)
}

func (idb *InfluxDBClient) write(ctx context.Context, points []*write.Point, measurement string) error {
	if len(points) == 0 {
		return nil
	}
	if err := idb.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write %s points: %w", measurement, err)
	}
	idb.logger.WithFields(logrus.Fields{
		"measurement": measurement,
		"points":      len(points),
	}).Debug("Wrote points to InfluxDB")
	return nil
}

func (idb *InfluxDBClient) Close() {
	if idb.client != nil {
		idb.client.Close()
	}
}
