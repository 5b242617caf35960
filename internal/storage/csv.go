package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"netcard-affinity/internal/affinity"
	"netcard-affinity/internal/logging"
	"netcard-affinity/internal/placement"
)

var (
	loadHeader   = []string{"utc_timestamp", "cpu", "busy_percent"}
	reportHeader = []string{"netcard", "queue", "irq", "affinity"}
)

// WriteLoads writes one row per CPU, ordered by CPU id.
func WriteLoads(w io.Writer, loads map[int]float64, ts time.Time) error {
	cpus := make([]int, 0, len(loads))
	for cpu := range loads {
		cpus = append(cpus, cpu)
	}
	sort.Ints(cpus)

	rows := make([][]string, 0, len(cpus))
	stamp := ts.UTC().Format(time.RFC3339)
	for _, cpu := range cpus {
		rows = append(rows, []string{
			stamp,
			strconv.Itoa(cpu),
			strconv.FormatFloat(loads[cpu], 'f', 2, 64),
		})
	}
	return writeAll(w, loadHeader, rows)
}

// WriteReport writes one row per interrupt line. The affinity column holds
// the comma separated CPU list.
func WriteReport(w io.Writer, report []placement.ReportRow) error {
	rows := make([][]string, 0, len(report))
	for _, row := range report {
		rows = append(rows, []string{row.Netcard, row.Queue, row.IRQ, affinity.FormatCPUList(row.Affinity)})
	}
	return writeAll(w, reportHeader, rows)
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

// ExportToFile creates filename, including missing parent directories, and
// fills it with write.
func ExportToFile(filename string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to export %s: %w", filename, err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	logging.GetLogger().WithFields(logrus.Fields{
		"filename": filename,
	}).Info("Exported CSV")
	return nil
}
