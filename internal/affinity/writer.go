package affinity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/cpuset"

	"netcard-affinity/internal/logging"
	"netcard-affinity/internal/sysfs"
)

const affinityListFile = "smp_affinity_list"

var ErrEmptyCPUList = errors.New("empty cpu list")

// FormatCPUList joins cpus with commas, keeping their order.
func FormatCPUList(cpus []int) string {
	parts := make([]string, len(cpus))
	for i, cpu := range cpus {
		parts[i] = strconv.Itoa(cpu)
	}
	return strings.Join(parts, ",")
}

// Writer commits CPU sets to /proc/irq/<irq>/smp_affinity_list.
type Writer struct {
	fs     *sysfs.FS
	logger logrus.FieldLogger
}

func NewWriter(fs *sysfs.FS, logger logrus.FieldLogger) *Writer {
	return &Writer{fs: fs, logger: logging.OrDefault(logger)}
}

func (w *Writer) path(irq string) string {
	return w.fs.ProcPath("irq", irq, affinityListFile)
}

// SetAffinity writes cpus, comma joined, as the affinity of irq.
func (w *Writer) SetAffinity(irq string, cpus []int) error {
	if len(cpus) == 0 {
		return fmt.Errorf("irq %s: %w", irq, ErrEmptyCPUList)
	}
	return w.SetAffinityList(irq, FormatCPUList(cpus))
}

// SetAffinityList writes a pre-formatted list ("0,1" or "0-3") as the affinity
// of irq. There is no retry; a failed write is returned as is.
func (w *Writer) SetAffinityList(irq, list string) error {
	if strings.TrimSpace(list) == "" {
		return fmt.Errorf("irq %s: %w", irq, ErrEmptyCPUList)
	}
	if err := w.fs.Write(w.path(irq), list); err != nil {
		return err
	}
	w.logger.WithFields(logrus.Fields{
		"irq":  irq,
		"cpus": list,
	}).Debug("Set IRQ affinity")
	return nil
}

// GetAffinity reads back the kernel's view of the affinity of irq. The kernel
// reports ranges ("0-3,8"), which are expanded.
func (w *Writer) GetAffinity(irq string) ([]int, error) {
	path := w.path(irq)
	raw, err := w.fs.ReadString(path)
	if err != nil {
		return nil, err
	}
	set, err := cpuset.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", sysfs.ErrFileAccess, path, err)
	}
	return set.List(), nil
}
