package host

import (
	"os"

	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"

	"netcard-affinity/internal/logging"
	"netcard-affinity/internal/sysfs"
)

const unknown = "unknown"

// Info describes the machine a placement runs on.
type Info struct {
	Hostname      string `json:"hostname"`
	KernelVersion string `json:"kernel_version"`
	CPUVendor     string `json:"cpu_vendor"`
	CPUModel      string `json:"cpu_model"`
	Sockets       int    `json:"sockets"`
	PhysicalCores int    `json:"physical_cores"`
	LogicalCPUs   int    `json:"logical_cpus"`
}

// ReadInfo collects host identification from procfs and the topology already
// read from sysfs. CPU vendor and model come from the first cpuinfo entry.
// Missing kernel or cpuinfo entries are reported as "unknown" rather than
// failing.
func ReadInfo(fs *sysfs.FS, topo Topology, logger logrus.FieldLogger) *Info {
	logger = logging.OrDefault(logger)

	info := &Info{
		Hostname:      unknown,
		KernelVersion: unknown,
		CPUVendor:     unknown,
		CPUModel:      unknown,
		Sockets:       len(topo),
		PhysicalCores: topo.CoreCount(),
		LogicalCPUs:   len(topo.CPUs()),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if release, err := fs.ReadString(fs.ProcPath("sys", "kernel", "osrelease")); err == nil && release != "" {
		info.KernelVersion = release
	} else if err != nil {
		logger.WithError(err).Debug("Kernel release not available")
	}

	procFS, err := procfs.NewFS(fs.ProcRoot())
	if err != nil {
		logger.WithError(err).Debug("procfs not available")
		return info
	}
	cpus, err := procFS.CPUInfo()
	if err != nil || len(cpus) == 0 {
		logger.WithError(err).Debug("cpuinfo not available")
		return info
	}
	if cpus[0].VendorID != "" {
		info.CPUVendor = cpus[0].VendorID
	}
	if cpus[0].ModelName != "" {
		info.CPUModel = cpus[0].ModelName
	}
	return info
}
