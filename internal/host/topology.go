package host

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/cpuset"

	"netcard-affinity/internal/logging"
	"netcard-affinity/internal/sysfs"
)

// Topology maps socket id -> core id -> logical CPUs sharing that core.
// Siblings are stored in ascending CPU order.
type Topology map[int]map[int][]int

// SocketIDs returns the socket ids in ascending order.
func (t Topology) SocketIDs() []int {
	ids := make([]int, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// CoreIDs returns the core ids of socket in ascending order.
func (t Topology) CoreIDs(socket int) []int {
	cores := t[socket]
	ids := make([]int, 0, len(cores))
	for id := range cores {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Cores flattens one socket into its physical cores, ordered by core id.
func (t Topology) Cores(socket int) ([][]int, bool) {
	cores, ok := t[socket]
	if !ok {
		return nil, false
	}
	out := make([][]int, 0, len(cores))
	for _, id := range t.CoreIDs(socket) {
		out = append(out, append([]int(nil), cores[id]...))
	}
	return out, true
}

// AllCores flattens every socket, socket-major then core-minor.
func (t Topology) AllCores() [][]int {
	var out [][]int
	for _, socket := range t.SocketIDs() {
		cores, _ := t.Cores(socket)
		out = append(out, cores...)
	}
	return out
}

// CoreCount is the number of physical cores across all sockets.
func (t Topology) CoreCount() int {
	n := 0
	for _, cores := range t {
		n += len(cores)
	}
	return n
}

// CPUs returns every logical CPU in the topology, sorted.
func (t Topology) CPUs() []int {
	var cpus []int
	for _, cores := range t {
		for _, siblings := range cores {
			cpus = append(cpus, siblings...)
		}
	}
	sort.Ints(cpus)
	return cpus
}

// CPUSet returns the logical CPUs of socket as a set.
func (t Topology) CPUSet(socket int) cpuset.CPUSet {
	var cpus []int
	for _, siblings := range t[socket] {
		cpus = append(cpus, siblings...)
	}
	return cpuset.New(cpus...)
}

func (t Topology) add(socket, core, cpu int) {
	if _, ok := t[socket]; !ok {
		t[socket] = make(map[int][]int)
	}
	t[socket][core] = append(t[socket][core], cpu)
}

// TopologyReader builds a Topology from the sysfs cpu tree.
type TopologyReader struct {
	fs     *sysfs.FS
	logger logrus.FieldLogger
}

func NewTopologyReader(fs *sysfs.FS, logger logrus.FieldLogger) *TopologyReader {
	return &TopologyReader{fs: fs, logger: logging.OrDefault(logger)}
}

func (r *TopologyReader) cpuPath(elem ...string) string {
	return r.fs.SysPath(append([]string{"devices", "system", "cpu"}, elem...)...)
}

// OnlineCPUs returns the logical CPUs listed in the online file, ascending.
func (r *TopologyReader) OnlineCPUs() ([]int, error) {
	path := r.cpuPath("online")
	raw, err := r.fs.ReadString(path)
	if err != nil {
		return nil, err
	}
	set, err := cpuset.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", sysfs.ErrFileAccess, path, err)
	}
	if set.IsEmpty() {
		return nil, fmt.Errorf("%w: parse %s: no online cpus", sysfs.ErrFileAccess, path)
	}
	return set.List(), nil
}

// ReadTopology groups every online CPU by (physical package, core id).
// Nothing is cached: each call re-reads sysfs.
func (r *TopologyReader) ReadTopology() (Topology, error) {
	cpus, err := r.OnlineCPUs()
	if err != nil {
		return nil, err
	}

	topo := make(Topology)
	for _, cpu := range cpus {
		dir := "cpu" + strconv.Itoa(cpu)
		socket, err := r.fs.ReadInt(r.cpuPath(dir, "topology", "physical_package_id"))
		if err != nil {
			return nil, err
		}
		core, err := r.fs.ReadInt(r.cpuPath(dir, "topology", "core_id"))
		if err != nil {
			return nil, err
		}
		topo.add(socket, core, cpu)
	}

	r.logger.WithFields(logrus.Fields{
		"sockets":        len(topo),
		"physical_cores": topo.CoreCount(),
		"logical_cpus":   len(cpus),
	}).Debug("Read CPU topology")

	return topo, nil
}
