package host

import (
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netcard-affinity/internal/sysfs"
)

type cpuFixture struct {
	socket int
	core   int
}

// makeSysFS lays out /sys/devices/system/cpu for the given cpus, indexed by
// logical id.
func makeSysFS(t *testing.T, online string, cpus map[int]cpuFixture) (*sysfs.FS, afero.Fs) {
	t.Helper()
	mem := afero.NewMemMapFs()
	base := "/sys/devices/system/cpu"
	require.NoError(t, afero.WriteFile(mem, base+"/online", []byte(online+"\n"), 0o644))
	for id, c := range cpus {
		dir := fmt.Sprintf("%s/cpu%d/topology", base, id)
		require.NoError(t, afero.WriteFile(mem, dir+"/physical_package_id", []byte(fmt.Sprintf("%d\n", c.socket)), 0o644))
		require.NoError(t, afero.WriteFile(mem, dir+"/core_id", []byte(fmt.Sprintf("%d\n", c.core)), 0o644))
	}
	return sysfs.New(mem, "/proc", "/sys"), mem
}

// equalSockets builds sockets x cores x threads with sibling threads numbered
// the way Linux enumerates them: thread t of core c on socket s is
// t*(sockets*cores) + s*cores + c.
func equalSockets(sockets, cores, threads int) (string, map[int]cpuFixture) {
	out := make(map[int]cpuFixture)
	total := sockets * cores * threads
	for cpu := 0; cpu < total; cpu++ {
		idx := cpu % (sockets * cores)
		out[cpu] = cpuFixture{socket: idx / cores, core: idx % cores}
	}
	return fmt.Sprintf("0-%d", total-1), out
}

func TestReadTopologyGroupsSiblings(t *testing.T) {
	online, cpus := equalSockets(2, 2, 2)
	fs, _ := makeSysFS(t, online, cpus)

	topo, err := NewTopologyReader(fs, nil).ReadTopology()
	require.NoError(t, err)

	assert.Equal(t, Topology{
		0: {0: {0, 4}, 1: {1, 5}},
		1: {0: {2, 6}, 1: {3, 7}},
	}, topo)
	assert.Equal(t, []int{0, 1}, topo.SocketIDs())
	assert.Equal(t, 4, topo.CoreCount())
	assert.Equal(t, "2-3,6-7", topo.CPUSet(1).String())
}

func TestReadTopologyPartitionsOnlineRange(t *testing.T) {
	for _, shape := range [][3]int{{1, 1, 1}, {1, 4, 2}, {2, 3, 1}, {2, 8, 2}, {4, 2, 2}} {
		online, cpus := equalSockets(shape[0], shape[1], shape[2])
		fs, _ := makeSysFS(t, online, cpus)

		topo, err := NewTopologyReader(fs, nil).ReadTopology()
		require.NoError(t, err, "shape %v", shape)

		seen := make(map[int]int)
		for _, cores := range topo {
			for _, siblings := range cores {
				for _, cpu := range siblings {
					seen[cpu]++
				}
			}
		}
		total := shape[0] * shape[1] * shape[2]
		assert.Len(t, seen, total, "shape %v", shape)
		for cpu := 0; cpu < total; cpu++ {
			assert.Equal(t, 1, seen[cpu], "cpu %d in shape %v", cpu, shape)
		}
	}
}

func TestReadTopologyNonContiguousCoreIDs(t *testing.T) {
	fs, _ := makeSysFS(t, "0-3", map[int]cpuFixture{
		0: {socket: 0, core: 0},
		1: {socket: 0, core: 8},
		2: {socket: 0, core: 2},
		3: {socket: 0, core: 8},
	})

	topo, err := NewTopologyReader(fs, nil).ReadTopology()
	require.NoError(t, err)

	cores, ok := topo.Cores(0)
	require.True(t, ok)
	assert.Equal(t, [][]int{{0}, {2}, {1, 3}}, cores)

	_, ok = topo.Cores(1)
	assert.False(t, ok)
}

func TestAllCoresIsSocketMajor(t *testing.T) {
	topo := Topology{
		1: {0: {4}, 1: {5}},
		0: {1: {1, 3}, 0: {0, 2}},
	}
	assert.Equal(t, [][]int{{0, 2}, {1, 3}, {4}, {5}}, topo.AllCores())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, topo.CPUs())
}

func TestReadTopologyMissingAttribute(t *testing.T) {
	fs, mem := makeSysFS(t, "0-1", map[int]cpuFixture{
		0: {socket: 0, core: 0},
		1: {socket: 0, core: 1},
	})
	require.NoError(t, mem.Remove("/sys/devices/system/cpu/cpu1/topology/core_id"))

	_, err := NewTopologyReader(fs, nil).ReadTopology()
	assert.ErrorIs(t, err, sysfs.ErrFileAccess)
}

func TestReadTopologyMissingOnlineFile(t *testing.T) {
	fs := sysfs.New(afero.NewMemMapFs(), "/proc", "/sys")
	_, err := NewTopologyReader(fs, nil).ReadTopology()
	assert.ErrorIs(t, err, sysfs.ErrFileAccess)
}

func TestOnlineCPUsSingleCPU(t *testing.T) {
	fs, _ := makeSysFS(t, "0", map[int]cpuFixture{0: {}})
	cpus, err := NewTopologyReader(fs, nil).OnlineCPUs()
	require.NoError(t, err)
	assert.Equal(t, []int{0}, cpus)
}

func TestOnlineCPUsMalformed(t *testing.T) {
	fs, _ := makeSysFS(t, "zero-three", nil)
	_, err := NewTopologyReader(fs, nil).OnlineCPUs()
	assert.ErrorIs(t, err, sysfs.ErrFileAccess)
}
