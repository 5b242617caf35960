package placement

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netcard-affinity/internal/affinity"
	"netcard-affinity/internal/host"
	"netcard-affinity/internal/netcard"
	"netcard-affinity/internal/sysfs"
)

const hostInterrupts = `           CPU0       CPU1       CPU2       CPU3
   0:         22          0          0          0   IO-APIC   2-edge      timer
 100:       1204          0          0          0   PCI-MSI 524288-edge      eth0-TxRx-0
 101:          0       1877          0          0   PCI-MSI 524289-edge      eth0-TxRx-1
 102:          0          0        962          0   PCI-MSI 524290-edge      eth0-TxRx-2
 110:         17          0          0          0   PCI-MSI 526336-edge      eth1-TxRx-0
 111:          0         42          0          0   PCI-MSI 526337-edge      eth1-TxRx-1
 120:        388          0          0          0   IO-APIC  19-fasteoi   eth2
NMI:          0          0          0          0   Non-maskable interrupts
`

// newHost lays out a single socket with two cores of two threads each, a
// 10G eth0, a 1G eth9 and bond0 over 1G eth1 and eth2.
func newHost(t *testing.T, skipIRQ ...string) (*Runner, afero.Fs) {
	t.Helper()
	mem := afero.NewMemMapFs()
	write := func(path, content string) {
		require.NoError(t, afero.WriteFile(mem, path, []byte(content), 0o644))
	}

	write("/sys/devices/system/cpu/online", "0-3\n")
	for cpu := 0; cpu < 4; cpu++ {
		dir := fmt.Sprintf("/sys/devices/system/cpu/cpu%d/topology", cpu)
		write(dir+"/physical_package_id", "0\n")
		write(dir+"/core_id", fmt.Sprintf("%d\n", cpu%2))
	}

	write("/proc/interrupts", hostInterrupts)
	skip := make(map[string]bool)
	for _, irq := range skipIRQ {
		skip[irq] = true
	}
	for _, irq := range []string{"0", "100", "101", "102", "110", "111", "120"} {
		if !skip[irq] {
			write("/proc/irq/"+irq+"/smp_affinity_list", "0-3\n")
		}
	}

	write("/sys/class/net/eth0/speed", "10000\n")
	write("/sys/class/net/eth1/speed", "1000\n")
	write("/sys/class/net/eth2/speed", "1000\n")
	write("/sys/class/net/eth9/speed", "1000\n")
	write("/proc/net/bonding/bond0", "Bonding Mode: IEEE 802.3ad Dynamic link aggregation\n")
	write("/sys/class/net/bond0/bonding/slaves", "eth1 eth2\n")

	fs := sysfs.New(mem, "/proc", "/sys")
	runner := NewRunner(
		host.NewTopologyReader(fs, nil),
		netcard.NewClassifier(fs, nil),
		affinity.NewWriter(fs, nil),
		nil,
	)
	return runner, mem
}

func affinityOf(t *testing.T, mem afero.Fs, irq string) string {
	t.Helper()
	data, err := afero.ReadFile(mem, "/proc/irq/"+irq+"/smp_affinity_list")
	require.NoError(t, err)
	return string(data)
}

func TestRunHighSpeedBalanced(t *testing.T) {
	runner, mem := newHost(t)

	plan, err := runner.Run("eth0", ModeBalanced, 0)
	require.NoError(t, err)
	assert.Equal(t, netcard.KindHighSpeed, plan.Kind)
	assert.Equal(t, []string{"100", "101", "102"}, plan.Assignment.IRQs())

	assert.Equal(t, "0,2", affinityOf(t, mem, "100"))
	assert.Equal(t, "1,3", affinityOf(t, mem, "101"))
	assert.Equal(t, "0,2", affinityOf(t, mem, "102"))
	// unrelated lines are untouched
	assert.Equal(t, "0-3\n", affinityOf(t, mem, "0"))
	assert.Equal(t, "0-3\n", affinityOf(t, mem, "110"))
}

func TestRunBondDedicated(t *testing.T) {
	runner, mem := newHost(t)

	plan, err := runner.Run("bond0", ModeDedicated, 0)
	require.NoError(t, err)
	assert.Equal(t, netcard.KindBond, plan.Kind)
	assert.Equal(t, []string{"eth1", "eth2"}, plan.Interrupts.Interfaces())

	assert.Equal(t, "0,2", affinityOf(t, mem, "110"))
	assert.Equal(t, "0,2", affinityOf(t, mem, "111"))
	assert.Equal(t, "1,3", affinityOf(t, mem, "120"))
}

func TestPlanDoesNotWrite(t *testing.T) {
	runner, mem := newHost(t)

	plan, err := runner.Plan("eth0", ModeDispersed, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.Assignment.Len())
	for _, irq := range []string{"100", "101", "102"} {
		assert.Equal(t, "0-3\n", affinityOf(t, mem, irq))
	}
}

func TestRunUnknownNetCard(t *testing.T) {
	runner, mem := newHost(t)

	_, err := runner.Run("eth9", ModeBalanced, 0)
	assert.ErrorIs(t, err, netcard.ErrUnknownNetCard)

	_, err = runner.Run("eth7", ModeBalanced, 0)
	assert.ErrorIs(t, err, sysfs.ErrFileAccess)
	assert.Equal(t, "0-3\n", affinityOf(t, mem, "100"))
}

func TestRunUnknownModeWritesNothing(t *testing.T) {
	runner, mem := newHost(t)

	_, err := runner.Run("eth0", Mode(4), 0)
	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.Equal(t, "0-3\n", affinityOf(t, mem, "100"))
}

func TestRunUnknownSocketWritesNothing(t *testing.T) {
	runner, mem := newHost(t)

	_, err := runner.Run("eth0", ModeBalanced, 1)
	assert.ErrorIs(t, err, ErrUnknownSocket)
	assert.Equal(t, "0-3\n", affinityOf(t, mem, "100"))
}

func TestRunStopsAtMissingIRQ(t *testing.T) {
	runner, mem := newHost(t, "101")

	plan, err := runner.Run("eth0", ModeBalanced, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, sysfs.ErrFileAccess)
	assert.NotNil(t, plan)

	// earlier writes stay, later ones never happen
	assert.Equal(t, "0,2", affinityOf(t, mem, "100"))
	assert.Equal(t, "0-3\n", affinityOf(t, mem, "102"))
}

type recordingApplier struct {
	failOn  string
	applied []string
}

var errWrite = errors.New("write refused")

func (a *recordingApplier) SetAffinity(irq string, _ []int) error {
	if irq == a.failOn {
		return errWrite
	}
	a.applied = append(a.applied, irq)
	return nil
}

func TestApplyInOrderAndStopsAtFirstFailure(t *testing.T) {
	a := NewCoreAssignment()
	a.Set("30", []int{0})
	a.Set("10", []int{1})
	a.Set("20", []int{0})

	ok := &recordingApplier{}
	require.NoError(t, Apply(a, ok, nil))
	assert.Equal(t, []string{"30", "10", "20"}, ok.applied)

	failing := &recordingApplier{failOn: "10"}
	err := Apply(a, failing, nil)
	assert.ErrorIs(t, err, errWrite)
	assert.Contains(t, err.Error(), "irq 10")
	assert.Equal(t, []string{"30"}, failing.applied)
}

func TestReportAfterRun(t *testing.T) {
	runner, _ := newHost(t)

	_, err := runner.Run("eth0", ModeBalanced, 0)
	require.NoError(t, err)

	rows, err := runner.Report("eth0")
	require.NoError(t, err)
	assert.Equal(t, []ReportRow{
		{Netcard: "eth0", Queue: "eth0-TxRx-0", IRQ: "100", Affinity: []int{0, 2}},
		{Netcard: "eth0", Queue: "eth0-TxRx-1", IRQ: "101", Affinity: []int{1, 3}},
		{Netcard: "eth0", Queue: "eth0-TxRx-2", IRQ: "102", Affinity: []int{0, 2}},
	}, rows)
}

func TestReportBondLegacyLine(t *testing.T) {
	runner, _ := newHost(t)

	rows, err := runner.Report("bond0")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ReportRow{Netcard: "eth2", Queue: "eth2", IRQ: "120", Affinity: []int{0, 1, 2, 3}}, rows[2])
}

func TestAssignmentCopiesInput(t *testing.T) {
	cpus := []int{0, 1}
	a := NewCoreAssignment()
	a.Set("5", cpus)
	cpus[0] = 9

	got, ok := a.Get("5")
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, got)

	data, err := a.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"irq":"5","cpus":[0,1]}]`, string(data))
}

func TestAssignmentJSONKeepsApplicationOrder(t *testing.T) {
	a := NewCoreAssignment()
	a.Set("120", []int{1})
	a.Set("9", []int{0})
	a.Set("100", []int{2, 3})

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `[{"irq":"120","cpus":[1]},{"irq":"9","cpus":[0]},{"irq":"100","cpus":[2,3]}]`, string(data))
}
