package placement

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"netcard-affinity/internal/host"
	"netcard-affinity/internal/logging"
	"netcard-affinity/internal/netcard"
)

var (
	ErrUnknownMode   = errors.New("unknown mode")
	ErrUnknownSocket = errors.New("unknown socket")
	ErrNoCores       = errors.New("no cores available")
)

// Mode identifies a placement strategy on the command line.
type Mode int

const (
	ModeBalanced  Mode = 1
	ModeDedicated Mode = 2
	ModeDispersed Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModeBalanced:
		return "balanced"
	case ModeDedicated:
		return "dedicated"
	case ModeDispersed:
		return "dispersed"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Strategy maps every interrupt line of irqs onto a set of logical CPUs.
// Interfaces and lines are visited in InterruptMap order, so identical inputs
// always produce identical assignments.
type Strategy interface {
	Mode() Mode
	Assign(socket int, topo host.Topology, irqs *netcard.InterruptMap) (*CoreAssignment, error)
}

// SpeedChecker tells whether an interface links at 10Gbit/s or more.
type SpeedChecker interface {
	IsHighSpeed(name string) (bool, error)
}

// New returns the strategy for mode. The checker is only used by
// ModeDedicated.
func New(mode Mode, speeds SpeedChecker, logger logrus.FieldLogger) (Strategy, error) {
	logger = logging.OrDefault(logger)
	switch mode {
	case ModeBalanced:
		return &balanced{}, nil
	case ModeDedicated:
		if speeds == nil {
			return nil, fmt.Errorf("mode %d needs a speed checker", int(mode))
		}
		return &dedicated{speeds: speeds, logger: logger}, nil
	case ModeDispersed:
		return &dispersed{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
}

func socketCores(socket int, topo host.Topology) ([][]int, error) {
	cores, ok := topo.Cores(socket)
	if !ok {
		return nil, fmt.Errorf("%w: %d (have %v)", ErrUnknownSocket, socket, topo.SocketIDs())
	}
	if len(cores) == 0 {
		return nil, fmt.Errorf("%w: socket %d", ErrNoCores, socket)
	}
	return cores, nil
}

// roundRobin hands out cores in order, wrapping at the end, across every line
// of every interface.
func roundRobin(cores [][]int, irqs *netcard.InterruptMap) *CoreAssignment {
	out := NewCoreAssignment()
	i := 0
	for _, iface := range irqs.Interfaces() {
		for _, line := range irqs.Lines(iface) {
			out.Set(line.IRQ, cores[i])
			i = (i + 1) % len(cores)
		}
	}
	return out
}

// balanced spreads lines over the physical cores of one socket, one whole
// core (all its hyperthreads) per line.
type balanced struct{}

func (s *balanced) Mode() Mode { return ModeBalanced }

func (s *balanced) Assign(socket int, topo host.Topology, irqs *netcard.InterruptMap) (*CoreAssignment, error) {
	cores, err := socketCores(socket, topo)
	if err != nil {
		return nil, err
	}
	return roundRobin(cores, irqs), nil
}

// dedicated gives every slow interface a core of its own for all its lines,
// while high-speed interfaces spread their queues over the socket starting
// from the first core.
type dedicated struct {
	speeds SpeedChecker
	logger logrus.FieldLogger
}

func (s *dedicated) Mode() Mode { return ModeDedicated }

func (s *dedicated) Assign(socket int, topo host.Topology, irqs *netcard.InterruptMap) (*CoreAssignment, error) {
	cores, err := socketCores(socket, topo)
	if err != nil {
		return nil, err
	}

	out := NewCoreAssignment()
	next := 0
	for _, iface := range irqs.Interfaces() {
		fast, err := s.speeds.IsHighSpeed(iface)
		if err != nil {
			return nil, err
		}
		lines := irqs.Lines(iface)
		if fast {
			for i, line := range lines {
				out.Set(line.IRQ, cores[i%len(cores)])
			}
			continue
		}

		if next >= len(cores) {
			s.logger.WithFields(logrus.Fields{
				"netcard": iface,
				"socket":  socket,
				"cores":   len(cores),
			}).Warn("More slow interfaces than cores, dedicated cores are shared")
		}
		core := cores[next%len(cores)]
		for _, line := range lines {
			out.Set(line.IRQ, core)
		}
		next++
	}
	return out, nil
}

// dispersed round-robins every line over the physical cores of every socket.
// The socket argument is ignored.
type dispersed struct{}

func (s *dispersed) Mode() Mode { return ModeDispersed }

func (s *dispersed) Assign(_ int, topo host.Topology, irqs *netcard.InterruptMap) (*CoreAssignment, error) {
	cores := topo.AllCores()
	if len(cores) == 0 {
		return nil, ErrNoCores
	}
	return roundRobin(cores, irqs), nil
}
