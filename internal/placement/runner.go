package placement

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"netcard-affinity/internal/affinity"
	"netcard-affinity/internal/host"
	"netcard-affinity/internal/logging"
	"netcard-affinity/internal/netcard"
)

// AffinityApplier commits a CPU list to one IRQ.
type AffinityApplier interface {
	SetAffinity(irq string, cpus []int) error
}

// AffinityReader reads the CPU list currently serving one IRQ.
type AffinityReader interface {
	GetAffinity(irq string) ([]int, error)
}

// Plan is a computed, not yet applied, placement for one card.
type Plan struct {
	Netcard    string                `json:"netcard"`
	Kind       netcard.Kind          `json:"kind"`
	Mode       Mode                  `json:"mode"`
	Socket     int                   `json:"socket"`
	Interrupts *netcard.InterruptMap `json:"-"`
	Assignment *CoreAssignment       `json:"assignment"`
}

// ReportRow is the current affinity of one interrupt line.
type ReportRow struct {
	Netcard  string `json:"netcard"`
	Queue    string `json:"queue"`
	IRQ      string `json:"irq"`
	Affinity []int  `json:"affinity"`
}

// Runner drives one placement: topology, card classification, interrupt
// scan, strategy, then the affinity writes.
type Runner struct {
	topology   *host.TopologyReader
	classifier *netcard.Classifier
	writer     *affinity.Writer
	logger     logrus.FieldLogger
}

func NewRunner(topology *host.TopologyReader, classifier *netcard.Classifier, writer *affinity.Writer, logger logrus.FieldLogger) *Runner {
	return &Runner{
		topology:   topology,
		classifier: classifier,
		writer:     writer,
		logger:     logging.OrDefault(logger),
	}
}

// Plan computes the assignment of every interrupt line of name for mode on
// socket. Nothing is written.
func (r *Runner) Plan(name string, mode Mode, socket int) (*Plan, error) {
	strategy, err := New(mode, r.classifier, r.logger)
	if err != nil {
		return nil, err
	}
	card, err := r.classifier.ClassifyCard(name)
	if err != nil {
		return nil, err
	}
	irqs, err := card.GenInterruptsDict()
	if err != nil {
		return nil, err
	}
	topo, err := r.topology.ReadTopology()
	if err != nil {
		return nil, err
	}
	assignment, err := strategy.Assign(socket, topo, irqs)
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"netcard": name,
		"kind":    card.Kind(),
		"mode":    mode.String(),
		"socket":  socket,
		"irqs":    assignment.Len(),
	}).Info("Computed IRQ placement")

	return &Plan{
		Netcard:    name,
		Kind:       card.Kind(),
		Mode:       mode,
		Socket:     socket,
		Interrupts: irqs,
		Assignment: assignment,
	}, nil
}

// Apply writes the plan through the runner's affinity writer.
func (r *Runner) Apply(plan *Plan) error {
	return Apply(plan.Assignment, r.writer, r.logger)
}

// Run plans and applies in one step.
func (r *Runner) Run(name string, mode Mode, socket int) (*Plan, error) {
	plan, err := r.Plan(name, mode, socket)
	if err != nil {
		return nil, err
	}
	if err := r.Apply(plan); err != nil {
		return plan, err
	}
	return plan, nil
}

// Report reads back the current affinity of every line of the card name.
func (r *Runner) Report(name string) ([]ReportRow, error) {
	card, err := r.classifier.ClassifyCard(name)
	if err != nil {
		return nil, err
	}
	irqs, err := card.GenInterruptsDict()
	if err != nil {
		return nil, err
	}
	return Report(irqs, r.writer)
}

// Apply commits every entry of a in order. The first failure stops the run;
// IRQs already written keep their new affinity.
func Apply(a *CoreAssignment, applier AffinityApplier, logger logrus.FieldLogger) error {
	logger = logging.OrDefault(logger)
	for i, irq := range a.IRQs() {
		cpus, _ := a.Get(irq)
		if err := applier.SetAffinity(irq, cpus); err != nil {
			logger.WithFields(logrus.Fields{
				"irq":     irq,
				"applied": i,
				"pending": a.Len() - i,
			}).WithError(err).Error("Failed to set IRQ affinity, aborting")
			return fmt.Errorf("set affinity of irq %s: %w", irq, err)
		}
	}
	logger.WithField("irqs", a.Len()).Info("Applied IRQ placement")
	return nil
}

// Report lists every line of irqs with the affinity the kernel reports.
func Report(irqs *netcard.InterruptMap, reader AffinityReader) ([]ReportRow, error) {
	rows := make([]ReportRow, 0, irqs.Len())
	for _, iface := range irqs.Interfaces() {
		for _, line := range irqs.Lines(iface) {
			cpus, err := reader.GetAffinity(line.IRQ)
			if err != nil {
				return nil, err
			}
			rows = append(rows, ReportRow{
				Netcard:  iface,
				Queue:    line.Queue,
				IRQ:      line.IRQ,
				Affinity: cpus,
			})
		}
	}
	return rows, nil
}
