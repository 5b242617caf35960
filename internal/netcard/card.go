package netcard

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"netcard-affinity/internal/logging"
	"netcard-affinity/internal/sysfs"
)

// HighSpeedMbps is the link speed from which a card counts as high-speed.
const HighSpeedMbps = 10000

// ErrUnknownNetCard is returned for interfaces that are neither bonded nor
// high-speed.
var ErrUnknownNetCard = errors.New("unknown net card")

type Kind string

const (
	KindBond      Kind = "bond"
	KindHighSpeed Kind = "high-speed"
)

// Card is a network interface whose interrupt lines can be enumerated.
type Card interface {
	Name() string
	Kind() Kind
	// GenInterruptsDict maps each physical member interface to its lines.
	GenInterruptsDict() (*InterruptMap, error)
}

// BondedCard aggregates the interrupt lines of its slave interfaces.
type BondedCard struct {
	name    string
	members []string
	fs      *sysfs.FS
	logger  logrus.FieldLogger
}

func (c *BondedCard) Name() string { return c.name }

func (c *BondedCard) Kind() Kind { return KindBond }

// Members returns the slave interfaces as last read from sysfs.
func (c *BondedCard) Members() []string {
	return append([]string(nil), c.members...)
}

// GenInterruptsDict re-reads the slave list so members enslaved after
// classification are picked up.
func (c *BondedCard) GenInterruptsDict() (*InterruptMap, error) {
	members, err := readSlaves(c.fs, c.name)
	if err != nil {
		return nil, err
	}
	c.members = members

	table, err := readInterruptTable(c.fs)
	if err != nil {
		return nil, err
	}
	irqs := NewInterruptMap()
	for _, member := range c.members {
		lines := matchInterrupts(table, member)
		if len(lines) == 0 {
			c.logger.WithFields(logrus.Fields{"bond": c.name, "slave": member}).Warn("No interrupt lines found for slave")
		}
		irqs.Set(member, lines)
	}
	return irqs, nil
}

// HighSpeedCard is a single physical interface of at least 10Gbit/s.
type HighSpeedCard struct {
	name   string
	speed  int
	fs     *sysfs.FS
	logger logrus.FieldLogger
}

func (c *HighSpeedCard) Name() string { return c.name }

func (c *HighSpeedCard) Kind() Kind { return KindHighSpeed }

// Speed is the link speed in Mbit/s observed at classification.
func (c *HighSpeedCard) Speed() int { return c.speed }

func (c *HighSpeedCard) GenInterruptsDict() (*InterruptMap, error) {
	table, err := readInterruptTable(c.fs)
	if err != nil {
		return nil, err
	}
	lines := matchInterrupts(table, c.name)
	if len(lines) == 0 {
		c.logger.WithField("netcard", c.name).Warn("No interrupt lines found")
	}
	irqs := NewInterruptMap()
	irqs.Set(c.name, lines)
	return irqs, nil
}

func readSlaves(fs *sysfs.FS, bond string) ([]string, error) {
	return fs.ReadFields(fs.SysPath("class", "net", bond, "bonding", "slaves"))
}

func readInterruptTable(fs *sysfs.FS) ([]string, error) {
	return fs.ReadLines(fs.ProcPath("interrupts"))
}

// Classifier reads bonding and link speed metadata to build Cards.
type Classifier struct {
	fs     *sysfs.FS
	logger logrus.FieldLogger
}

func NewClassifier(fs *sysfs.FS, logger logrus.FieldLogger) *Classifier {
	return &Classifier{fs: fs, logger: logging.OrDefault(logger)}
}

// IsBond reports whether the bonding driver exposes a status file for name.
func (c *Classifier) IsBond(name string) bool {
	return c.fs.IsFile(c.fs.ProcPath("net", "bonding", name))
}

// LinkSpeed returns the reported link speed in Mbit/s.
func (c *Classifier) LinkSpeed(name string) (int, error) {
	return c.fs.ReadInt(c.fs.SysPath("class", "net", name, "speed"))
}

func (c *Classifier) IsHighSpeed(name string) (bool, error) {
	speed, err := c.LinkSpeed(name)
	if err != nil {
		return false, err
	}
	return speed >= HighSpeedMbps, nil
}

// ClassifyCard decides once what kind of card name is: bonded first, then
// high-speed, otherwise ErrUnknownNetCard.
func (c *Classifier) ClassifyCard(name string) (Card, error) {
	logger := c.logger.WithField("netcard", name)

	if c.IsBond(name) {
		members, err := readSlaves(c.fs, name)
		if err != nil {
			return nil, err
		}
		logger.WithField("slaves", members).Debug("Classified as bonded card")
		return &BondedCard{name: name, members: members, fs: c.fs, logger: c.logger}, nil
	}

	speed, err := c.LinkSpeed(name)
	if err != nil {
		return nil, err
	}
	if speed >= HighSpeedMbps {
		logger.WithField("speed_mbps", speed).Debug("Classified as high-speed card")
		return &HighSpeedCard{name: name, speed: speed, fs: c.fs, logger: c.logger}, nil
	}

	return nil, fmt.Errorf("%w: %s (speed %d Mbit/s, not bonded)", ErrUnknownNetCard, name, speed)
}
