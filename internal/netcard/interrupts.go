package netcard

import (
	"strings"
)

// InterruptLine is one row of the interrupt table attributed to an interface.
type InterruptLine struct {
	Queue string `json:"queue"`
	IRQ   string `json:"irq"`
}

// InterruptMap maps physical interface name to its interrupt lines, keeping
// interfaces in the order they were added and lines in table order.
type InterruptMap struct {
	order []string
	lines map[string][]InterruptLine
}

func NewInterruptMap() *InterruptMap {
	return &InterruptMap{lines: make(map[string][]InterruptLine)}
}

// Set records the lines of iface. A repeated iface keeps its first position.
func (m *InterruptMap) Set(iface string, lines []InterruptLine) {
	if _, ok := m.lines[iface]; !ok {
		m.order = append(m.order, iface)
	}
	m.lines[iface] = lines
}

// Interfaces returns the interface names in insertion order.
func (m *InterruptMap) Interfaces() []string {
	return append([]string(nil), m.order...)
}

func (m *InterruptMap) Lines(iface string) []InterruptLine {
	return m.lines[iface]
}

// Len is the total number of interrupt lines across interfaces.
func (m *InterruptMap) Len() int {
	n := 0
	for _, lines := range m.lines {
		n += len(lines)
	}
	return n
}

// matchInterrupts picks the rows of the interrupt table that belong to iface.
// Per-queue columns ("eth0-TxRx-0") win; bare "eth0" style columns are used
// only when no per-queue row exists.
func matchInterrupts(table []string, iface string) []InterruptLine {
	var queued, legacy []InterruptLine
	prefix := iface + "-"
	for _, row := range table {
		cols := strings.Fields(row)
		if len(cols) < 2 || !strings.HasSuffix(cols[0], ":") {
			continue
		}
		multi, single := false, false
		for _, col := range cols[1:] {
			switch {
			case strings.HasPrefix(col, prefix):
				multi = true
			case strings.HasPrefix(col, iface):
				single = true
			}
		}
		if !multi && !single {
			continue
		}
		line := InterruptLine{
			Queue: cols[len(cols)-1],
			IRQ:   strings.TrimSuffix(cols[0], ":"),
		}
		if multi {
			queued = append(queued, line)
		} else {
			legacy = append(legacy, line)
		}
	}
	if len(queued) > 0 {
		return queued
	}
	if legacy == nil {
		return []InterruptLine{}
	}
	return legacy
}
