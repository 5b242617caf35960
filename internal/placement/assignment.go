package placement

import (
	"encoding/json"
)

// CoreAssignment maps irq number to the logical CPUs that should service it.
// IRQs keep the order in which they were assigned, which is the order they
// are applied in.
type CoreAssignment struct {
	order []string
	cpus  map[string][]int
}

func NewCoreAssignment() *CoreAssignment {
	return &CoreAssignment{cpus: make(map[string][]int)}
}

func (a *CoreAssignment) Set(irq string, cpus []int) {
	if _, ok := a.cpus[irq]; !ok {
		a.order = append(a.order, irq)
	}
	a.cpus[irq] = append([]int(nil), cpus...)
}

func (a *CoreAssignment) Get(irq string) ([]int, bool) {
	cpus, ok := a.cpus[irq]
	return cpus, ok
}

// IRQs returns the assigned IRQs in assignment order.
func (a *CoreAssignment) IRQs() []string {
	return append([]string(nil), a.order...)
}

func (a *CoreAssignment) Len() int { return len(a.order) }

// Map returns a copy of the assignment as a plain map.
func (a *CoreAssignment) Map() map[string][]int {
	out := make(map[string][]int, len(a.cpus))
	for irq, cpus := range a.cpus {
		out[irq] = append([]int(nil), cpus...)
	}
	return out
}

type assignmentEntry struct {
	IRQ  string `json:"irq"`
	CPUs []int  `json:"cpus"`
}

// MarshalJSON encodes the assignment as a list in application order.
func (a *CoreAssignment) MarshalJSON() ([]byte, error) {
	entries := make([]assignmentEntry, 0, len(a.order))
	for _, irq := range a.order {
		entries = append(entries, assignmentEntry{IRQ: irq, CPUs: a.cpus[irq]})
	}
	return json.Marshal(entries)
}
