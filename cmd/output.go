package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"netcard-affinity/internal/affinity"
	"netcard-affinity/internal/host"
	"netcard-affinity/internal/placement"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

func printTopology(w io.Writer, topo host.Topology) {
	for _, socket := range topo.SocketIDs() {
		fmt.Fprintf(w, "socket %d: cpus %s\n", socket, topo.CPUSet(socket).String())
		for _, core := range topo.CoreIDs(socket) {
			fmt.Fprintf(w, "  core %d: %s\n", core, affinity.FormatCPUList(topo[socket][core]))
		}
	}
}

func printInfo(w io.Writer, info *host.Info) {
	fmt.Fprintf(w, "hostname:       %s\n", info.Hostname)
	fmt.Fprintf(w, "kernel:         %s\n", info.KernelVersion)
	fmt.Fprintf(w, "cpu:            %s %s\n", info.CPUVendor, info.CPUModel)
	fmt.Fprintf(w, "sockets:        %d\n", info.Sockets)
	fmt.Fprintf(w, "physical cores: %d\n", info.PhysicalCores)
	fmt.Fprintf(w, "logical cpus:   %d\n", info.LogicalCPUs)
}

func printPlan(w io.Writer, plan *placement.Plan, dryRun bool) {
	verb := "set"
	if dryRun {
		verb = "would set"
	}
	fmt.Fprintf(w, "%s (%s) mode %d %s socket %d\n", plan.Netcard, plan.Kind, int(plan.Mode), plan.Mode, plan.Socket)
	for _, iface := range plan.Interrupts.Interfaces() {
		for _, line := range plan.Interrupts.Lines(iface) {
			cpus, ok := plan.Assignment.Get(line.IRQ)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  %s irq %s (%s) -> %s\n", verb, line.IRQ, line.Queue, affinity.FormatCPUList(cpus))
		}
	}
}

func printReport(w io.Writer, rows []placement.ReportRow) {
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\tirq %s\t%s\n", row.Netcard, row.Queue, row.IRQ, affinity.FormatCPUList(row.Affinity))
	}
}

func printLoads(w io.Writer, loads map[int]float64) {
	cpus := make([]int, 0, len(loads))
	for cpu := range loads {
		cpus = append(cpus, cpu)
	}
	sort.Ints(cpus)
	for _, cpu := range cpus {
		fmt.Fprintf(w, "cpu %d: %.2f%%\n", cpu, loads[cpu])
	}
}
