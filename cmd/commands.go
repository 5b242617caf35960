package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"netcard-affinity/internal/affinity"
	"netcard-affinity/internal/database"
	"netcard-affinity/internal/host"
	"netcard-affinity/internal/logging"
	"netcard-affinity/internal/netcard"
	"netcard-affinity/internal/placement"
	"netcard-affinity/internal/storage"
)

func newTopologyCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "topology",
		Short: "List sockets, physical cores and their hyperthreads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := a.topologyReader().ReadTopology()
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), topo)
			}
			printTopology(cmd.OutOrStdout(), topo)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the topology as JSON")
	return cmd
}

func newInfoCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show host, kernel and CPU identification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := a.fs()
			topo, err := host.NewTopologyReader(fs, nil).ReadTopology()
			if err != nil {
				return err
			}
			info := host.ReadInfo(fs, topo, nil)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), info)
			}
			printInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the host information as JSON")
	return cmd
}

func newRouteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "route",
		Short: "Show the interface carrying the default route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			iface, err := netcard.DefaultInterface(a.cfg.Paths.ProcFS)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), iface)
			return nil
		},
	}
}

// resolveNetcard falls back to the config and then to the default route.
func (a *app) resolveNetcard(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if a.cfg.Placement.Netcard != "" {
		return a.cfg.Placement.Netcard, nil
	}
	iface, err := netcard.DefaultInterface(a.cfg.Paths.ProcFS)
	if err != nil {
		return "", err
	}
	logging.GetLogger().WithField("netcard", iface).Info("Using interface of the default route")
	return iface, nil
}

func (a *app) runner() *placement.Runner {
	fs := a.fs()
	return placement.NewRunner(
		host.NewTopologyReader(fs, nil),
		netcard.NewClassifier(fs, nil),
		affinity.NewWriter(fs, nil),
		nil,
	)
}

// influx connects to the configured InfluxDB, or returns nil when none is
// configured.
func (a *app) influx() (*database.InfluxDBClient, error) {
	if a.cfg.InfluxDB == nil {
		return nil, nil
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return database.NewInfluxDBClient(*a.cfg.InfluxDB, hostname)
}

func newApplyCmd(a *app) *cobra.Command {
	var (
		mode   int
		name   string
		socket int
		dryRun bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Compute and write the IRQ affinity of a network card",
		Long:  "Mode 1 balances lines over the cores of one socket, mode 2 gives every slow interface a core of its own, mode 3 spreads lines over every socket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("mode") {
				mode = a.cfg.Placement.Mode
			}
			if !cmd.Flags().Changed("socket") {
				socket = a.cfg.Placement.Socket
			}
			iface, err := a.resolveNetcard(name)
			if err != nil {
				return err
			}

			runner := a.runner()
			plan, err := runner.Plan(iface, placement.Mode(mode), socket)
			if err != nil {
				return err
			}
			if !dryRun {
				if err := runner.Apply(plan); err != nil {
					return err
				}
			}

			if asJSON {
				if err := printJSON(cmd.OutOrStdout(), plan); err != nil {
					return err
				}
			} else {
				printPlan(cmd.OutOrStdout(), plan, dryRun)
			}

			if dryRun {
				return nil
			}
			idb, err := a.influx()
			if err != nil || idb == nil {
				return err
			}
			defer idb.Close()
			return idb.WritePlacement(cmd.Context(), plan, time.Now())
		},
	}

	cmd.Flags().IntVarP(&mode, "mode", "m", 1, "Placement mode (1, 2 or 3)")
	cmd.Flags().StringVarP(&name, "netcard", "n", "", "Network card, defaults to the interface of the default route")
	cmd.Flags().IntVarP(&socket, "socket", "s", 1, "Socket whose cores serve the interrupts (modes 1 and 2)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the placement without writing it")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the placement as JSON")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var (
		name    string
		asJSON  bool
		csvFile string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current affinity of every interrupt line of a network card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			iface, err := a.resolveNetcard(name)
			if err != nil {
				return err
			}
			rows, err := a.runner().Report(iface)
			if err != nil {
				return err
			}
			if csvFile != "" {
				return storage.ExportToFile(csvFile, func(w io.Writer) error {
					return storage.WriteReport(w, rows)
				})
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			printReport(cmd.OutOrStdout(), rows)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "netcard", "n", "", "Network card, defaults to the interface of the default route")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().StringVar(&csvFile, "csv", "", "Write the report to a CSV file instead of stdout")
	return cmd
}

func newLoadCmd(a *app) *cobra.Command {
	var (
		export  bool
		csvFile string
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Sample the busy percentage of every online CPU",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := host.NewProcStatSource(a.cfg.Paths.ProcFS)
			if err != nil {
				return err
			}
			sampler := host.NewLoadSampler(a.topologyReader(), source, a.cfg.Sampler.Interval, nil)

			ts := time.Now()
			loads, err := sampler.SampleAllCoreLoads()
			if err != nil {
				return err
			}
			printLoads(cmd.OutOrStdout(), loads)

			if csvFile != "" {
				err := storage.ExportToFile(csvFile, func(w io.Writer) error {
					return storage.WriteLoads(w, loads, ts)
				})
				if err != nil {
					return err
				}
			}
			if !export {
				return nil
			}
			if a.cfg.InfluxDB == nil {
				return fmt.Errorf("--export needs an influxdb section in the configuration")
			}
			idb, err := a.influx()
			if err != nil {
				return err
			}
			defer idb.Close()
			return idb.WriteLoadSamples(cmd.Context(), loads, ts)
		},
	}

	cmd.Flags().BoolVar(&export, "export", false, "Write the samples to InfluxDB")
	cmd.Flags().StringVar(&csvFile, "csv", "", "Also write the samples to a CSV file")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.configFile == "" {
				return fmt.Errorf("validate needs --config")
			}
			// setup already loaded and validated the file
			logging.GetLogger().WithField("config_file", a.configFile).Info("Configuration is valid")
			return nil
		},
	}
}
