package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"netcard-affinity/internal/config"
	"netcard-affinity/internal/host"
	"netcard-affinity/internal/logging"
	"netcard-affinity/internal/netcard"
	"netcard-affinity/internal/placement"
	"netcard-affinity/internal/sysfs"
)

// Exit codes reported by the binary.
const (
	ExitFailure        = 1
	ExitUnknownMode    = 2
	ExitUnknownNetCard = 3
	ExitFileAccess     = 4
	ExitPermission     = 5
)

// ExitCode maps an error returned by Execute to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, netcard.ErrUnknownNetCard):
		return ExitUnknownNetCard
	case errors.Is(err, placement.ErrUnknownMode):
		return ExitUnknownMode
	case errors.Is(err, os.ErrPermission):
		return ExitPermission
	case errors.Is(err, sysfs.ErrFileAccess):
		return ExitFileAccess
	default:
		return ExitFailure
	}
}

type app struct {
	configFile string
	logLevel   string
	cfg        *config.Config
}

// setup loads .env and the configuration, then applies the log level. The
// --log-level flag wins over the file.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadEnv(".env"); err != nil {
		logging.GetLogger().WithError(err).Warn("Error loading .env file")
	}

	cfg := config.Default()
	if a.configFile != "" {
		loaded, err := config.LoadConfig(a.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	if level == "" {
		return nil
	}
	if err := logging.SetLogLevel(level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

func (a *app) fs() *sysfs.FS {
	return sysfs.NewOS(a.cfg.Paths.ProcFS, a.cfg.Paths.SysFS)
}

func (a *app) topologyReader() *host.TopologyReader {
	return host.NewTopologyReader(a.fs(), nil)
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "netcard-affinity",
		Short:         "Pin network card interrupts to CPU cores",
		Long:          "Inspects CPU topology and network interfaces and binds every NIC interrupt line to a chosen set of cores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Set log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newTopologyCmd(a))
	rootCmd.AddCommand(newInfoCmd(a))
	rootCmd.AddCommand(newRouteCmd(a))
	rootCmd.AddCommand(newApplyCmd(a))
	rootCmd.AddCommand(newShowCmd(a))
	rootCmd.AddCommand(newLoadCmd(a))
	rootCmd.AddCommand(newValidateCmd(a))

	return rootCmd
}

func Execute() error {
	return NewRootCmd().Execute()
}
