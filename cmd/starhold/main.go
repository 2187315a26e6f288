package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orbitalworks/starhold/pkg/automation"
	"github.com/orbitalworks/starhold/pkg/colony"
	"github.com/orbitalworks/starhold/pkg/log"
	"github.com/orbitalworks/starhold/pkg/metrics"
	"github.com/orbitalworks/starhold/pkg/status"
	"github.com/orbitalworks/starhold/pkg/upgrade"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "starhold",
	Short: "Starhold - colony module lifecycle daemon",
	Long: `Starhold runs the module lifecycle subsystem of an orbital colony:
module and sub-module registries, status tracking, timed upgrades, and
the automation rule evaluator.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Starhold version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the colony daemon",
	Long: `Run the colony daemon with the given manifest and data directories.

The daemon loads manifests at startup, restores any persisted snapshot,
starts the status and automation loops, and serves Prometheus metrics.
A final snapshot is written on shutdown.`,
	RunE: runColony,
}

func init() {
	runCmd.Flags().String("manifest-dir", "", "Directory of YAML manifests to load at startup")
	runCmd.Flags().String("data-dir", "", "Data directory for state persistence (empty disables)")
	runCmd.Flags().String("metrics-addr", ":9090", "Address for the Prometheus /metrics endpoint")
	runCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().Bool("log-json", false, "Emit JSON logs instead of console output")
	runCmd.Flags().Duration("upgrade-base-duration", time.Minute, "Base duration multiplied by target level for upgrades")
	runCmd.Flags().Duration("automation-interval", time.Second, "Polling period for non-event automation rules")
	runCmd.Flags().Duration("status-revert-delay", 5*time.Second, "Delay before upgrading status reverts to active")
}

func runColony(cmd *cobra.Command, args []string) error {
	manifestDir, _ := cmd.Flags().GetString("manifest-dir")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	baseDuration, _ := cmd.Flags().GetDuration("upgrade-base-duration")
	interval, _ := cmd.Flags().GetDuration("automation-interval")
	revertDelay, _ := cmd.Flags().GetDuration("status-revert-delay")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})

	c, err := colony.New(colony.Config{
		DataDir:     dataDir,
		ManifestDir: manifestDir,
		Status:      status.Config{RevertDelay: revertDelay},
		Upgrade:     upgrade.Config{BaseDuration: baseDuration},
		Automation:  automation.Config{Interval: interval},
	})
	if err != nil {
		return fmt.Errorf("failed to create colony: %v", err)
	}
	c.Start()

	// Metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server error", err)
		}
	}()

	fmt.Println("Colony is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	_ = server.Close()
	if err := c.Shutdown(); err != nil {
		return fmt.Errorf("shutdown error: %v", err)
	}
	fmt.Println("✓ Colony stopped")
	return nil
}
