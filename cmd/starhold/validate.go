package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orbitalworks/starhold/pkg/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate manifest files",
	Long: `Validate Starhold manifests without starting the daemon.

Examples:
  # Validate a single manifest
  starhold validate -f modules.yaml

  # Validate an entire manifest directory
  starhold validate -d /etc/starhold/manifests`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringP("file", "f", "", "YAML file to validate")
	validateCmd.Flags().StringP("dir", "d", "", "Manifest directory to validate")
}

func runValidate(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	dir, _ := cmd.Flags().GetString("dir")

	if file == "" && dir == "" {
		return fmt.Errorf("either --file or --dir is required")
	}

	var bundle *manifest.Bundle
	var err error
	if file != "" {
		bundle, err = manifest.LoadFile(file)
	} else {
		bundle, err = manifest.LoadDir(dir)
	}
	if err != nil {
		return err
	}

	fmt.Printf("✓ Manifests valid\n")
	fmt.Printf("  Module configs:     %d\n", len(bundle.ModuleConfigs))
	fmt.Printf("  Sub-module configs: %d\n", len(bundle.SubModuleConfigs))
	fmt.Printf("  Upgrade paths:      %d\n", len(bundle.UpgradePaths))
	fmt.Printf("  Buildings:          %d\n", len(bundle.Buildings))
	fmt.Printf("  Automation rules:   %d\n", len(bundle.Rules))
	return nil
}
