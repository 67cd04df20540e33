package cli

import (
	"fmt"

	"github.com/ppiankov/dastgate/internal/config"
	"github.com/spf13/cobra"
)

var (
	initPath   string
	initPrint  bool
	initGlobal bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a dastgate.yaml with the current settings",
	Long: `Init writes the effective configuration (defaults, config file and
environment merged) to dastgate.yaml. Keys already in the file that
dastgate does not know are kept.

Example:
  dastgate init
  dastgate init --global
  dastgate init --print > dastgate.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initPath, "path", config.FileName,
		"config file to write")
	initCmd.Flags().BoolVar(&initGlobal, "global", false,
		"write the per-user config file instead")
	initCmd.Flags().BoolVar(&initPrint, "print", false,
		"print a commented sample config instead of writing")
}

func runInit(cmd *cobra.Command, args []string) error {
	if initPrint {
		fmt.Print(config.GenerateSampleConfig())
		return nil
	}

	path := initPath
	if initGlobal {
		path = config.ConfigPath()
	}

	if err := config.WriteConfig(path, cfg); err != nil {
		return err
	}

	fmt.Printf("Config written to %s\n", path)
	return nil
}
