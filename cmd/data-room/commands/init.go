package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shamirnfs/shamirnfs/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var (
		path string
		err  error
	)
	if cf := GetConfigFile(); cf != "" {
		err = config.InitConfigToPath(cf, initForce)
		path = cf
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	fmt.Printf("wrote configuration file to %s\n", path)
	fmt.Printf("edit it, then run: data-room start --config %s\n", path)
	return nil
}
