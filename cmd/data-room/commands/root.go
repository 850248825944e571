// Package commands implements the data-room CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "data-room",
	Short: "Share-Based Filesystem NFSv3 server",
	Long: `data-room serves a single NFSv3 export backed by a Shamir
(k, n) secret-sharing content store and a time-windowed Merkle audit
log, in pure Go userspace (no FUSE, no kernel NFS client required on
the server side).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command; called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: $XDG_CONFIG_HOME/data-room/data-room.toml)")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string {
	return cfgFile
}
