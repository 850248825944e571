// Command data-room is the NFSv3 Share-Based Filesystem server: it
// reads a TOML configuration, opens the configured Backing Store,
// and serves NFSv3 + MOUNT over TCP until signaled to stop.
package main

import (
	"fmt"
	"os"

	"github.com/shamirnfs/shamirnfs/cmd/data-room/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
