// Command camsync bridges an NVR's MQTT event bus to one or more remote
// object stores.
package main

import (
	"fmt"
	"os"

	"github.com/nvrsync/camsync/cmd"
	"github.com/nvrsync/camsync/internal/buildinfo"
)

// version and buildDate are set via -ldflags at build time.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	build := buildinfo.Context{Version: version, BuildDate: buildDate}

	if err := cmd.RootCommand(build).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
