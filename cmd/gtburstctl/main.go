// Command gtburstctl inspects and drives the gtburst launcher.
// It checks an installation, previews the resolved command, runs the
// script with overrides and shows the launch history.
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}
