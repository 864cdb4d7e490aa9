// Command gtburst is the native entry point of the Fermi burst analysis
// GUI. It runs $INST_DIR/python/gtburst.py with the configured python
// interpreter and exits with the script's status.
package main

import (
	"gtburst/internal/launcher"
	"os"
)

func main() {
	os.Exit(launcher.Run(os.Args[1:]))
}
