package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/subtensor-tools/subreg/config"
)

// subreg binary version.
// It should be passed during the build with '-ldflags "-X main.version="'.
var version = "unknown"

// subregMain is the true entry point for subreg. This function is required since
// defers created in the top-level scope of a main method aren't executed if
// os.Exit() is called.
func subregMain(args []string) error {
	var err error
	// Start with a default Config with sane settings
	cfg := config.DefaultConfig()
	// Pre-parse the command line to check for an alternative Config file
	cfg, err = config.ParseFlags(cfg)
	if err != nil {
		return err
	}
	// Load configuration file overwriting defaults with any specified options
	cfg, err = config.ReadConfigFile(cfg)
	if err != nil {
		return err
	}

	// Finally, parse the command line again so that it takes precedence
	// and run the selected command.
	parser := newParser(&app{cfg: cfg, out: os.Stdout})
	_, err = parser.ParseArgs(args)
	return err
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := subregMain(os.Args[1:]); err != nil {
		// If it's the flag utility error don't print it,
		// because it was already printed.
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
