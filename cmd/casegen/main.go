// casegen compiles instruction definitions into the case bodies of a
// bytecode interpreter's dispatch loop.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	var cfg config
	flag.StringVar(&cfg.input, "i", "", "Instruction definitions (.toml, .yaml, .yml or .cbor; - for stdin)")
	flag.StringVar(&cfg.input, "input", "", "Same as -i")
	flag.StringVar(&cfg.output, "o", "", "Generated cases file (- for stdout)")
	flag.StringVar(&cfg.output, "output", "", "Same as -o")
	flag.StringVar(&cfg.metadata, "m", "", "Write opcode metadata (CBOR) to this file")
	flag.StringVar(&cfg.metadata, "metadata", "", "Same as -m")
	flag.StringVar(&cfg.manifest, "c", "", "casegen.toml to use instead of searching from the working directory")
	flag.StringVar(&cfg.manifest, "config", "", "Same as -c")
	quiet := flag.Bool("q", false, "Only report errors")
	flag.BoolVar(quiet, "quiet", false, "Same as -q")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: casegen [options]\n\n")
		fmt.Fprintf(os.Stderr, "Generates interpreter dispatch cases from instruction definitions.\n")
		fmt.Fprintf(os.Stderr, "Settings come from the nearest casegen.toml; flags override them.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  casegen                                 # Use casegen.toml\n")
		fmt.Fprintf(os.Stderr, "  casegen -i bytecodes.toml -o cases.c.h  # Explicit paths\n")
		fmt.Fprintf(os.Stderr, "  casegen -i defs.yaml -o - -q            # Print to stdout\n")
	}
	flag.Parse()

	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(2)
	}

	verbosity := 2
	if *quiet {
		verbosity = 0
	} else if *verbose {
		verbosity = 4
	}
	commonlog.Configure(verbosity, nil)

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
