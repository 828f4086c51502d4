// Command accipit lexes, parses, and executes a single IR source file,
// passing any trailing positional arguments to the named entry function
// as decimal i32 literals.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/floatshadow/accipit/internal/diag"
	"github.com/floatshadow/accipit/internal/eval"
	"github.com/floatshadow/accipit/internal/ir"
	"github.com/floatshadow/accipit/internal/parser"
	"github.com/floatshadow/accipit/internal/rtbridge"
)

var (
	entry  string
	output string

	dumpFlag = flag.Bool("dump-module", false, "pretty-print the parsed module before executing it")
	verbose  = flag.Bool("v", false, "annotate putch output with the Unicode code point's name")
)

func init() {
	flag.StringVar(&entry, "entry", "main", "name of the function to execute")
	flag.StringVar(&entry, "e", "main", "shorthand for -entry")
	flag.StringVar(&output, "output", "", "reserved for future use; recorded but never read")
	flag.StringVar(&output, "o", "", "shorthand for -output")
	flag.BoolVar(verbose, "verbose", false, "long form of -v")
}

func usage() {
	io.WriteString(flag.CommandLine.Output(), `accipit lexes, parses, and executes an IR source file.

Usage:

	accipit [flags] file.accipit [arg ...]

Each trailing arg is parsed as a decimal i32 and passed to the entry
function's parameters, in order; their count must match exactly.

Flags:

`)
	flag.PrintDefaults()
}

func main() {
	log.SetPrefix("accipit: ")
	log.SetFlags(0)

	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	_ = output // reserved, never read

	path := flag.Arg(0)
	src, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("%v", err)
	}

	mod, err := parser.Parse(string(src), path)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *dumpFlag {
		io.WriteString(os.Stdout, ir.String(mod))
	}

	fn, _, ok := mod.GetFunctionByName(entry)
	if !ok {
		log.Fatalf("%s: no such function %q", path, entry)
	}

	rawArgs := flag.Args()[1:]
	if len(rawArgs) != len(fn.Params) {
		err := diag.Errorf(diag.KindFunctionArityMismatch,
			"%s expects %d argument(s), found %d", entry, len(fn.Params), len(rawArgs))
		log.Fatalf("%s: %v", path, err)
	}
	args := make([]eval.RVal, len(rawArgs))
	for i, raw := range rawArgs {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			err = diag.Errorf(diag.KindInvalidInputArgument, "argument %d (%q): %v", i, raw, err)
			log.Fatalf("%s: %v", path, err)
		}
		args[i] = eval.RInt{Val: int32(n)}
	}

	bridge := rtbridge.New(os.Stdin, os.Stdout, *verbose)
	result, err := eval.Run(mod, entry, args, bridge, os.Stderr)
	if flushErr := bridge.Flush(); flushErr != nil && err == nil {
		err = flushErr
	}
	if err != nil {
		log.Fatalf("%s: %v", path, err)
	}

	fmt.Fprintln(os.Stdout, result)
}
