// Command bvc reads a JSON-encoded module and runs it through the
// verifier, printing diagnostics to stderr on failure.
//
//	bvc [-trace] [-cache] [-j N] module.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
	"github.com/velalang/bvc/log"
	"github.com/velalang/bvc/verify"
)

const help = `
Command bvc reads a JSON-encoded module from a file (or stdin with -)
and runs the bytecode verifier over it. On success it logs a one-line
summary and exits 0; on failure it prints one diagnostic per offending
instruction and exits 1.
`

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	var (
		trace   = flag.Bool("trace", false, "dump abstract state before/after every instruction")
		useCach = flag.Bool("cache", false, "skip re-verifying functions whose code hash is unchanged")
		concur  = flag.Int("j", 0, "max functions verified concurrently (0 = unlimited)")
	)
	flag.Usage = func() { fmt.Fprint(os.Stderr, help) }
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprint(os.Stderr, help)
		os.Exit(2)
	}

	r, err := openInput(args[0])
	if err != nil {
		fatalf("%v", err)
	}
	defer r.Close()

	var mod ir.Module
	if err := json.NewDecoder(r).Decode(&mod); err != nil {
		fatalf("decoding module: %v", err)
	}

	opts := &verify.Options{MaxConcurrency: *concur}
	if *trace {
		opts.Trace = &verify.WriterTrace{W: os.Stderr}
	}
	if *useCach {
		opts.Cache = verify.NewCache()
	}

	ctx := context.Background()
	res, diags := verify.Validate(&mod, opts)
	if len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, diag.Format(d))
		}
		log.Write(ctx, log.KeyMessage, "verification failed", "module", mod.Name, "failures", len(diags))
		os.Exit(1)
	}

	log.Write(ctx, log.KeyMessage, "verification ok", "module", mod.Name, "functions", len(res.Functions))
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}
