// Command bvcwatch re-runs the verifier over a module file every time
// it changes on disk, for use as a compiler-driver sidecar during
// iterative development.
//
//	bvcwatch [-cache] module.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/velalang/bvc/diag"
	"github.com/velalang/bvc/ir"
	"github.com/velalang/bvc/log"
	"github.com/velalang/bvc/verify"
)

func main() {
	useCach := flag.Bool("cache", true, "memoize per-function results by content hash across runs")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: bvcwatch [-cache] module.json")
		os.Exit(2)
	}
	path := args[0]

	w, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "starting watcher: %v\n", err)
		os.Exit(1)
	}
	defer w.Close()

	// Watch the containing directory rather than the file itself: most
	// editors replace a file on save rather than writing it in place,
	// which fsnotify reports as a remove on the original inode.
	if err := w.Add(filepath.Dir(path)); err != nil {
		fmt.Fprintf(os.Stderr, "watching %s: %v\n", path, err)
		os.Exit(1)
	}

	var cache *verify.Cache
	if *useCach {
		cache = verify.NewCache()
	}

	ctx := context.Background()
	runOnce(ctx, path, cache)

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			runOnce(ctx, path, cache)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Error(ctx, err, "fsnotify")
		}
	}
}

func runOnce(ctx context.Context, path string, cache *verify.Cache) {
	f, err := os.Open(path)
	if err != nil {
		log.Error(ctx, err, "opening module")
		return
	}
	defer f.Close()

	var mod ir.Module
	if err := json.NewDecoder(f).Decode(&mod); err != nil {
		log.Error(ctx, err, "decoding module")
		return
	}

	res, diags := verify.Validate(&mod, &verify.Options{Cache: cache})
	if len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, diag.Format(d))
		}
		log.Write(ctx, log.KeyMessage, "verification failed", "module", mod.Name, "failures", len(diags))
		return
	}
	log.Write(ctx, log.KeyMessage, "verification ok", "module", mod.Name, "functions", len(res.Functions))
}
