// SPDX-License-Identifier: MIT

// Command scoringgen emits the default scoring parameters as YAML, as a
// starting point for a CLNP_SCORING_CONFIG override file. With -check it
// validates an existing override instead.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/renameio/v2"

	"github.com/pointerlabs/clnp/internal/scoring"
)

func main() {
	outPath := flag.String("out", "", "write to this path atomically instead of stdout")
	checkPath := flag.String("check", "", "validate an existing scoring config and exit")
	flag.Parse()

	if *checkPath != "" {
		if _, err := scoring.Load(*checkPath); err != nil {
			fail(err)
		}
		fmt.Printf("%s: ok\n", *checkPath)
		return
	}

	raw, err := scoring.Default().Marshal()
	if err != nil {
		fail(err)
	}

	if *outPath == "" {
		if _, err := os.Stdout.Write(raw); err != nil {
			fail(err)
		}
		return
	}

	pending, err := renameio.NewPendingFile(*outPath)
	if err != nil {
		fail(fmt.Errorf("create pending file: %w", err))
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	if _, err := pending.Write(raw); err != nil {
		fail(fmt.Errorf("write scoring config: %w", err))
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		fail(fmt.Errorf("atomically replace scoring config: %w", err))
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "scoringgen: %v\n", err)
	os.Exit(1)
}
