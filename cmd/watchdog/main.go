//go:build linux

// The watchdog binary is baked into the sandbox images at
// /home/watchdog. The judge stages a task document next to it and
// invokes `/home/watchdog task.json` as root; the report goes to
// stdout as a single JSON document, diagnostics go to stderr.
package main

import (
	"fmt"
	"os"

	"dsajudge/internal/judge/sandbox/taskspec"
	"dsajudge/internal/watchdog"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: watchdog <task file>")
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "read task file: %v\n", err)
		os.Exit(1)
	}

	task, err := taskspec.DecodeTask(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse task file: %v\n", err)
		os.Exit(1)
	}

	report, err := watchdog.Run(task, watchdog.LimitsFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "watchdog: %v\n", err)
		os.Exit(1)
	}

	out, err := taskspec.EncodeReport(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
