// Command romm-switch-client is a thin CLI wrapper over the core engine:
// enqueue games, inspect the queue and history, and drive the background
// worker to completion with a progress bar. The renderer this ships
// alongside on-device is out of scope; this binary exists so the engine
// can be exercised end-to-end from a terminal.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli"
)

var version = "dev"

func main() {
	if err := Execute(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func Execute(args []string) error {
	app := cli.App{
		Name:      "romm-switch-client",
		HelpName:  "romm-switch-client",
		Usage:     "download and resume engine for a homebrew game-catalog client",
		Version:   version,
		UsageText: "romm-switch-client <command> [arguments...]",
		Commands: []cli.Command{
			{
				Name:  "platforms",
				Usage: "list catalog platforms",
				Action: withEnv(cmdPlatforms),
			},
			{
				Name:   "search",
				Usage:  "search the catalog",
				Flags:  searchFlags,
				Action: withEnv(cmdSearch),
			},
			{
				Name:   "enqueue",
				Usage:  "enqueue a rom id for download",
				Flags:  enqueueFlags,
				Action: withEnv(cmdEnqueue),
			},
			{
				Name:   "run",
				Usage:  "drive the queue worker until empty, rendering progress",
				Action: withEnv(cmdRun),
			},
			{
				Name:   "queue",
				Usage:  "show active queue and history",
				Action: withEnv(cmdQueue),
			},
		},
	}
	log.SetFlags(0)
	return app.Run(args)
}
