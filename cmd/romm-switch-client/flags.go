package main

import "github.com/urfave/cli"

var searchFlags = []cli.Flag{
	cli.StringFlag{Name: "platform", Usage: "platform slug to search within"},
	cli.StringFlag{Name: "q", Usage: "search query"},
}

var enqueueFlags = []cli.Flag{
	cli.StringFlag{Name: "rom", Usage: "rom id to enqueue"},
	cli.StringFlag{Name: "mode", Value: "bundle_best", Usage: "single_best | bundle_best | all_files"},
}

// Global configuration is read from the environment rather than flags: the
// surrounding loader (out of scope per the core's design) is what would
// normally own flag parsing and config-file merging in a full install.
const (
	envServerURL = "ROMM_SERVER_URL"
	envUsername  = "ROMM_USERNAME"
	envPassword  = "ROMM_PASSWORD"
	envRoot      = "ROMM_DOWNLOAD_DIR"
)
