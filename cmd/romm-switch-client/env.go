package main

import (
	"fmt"
	"log"
	"os"

	"github.com/shalasere/romm-switch-client/pkg/api"
	"github.com/shalasere/romm-switch-client/pkg/config"
	"github.com/shalasere/romm-switch-client/pkg/downloader"
	"github.com/shalasere/romm-switch-client/pkg/httpc"
	"github.com/shalasere/romm-switch-client/pkg/queue"
	"github.com/shalasere/romm-switch-client/pkg/rlog"
	"github.com/shalasere/romm-switch-client/pkg/status"
	"github.com/urfave/cli"
)

// env bundles the engine's wiring for one CLI invocation.
type env struct {
	cfg    config.Config
	log    rlog.Logger
	status *status.Status
	client *httpc.Client
	api    *api.Api
	dl     *downloader.Downloader
	queue  *queue.Queue
	creds  *httpc.Credentials
}

// withEnv builds an env from the process environment and hands it to fn,
// so every command gets the same wiring without repeating setup.
func withEnv(fn func(*cli.Context, *env) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		return fn(ctx, e)
	}
}

func buildEnv() (*env, error) {
	cfg := config.Default()
	cfg.ServerURL = os.Getenv(envServerURL)
	cfg.Username = os.Getenv(envUsername)
	cfg.Password = os.Getenv(envPassword)
	if root := os.Getenv(envRoot); root != "" {
		cfg.DownloadDir = root
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("missing config: %s is not set", envServerURL)
	}
	cfg = config.LoadCredentials(cfg)

	base, err := httpc.ParseURL(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid config json: %s is not a valid URL: %w", envServerURL, err)
	}

	logger := rlog.New(log.Default())
	st := status.New()
	client := httpc.NewClient()

	var creds *httpc.Credentials
	if cfg.Username != "" {
		creds = &httpc.Credentials{Username: cfg.Username, Password: cfg.Password}
	}

	a := api.New(client, base, creds, cfg.Timeout(), logger, st)
	dl := downloader.New(httpc.NewClient(), logger, cfg.DownloadDir, cfg.Timeout(), cfg.Fat32Safe)
	q := queue.New(st, dl, logger)

	return &env{cfg: cfg, log: logger, status: st, client: client, api: a, dl: dl, queue: q, creds: creds}, nil
}
