package main

import (
	"context"
	"fmt"

	"github.com/shalasere/romm-switch-client/pkg/model"
	"github.com/shalasere/romm-switch-client/pkg/planner"
	"github.com/urfave/cli"
)

func cmdPlatforms(ctx *cli.Context, e *env) error {
	ok, info := e.api.FetchPlatforms(context.Background())
	if !ok {
		return fmt.Errorf("%s", info.UserMessage)
	}
	for _, p := range e.status.Platforms() {
		fmt.Printf("%-12s %s\n", p.Slug, p.Name)
	}
	return nil
}

func cmdSearch(ctx *cli.Context, e *env) error {
	platform := ctx.String("platform")
	if platform == "" {
		return fmt.Errorf("missing platform id: --platform is required")
	}
	background := context.Background()
	if ok, info := e.api.FetchRoms(background, platform); !ok {
		return fmt.Errorf("%s", info.UserMessage)
	}
	for _, g := range e.api.Search(background, platform, ctx.String("q")) {
		fmt.Printf("%-10s %s\n", g.Id, g.Title)
	}
	return nil
}

func cmdEnqueue(ctx *cli.Context, e *env) error {
	romId := ctx.String("rom")
	if romId == "" {
		return fmt.Errorf("missing id: --rom is required")
	}
	var found model.Game
	var ok bool
	for _, g := range e.status.AllRoms() {
		if g.Id == romId {
			found, ok = g, true
			break
		}
	}
	if !ok {
		return fmt.Errorf("rom %q not found: run `platforms` and `search` first to populate the catalog", romId)
	}

	prefs := model.DefaultPlatformPrefs()
	prefs.DefaultMode = model.BundleMode(ctx.String("mode"))
	bundle, err := planner.Build(found, prefs)
	if err != nil {
		return err
	}
	if err := e.queue.Enqueue(found, bundle); err != nil {
		return err
	}
	fmt.Printf("enqueued %q (%d file(s), %s)\n", found.Title, len(bundle.Files), bundle.Mode)
	return nil
}

func cmdQueue(ctx *cli.Context, e *env) error {
	fmt.Println("active:")
	for i, it := range e.queue.Active() {
		fmt.Printf("  %d. [%s] %s\n", i, it.State, it.Game.Title)
	}
	fmt.Println("history:")
	for _, it := range e.queue.History() {
		fmt.Printf("  [%s] %s %s\n", it.State, it.Game.Title, it.ErrorMessage)
	}
	return nil
}

func cmdRun(ctx *cli.Context, e *env) error {
	if len(e.queue.Active()) == 0 {
		fmt.Println("queue is empty")
		return nil
	}
	return runWithProgress(e)
}
