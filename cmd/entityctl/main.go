/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/suparena/entitysession"
	"github.com/suparena/entitysession/config"
	"github.com/suparena/entitysession/logger"
	"github.com/suparena/entitysession/query"
	"github.com/suparena/entitysession/registry"
)

var (
	versionFlag = flag.Bool("version", false, "Show version information")
	vFlag       = flag.Bool("v", false, "Show version information (short)")
	configFlag  = flag.String("config", "", "Path to a YAML config file")
	idField     = flag.String("id-field", registry.DefaultIDField, "Identifier field of the store")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: entityctl [flags] <command> <store>

Commands:
  ids <store>    print the id of every entity in the store
  drop <store>   remove every entity of the store

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *versionFlag || *vFlag {
		info := entitysession.GetVersionInfo()
		fmt.Printf("entityctl version %s\n", info.Version)
		fmt.Printf("Git commit: %s\n", info.GitCommit)
		fmt.Printf("Build date: %s\n", info.BuildDate)
		fmt.Printf("Go version: %s\n", info.GoVersion)
		os.Exit(0)
	}

	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "entityctl: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log, os.Stdout, flag.Arg(0), flag.Arg(1)); err != nil {
		log.Error("command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer, command, store string) error {
	driver, err := config.OpenDriver(ctx, cfg)
	if err != nil {
		return err
	}
	defer driver.Close(ctx)

	engine, err := driver.Open(ctx, store)
	if err != nil {
		return err
	}
	log.Debug("store opened", "driver", cfg.Driver, "store", store)

	switch command {
	case "ids":
		cur, err := engine.ExecuteIDs(ctx, query.New(store, *idField))
		if err != nil {
			return err
		}
		defer cur.Close()
		n := 0
		for cur.Next(ctx) {
			fmt.Fprintln(out, cur.Value())
			n++
		}
		if err := cur.Err(); err != nil {
			return err
		}
		log.Debug("listed ids", "store", store, "count", n)
		return nil
	case "drop":
		if err := engine.Drop(ctx); err != nil {
			return err
		}
		log.Info("store dropped", "store", store)
		return nil
	}
	return fmt.Errorf("unknown command %q", command)
}
