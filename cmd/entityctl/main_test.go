/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/suparena/entitysession/config"
	"github.com/suparena/entitysession/datastore"
	"github.com/suparena/entitysession/logger"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Driver = config.DriverSQLite
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "cli.db")

	seed, err := config.OpenDriver(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to open driver: %v", err)
	}
	engine, err := seed.Open(ctx, "people")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	for _, id := range []string{"a", "b"} {
		rec := datastore.Record{ID: id, Type: "Person", Fields: map[string]any{"ID": id}, Body: []byte(`{}`)}
		if err := engine.Insert(ctx, rec); err != nil {
			t.Fatalf("Failed to insert %s: %v", id, err)
		}
	}
	if err := seed.Close(ctx); err != nil {
		t.Fatalf("Failed to close driver: %v", err)
	}

	log := logger.Discard()

	var out bytes.Buffer
	if err := run(ctx, cfg, log, &out, "ids", "people"); err != nil {
		t.Fatalf("ids failed: %v", err)
	}
	if got := strings.Fields(out.String()); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Unexpected ids output: %q", out.String())
	}

	if err := run(ctx, cfg, log, &out, "drop", "people"); err != nil {
		t.Fatalf("drop failed: %v", err)
	}
	out.Reset()
	if err := run(ctx, cfg, log, &out, "ids", "people"); err != nil {
		t.Fatalf("ids failed: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("Expected an empty store, got %q", out.String())
	}

	if err := run(ctx, cfg, log, &out, "bogus", "people"); err == nil {
		t.Fatal("Expected an error for an unknown command")
	}
}
