package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/corpusq/internal/repository/corpusindex"
)

var (
	indexCmd = &cobra.Command{
		Use:   "index",
		Short: "Manage corpus search indexes",
	}

	indexEnsureCmd = &cobra.Command{
		Use:   "ensure [corpus...]",
		Short: "Create missing corpus indexes",
		RunE:  func(cmd *cobra.Command, args []string) error { return runIndex(cmd, args, false) },
	}

	indexRebuildCmd = &cobra.Command{
		Use:   "rebuild <corpus...>",
		Short: "Drop and recreate corpus indexes; documents are kept",
		Args:  cobra.MinimumNArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return runIndex(cmd, args, true) },
	}
)

func init() {
	indexCmd.AddCommand(indexEnsureCmd, indexRebuildCmd)
}

func runIndex(cmd *cobra.Command, args []string, rebuild bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	corpora, err := cfg.BuildCorpora()
	if err != nil {
		return fmt.Errorf("build corpora: %w", err)
	}

	targets := corpora
	if len(args) > 0 {
		targets = targets[:0:0]
		for _, name := range args {
			c, err := findCorpus(corpora, name)
			if err != nil {
				return err
			}
			targets = append(targets, c)
		}
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	indexes := corpusindex.New(store, cfg.Storage.KeyPrefix)
	out := cmd.OutOrStdout()
	for _, c := range targets {
		if rebuild {
			if err := indexes.Rebuild(ctx, c); err != nil {
				return fmt.Errorf("rebuild %q: %w", c.Name(), err)
			}
			fmt.Fprintf(out, "%s: rebuilt %s\n", c.Name(), c.Index())
			continue
		}
		created, err := indexes.Ensure(ctx, c)
		if err != nil {
			return fmt.Errorf("ensure %q: %w", c.Name(), err)
		}
		state := "exists"
		if created {
			state = "created"
		}
		fmt.Fprintf(out, "%s: %s %s\n", c.Name(), state, c.Index())
	}
	return nil
}
