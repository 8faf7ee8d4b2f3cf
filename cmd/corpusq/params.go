package main

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	viewuc "github.com/kailas-cloud/corpusq/internal/usecase/view"
)

var paramsCmd = &cobra.Command{
	Use:   "params <corpus> <query-string>",
	Short: "Print the canonical form of a search location",
	Long: `Parses a query string against a configured corpus and prints it the way
a search view would write it back: legacy keys rewritten, filter values
re-encoded and unrelated keys kept. Malformed values are dropped and listed
on stderr. No database connection is made.`,
	Args: cobra.ExactArgs(2),
	RunE: runParams,
}

func runParams(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	corpora, err := cfg.BuildCorpora()
	if err != nil {
		return fmt.Errorf("build corpora: %w", err)
	}
	c, err := findCorpus(corpora, args[0])
	if err != nil {
		return err
	}

	loc, err := url.ParseQuery(args[1])
	if err != nil {
		return fmt.Errorf("parse query string: %w", err)
	}

	out, applyErr := viewuc.Canonicalize(c, loc)
	fmt.Fprintln(cmd.OutOrStdout(), out.Encode())

	if applyErr != nil {
		var joined interface{ Unwrap() []error }
		if errors.As(applyErr, &joined) {
			for _, e := range joined.Unwrap() {
				fmt.Fprintln(cmd.ErrOrStderr(), "dropped:", e)
			}
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "dropped:", applyErr)
		}
	}
	return nil
}

func findCorpus(corpora []corpus.Corpus, name string) (corpus.Corpus, error) {
	for _, c := range corpora {
		if c.Name() == name {
			return c, nil
		}
	}
	return corpus.Corpus{}, fmt.Errorf("unknown corpus %q", name)
}
