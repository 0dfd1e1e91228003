package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"musicnerd/internal/logging"
)

var (
	factsAnswers   []string
	factsPredicate string
)

func runFacts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	defer logging.CloseAll()

	a, initial, err := openApp(ctx, "")
	if err != nil {
		return err
	}
	if _, _, err := submitAll(ctx, a.advisor, initial, factsAnswers); err != nil {
		return err
	}

	facts, err := a.advisor.Facts()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# session %s\n", a.advisor.ID())
	count := 0
	for _, f := range facts {
		if factsPredicate != "" && f.Predicate != factsPredicate {
			continue
		}
		fmt.Fprintln(out, f.String())
		count++
	}
	if count == 0 {
		fmt.Fprintln(out, "# no facts found")
	}
	return nil
}
