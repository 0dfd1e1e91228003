package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"musicnerd/internal/advisor"
	"musicnerd/internal/logging"
)

var checkMaxDepth int

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	defer logging.CloseAll()

	override := ""
	if len(args) == 1 {
		// A path given on the command line is relative to the shell, not the workspace.
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		override = abs
	}
	a, _, err := openApp(ctx, override)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	missing := make(map[string]bool)
	report, err := a.advisor.Explore(ctx, checkMaxDepth, func(v advisor.Visit) error {
		if v.State.ImageKey == "" {
			return nil
		}
		if _, ok := a.table.Lookup(v.State.ImageKey); !ok {
			missing[v.State.ImageKey] = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	rulesName := a.cfg.Rules.Path
	if rulesName == "" {
		rulesName = "bundled rules"
	}
	logger.Info("rules checked",
		zap.String("rules", rulesName),
		zap.Int("states", report.States),
		zap.Int("recommendations", report.Finals),
		zap.Int("issues", len(report.Issues)))

	fmt.Fprintf(out, "%s: %d states, %d recommendations, longest path %d answers\n",
		rulesName, report.States, report.Finals, report.MaxDepth)

	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(out, "warning: image keys without a table entry: %s\n", strings.Join(keys, ", "))
	}

	if !report.OK() {
		for _, issue := range report.Issues {
			fmt.Fprintf(out, "  %s\n", issue)
		}
		return fmt.Errorf("%d problems found", len(report.Issues))
	}
	fmt.Fprintln(out, "OK")
	return nil
}
