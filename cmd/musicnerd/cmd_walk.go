package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"musicnerd/internal/advisor"
	"musicnerd/internal/logging"
)

var (
	walkAnswers []string
	walkPlain   bool
)

func runWalk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	defer logging.CloseAll()

	a, initial, err := openApp(ctx, "")
	if err != nil {
		return err
	}

	steps, state, err := submitAll(ctx, a.advisor, initial, walkAnswers)
	if err != nil {
		return err
	}
	logger.Debug("walk finished", zap.Int("answers", len(steps)), zap.Bool("finished", state.Finished))

	md := walkMarkdown(a.cfg.UI.Title, steps, state)
	if walkPlain {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(a.cfg.UI.Width),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render transcript: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}

// walkMarkdown formats the answers given and where they led.
func walkMarkdown(title string, steps []step, state advisor.GuiState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)

	for i, s := range steps {
		fmt.Fprintf(&sb, "%d. %s **%s**\n", i+1, s.Question, s.Answer)
	}
	if len(steps) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString(state.Message)
	sb.WriteString("\n\n")
	switch {
	case state.Recommendation != "":
		fmt.Fprintf(&sb, "*Recommendation: %s*\n", state.Recommendation)
	case len(state.Options) > 0:
		for _, o := range state.Options {
			fmt.Fprintf(&sb, "- %s\n", o)
		}
	}
	return sb.String()
}
