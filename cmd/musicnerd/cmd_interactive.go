package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"musicnerd/cmd/musicnerd/quiz"
	"musicnerd/cmd/musicnerd/ui"
	"musicnerd/internal/config"
	"musicnerd/internal/logging"
	"musicnerd/internal/rules"
)

// runInteractive runs the questionnaire. A startup failure shows the error
// screen and returns the error, so the process exits with status 1.
func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer logging.CloseAll()

	a, initial, err := openApp(ctx, "")
	if err != nil {
		showFatal(err)
		return err
	}

	styles := ui.DefaultStyles()
	if a.cfg.UI.DarkMode {
		styles = ui.NewStyles(ui.DarkTheme())
	}
	model := quiz.New(ctx, a.advisor, a.resolver, initial, quiz.Config{
		Title:        a.cfg.UI.Title,
		Width:        a.cfg.UI.Width,
		CoverColumns: a.cfg.Assets.CoverColumns,
		Styles:       styles,
	})

	var opts []tea.ProgramOption
	if a.cfg.UI.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(model, opts...)

	g, gctx := errgroup.WithContext(ctx)
	watchCtx, stopWatch := context.WithCancel(gctx)
	defer stopWatch()

	if a.cfg.Rules.Watch {
		w, err := startWatcher(watchCtx, a.cfg.Rules.Path, a.cfg.GetWatchDebounce(), p.Send)
		if err != nil {
			showFatal(err)
			return err
		}
		g.Go(func() error {
			<-watchCtx.Done()
			w.Stop()
			return nil
		})
	}

	g.Go(func() error {
		defer stopWatch()
		final, err := p.Run()
		if err != nil {
			return err
		}
		if m, ok := final.(quiz.Model); ok {
			logging.Boot("session %s ended at %s (closed=%v)", a.advisor.ID(), m.State().Stage, m.Closed())
		}
		return nil
	})

	return g.Wait()
}

// startWatcher starts watching the rules file before the window opens, so a
// watch failure is a startup failure. Changes are delivered through send.
func startWatcher(ctx context.Context, path string, debounce time.Duration, send func(tea.Msg)) (*rules.Watcher, error) {
	w, err := rules.NewWatcher(path, debounce, func(source string, err error) {
		send(quiz.RulesChangedMsg{Source: source, Err: err})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch rules: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, fmt.Errorf("failed to watch rules: %w", err)
	}
	return w, nil
}

// showFatal blocks on the error screen until the user dismisses it.
func showFatal(startErr error) {
	title := config.DefaultConfig().UI.Title
	p := tea.NewProgram(quiz.NewFatal(title, startErr, ui.DefaultStyles()))
	if _, err := p.Run(); err != nil {
		logging.Get(logging.CategoryBoot).Error("error screen failed: %v", err)
	}
}
