package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"musicnerd/internal/advisor"
	"musicnerd/internal/assets"
	"musicnerd/internal/config"
	"musicnerd/internal/logging"
	"musicnerd/internal/mangle"
	"musicnerd/internal/rules"
)

// app is everything a command needs to run a session.
type app struct {
	ws       string
	cfg      *config.Config
	source   string
	advisor  *advisor.Advisor
	resolver *assets.Resolver
	table    *assets.Table
}

func resolveWorkspace() (string, error) {
	ws := workspace
	if ws == "" {
		var err error
		ws, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve workspace: %w", err)
		}
	}
	return filepath.Abs(ws)
}

// inWorkspace resolves relative paths against the workspace.
func inWorkspace(ws, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(ws, path)
}

func loadConfig(ws string) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath(ws)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if rulesPath != "" {
		cfg.Rules.Path = rulesPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openApp loads config, logging, the image table and the rules, and
// evaluates the first state. Any error here is a startup failure.
func openApp(ctx context.Context, overrideRules string) (*app, advisor.GuiState, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, advisor.GuiState{}, err
	}
	cfg, err := loadConfig(ws)
	if err != nil {
		return nil, advisor.GuiState{}, err
	}
	if overrideRules != "" {
		cfg.Rules.Path = overrideRules
	}

	if err := logging.Initialize(ws, logging.Options{
		DebugMode:  cfg.Logging.DebugMode || verbose,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.Format == "json",
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return nil, advisor.GuiState{}, err
	}
	logging.Boot("workspace %s, config version %s", ws, cfg.Version)

	// Image table first, so covers resolve from the first state on.
	table := assets.OpenTable(inWorkspace(ws, cfg.Assets.ImageTable))
	resolver := assets.NewResolver(table, os.DirFS(inWorkspace(ws, cfg.Assets.CoversDir)), assets.WithSize(cfg.Assets.CoverSize))

	cfg.Rules.Path = inWorkspace(ws, cfg.Rules.Path)
	source, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		return nil, advisor.GuiState{}, err
	}

	engine := mangle.NewEngine(mangle.Config{
		FactLimit:   cfg.Rules.FactLimit,
		MaxAsserted: cfg.Rules.MaxAnswers,
	})
	adv := advisor.New(engine)
	initial, err := adv.Initialize(ctx, source)
	if err != nil {
		return nil, advisor.GuiState{}, fmt.Errorf("failed to start questionnaire: %w", err)
	}
	logging.Boot("session %s ready", adv.ID())

	return &app{
		ws:       ws,
		cfg:      cfg,
		source:   source,
		advisor:  adv,
		resolver: resolver,
		table:    table,
	}, initial, nil
}

// submitAll answers each label in turn starting from state.
func submitAll(ctx context.Context, adv *advisor.Advisor, state advisor.GuiState, answers []string) ([]step, advisor.GuiState, error) {
	var steps []step
	for _, answer := range answers {
		next, err := adv.Submit(ctx, state, answer)
		if err != nil {
			return steps, state, fmt.Errorf("answer %q to %q: %w", answer, state.Message, err)
		}
		steps = append(steps, step{Question: state.Message, Answer: answer})
		state = next
	}
	return steps, state, nil
}

type step struct {
	Question string
	Answer   string
}
