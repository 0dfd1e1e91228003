// Package rules holds the recommender's rule program and the predicate
// contract the advisor relies on.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"musicnerd/internal/logging"
	"musicnerd/internal/mangle"
)

// SessionName identifies the rule session in logs.
const SessionName = "rules"

// Predicates the advisor reads and writes.
const (
	PredGuiState   = "gui_state"   // gui_state(Stage, Message, Recommendation, Finished, ImageKey)
	PredGuiOption  = "gui_option"  // gui_option(Stage, Order, Label)
	PredUserAnswer = "user_answer" // user_answer(Stage, Topic, Option)
)

// RootStage is the stage of the first question in the bundled rules.
const RootStage = "/root"

// Contract lists the predicates (and arities) a rule program must declare.
var Contract = map[string]int{
	PredGuiState:   5,
	PredGuiOption:  3,
	PredUserAnswer: 3,
}

//go:embed default.mg
var defaultSource string

// Default returns the bundled rule program.
func Default() string {
	return defaultSource
}

// Load returns the rule program at path, or the bundled program when path is empty.
func Load(path string) (string, error) {
	if path == "" {
		logging.Rules("using bundled rules (%d bytes)", len(defaultSource))
		return defaultSource, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read rules %s: %w", path, err)
	}
	logging.Rules("loaded rules from %s (%d bytes)", path, len(data))
	return string(data), nil
}

// Validate parses and analyzes a program and checks that it declares the
// predicates in Contract with the right arities.
func Validate(source string) error {
	info, err := mangle.Analyze(source)
	if err != nil {
		return err
	}

	declared := make(map[string]int, len(info.Decls))
	for sym := range info.Decls {
		declared[sym.Symbol] = sym.Arity
	}

	var problems []string
	for pred, arity := range Contract {
		got, ok := declared[pred]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%s/%d is not declared", pred, arity))
		case got != arity:
			problems = append(problems, fmt.Sprintf("%s is declared with arity %d, want %d", pred, got, arity))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("rules do not satisfy the advisor contract: %s", strings.Join(problems, "; "))
	}
	return nil
}
