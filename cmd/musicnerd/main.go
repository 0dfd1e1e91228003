package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	rulesPath  string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "musicnerd",
	Short: "Electronic Music Recommender",
	Long: `musicnerd asks a few questions about the electronic music you like and
recommends a record. Every question, answer and recommendation comes from a
Google Mangle (Datalog) rule program; the window only shows what the rules derive.

Run without arguments to start the interactive questionnaire.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Interactive mode logs to files only
		if cmd == cmd.Root() {
			return nil
		}

		config := zap.NewProductionConfig()
		config.OutputPaths = []string{"stderr"}
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runInteractive,
}

// checkCmd lints a rule program
var checkCmd = &cobra.Command{
	Use:   "check [rules.mg]",
	Short: "Validate a rule program and walk every path through it",
	Long: `Parses and analyzes the rule program, checks that it declares
gui_state/5, gui_option/3 and user_answer/3, then answers every question in
every possible way. Reports states whose options disagree with their finished
flag, answers that lead nowhere, and image keys missing from the image table.

Without an argument the configured (or bundled) rules are checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

// walkCmd answers questions from the command line
var walkCmd = &cobra.Command{
	Use:   "walk",
	Short: "Answer the questionnaire non-interactively",
	Long: `Submits the given answers in order and prints the questions asked,
the answers given and the recommendation reached.

Example:
  musicnerd walk --answers Techno,Dark`,
	RunE: runWalk,
}

// factsCmd dumps working memory
var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Print the facts of a session",
	Long: `Starts a session, optionally submits answers, and prints every fact of
the last evaluation.

Examples:
  musicnerd facts
  musicnerd facts --answers House --predicate gui_state`,
	RunE: runFacts,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.musicnerd/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rulesPath, "rules", "r", "", "Rules file (overrides config)")

	checkCmd.Flags().IntVar(&checkMaxDepth, "max-depth", 0, "Maximum answers per path (0: default)")

	walkCmd.Flags().StringSliceVarP(&walkAnswers, "answers", "a", nil, "Answers to submit, in order")
	walkCmd.Flags().BoolVar(&walkPlain, "plain", false, "Print markdown without rendering")

	factsCmd.Flags().StringSliceVarP(&factsAnswers, "answers", "a", nil, "Answers to submit before dumping")
	factsCmd.Flags().StringVarP(&factsPredicate, "predicate", "p", "", "Only print facts of this predicate")

	rootCmd.AddCommand(checkCmd, walkCmd, factsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
