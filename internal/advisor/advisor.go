package advisor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/mangle/ast"
	"github.com/google/uuid"

	"musicnerd/internal/logging"
	"musicnerd/internal/mangle"
	"musicnerd/internal/rules"
)

// RuleSession is the part of the rule engine the advisor drives.
type RuleSession interface {
	LoadProgram(source string) error
	Source() string
	Assert(predicate string, args ...interface{}) (mangle.Fact, error)
	Retract(fact mangle.Fact) bool
	RetractAll(predicate string) int
	Asserted(predicate string) []mangle.Fact
	Evaluate(ctx context.Context) error
	GetFacts(predicate string) ([]mangle.Fact, error)
	Snapshot() ([]mangle.Fact, error)
}

// Advisor drives one rule session. Not safe for concurrent use: every call
// happens on the UI update loop.
type Advisor struct {
	session   RuleSession
	id        string
	rootStage string
	log       *logging.Logger
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithRootStage sets the stage treated as the first question.
func WithRootStage(stage string) Option {
	return func(a *Advisor) {
		a.rootStage = stage
	}
}

// New creates an advisor over session.
func New(session RuleSession, opts ...Option) *Advisor {
	id := uuid.NewString()
	a := &Advisor{
		session:   session,
		id:        id,
		rootStage: rules.RootStage,
		log:       logging.Get(logging.CategoryEngine).With("session", id),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID identifies this session in logs.
func (a *Advisor) ID() string {
	return a.id
}

// Initialize loads the rule program, runs the first evaluation and returns
// the first state. Any error here is fatal for the caller.
func (a *Advisor) Initialize(ctx context.Context, source string) (GuiState, error) {
	if err := rules.Validate(source); err != nil {
		return GuiState{}, err
	}
	if err := a.session.LoadProgram(source); err != nil {
		return GuiState{}, fmt.Errorf("failed to start %s session: %w", rules.SessionName, err)
	}
	if err := a.session.Evaluate(ctx); err != nil {
		return GuiState{}, fmt.Errorf("initial evaluation failed: %w", err)
	}
	state, err := a.extract()
	if err != nil {
		return GuiState{}, err
	}
	a.log.Info("session started at stage %s", state.Stage)
	return state, nil
}

// Current returns the state the engine currently holds.
func (a *Advisor) Current(ctx context.Context) (GuiState, error) {
	if err := ctx.Err(); err != nil {
		return GuiState{}, err
	}
	return a.extract()
}

// Submit answers the displayed state with option. On any failure the answer
// is retracted, so the engine is back on the displayed state.
func (a *Advisor) Submit(ctx context.Context, shown GuiState, option string) (GuiState, error) {
	if shown.Finished {
		return GuiState{}, ErrFinished
	}
	if !shown.Offers(option) {
		return GuiState{}, fmt.Errorf("%w: %q", ErrUnknownOption, option)
	}

	live, err := a.extract()
	if err != nil || live.Stage != shown.Stage {
		return GuiState{}, fmt.Errorf("%w: showing %s", ErrStaleState, shown.Stage)
	}

	answer := UserAnswer{
		Stage:          shown.Stage,
		QuestionTopic:  DeriveTopic(shown, a.rootStage),
		SelectedOption: option,
	}
	fact, err := a.session.Assert(rules.PredUserAnswer,
		shown.Stage,
		"/"+string(answer.QuestionTopic),
		ast.String(option),
	)
	if err != nil {
		return GuiState{}, fmt.Errorf("failed to record answer: %w", err)
	}
	logging.Session("answer %q at %s (topic %s)", option, answer.Stage, answer.QuestionTopic)

	next, err := a.evaluateAndExtract(ctx)
	if err != nil {
		a.rollback(ctx, func() { a.session.Retract(fact) })
		return GuiState{}, err
	}
	return next, nil
}

// Undo retracts the most recent answer.
func (a *Advisor) Undo(ctx context.Context) (GuiState, error) {
	answers := a.session.Asserted(rules.PredUserAnswer)
	if len(answers) == 0 {
		return GuiState{}, ErrNothingToUndo
	}
	last := answers[len(answers)-1]
	a.session.Retract(last)
	logging.Session("undo %s", last.String())

	state, err := a.evaluateAndExtract(ctx)
	if err != nil {
		a.rollback(ctx, func() { a.reassert(last) })
		return GuiState{}, err
	}
	return state, nil
}

// Restart retracts every answer.
func (a *Advisor) Restart(ctx context.Context) (GuiState, error) {
	answers := a.session.Asserted(rules.PredUserAnswer)
	a.session.RetractAll(rules.PredUserAnswer)
	logging.Session("restart, %d answers retracted", len(answers))

	state, err := a.evaluateAndExtract(ctx)
	if err != nil {
		a.rollback(ctx, func() {
			for _, f := range answers {
				a.reassert(f)
			}
		})
		return GuiState{}, err
	}
	return state, nil
}

// Reload swaps the rule program, keeping the answers given so far. If the
// new program fails to load or yields no state, the old one is restored.
func (a *Advisor) Reload(ctx context.Context, source string) (GuiState, error) {
	if err := rules.Validate(source); err != nil {
		return GuiState{}, err
	}
	previous := a.session.Source()
	if err := a.session.LoadProgram(source); err != nil {
		return GuiState{}, err
	}
	logging.Rules("rules reloaded (%d bytes)", len(source))

	state, err := a.evaluateAndExtract(ctx)
	if err != nil {
		a.rollback(ctx, func() {
			if lerr := a.session.LoadProgram(previous); lerr != nil {
				a.log.Error("could not restore previous rules: %v", lerr)
			}
		})
		return GuiState{}, fmt.Errorf("reloaded rules rejected: %w", err)
	}
	return state, nil
}

// Answers returns the answers in working memory, oldest first.
func (a *Advisor) Answers() []UserAnswer {
	facts := a.session.Asserted(rules.PredUserAnswer)
	out := make([]UserAnswer, 0, len(facts))
	for _, f := range facts {
		if len(f.Args) != 3 {
			continue
		}
		topic := asString(f.Args[1])
		if len(topic) > 0 && topic[0] == '/' {
			topic = topic[1:]
		}
		out = append(out, UserAnswer{
			Stage:          asString(f.Args[0]),
			QuestionTopic:  Topic(topic),
			SelectedOption: asString(f.Args[2]),
		})
	}
	return out
}

// Facts returns every fact of the last evaluation.
func (a *Advisor) Facts() ([]mangle.Fact, error) {
	return a.session.Snapshot()
}

func (a *Advisor) evaluateAndExtract(ctx context.Context) (GuiState, error) {
	if err := a.session.Evaluate(ctx); err != nil {
		return GuiState{}, err
	}
	return a.extract()
}

// rollback undoes a working-memory change and re-evaluates so the derived
// store matches the state still on screen.
func (a *Advisor) rollback(ctx context.Context, undo func()) {
	undo()
	if err := a.session.Evaluate(context.WithoutCancel(ctx)); err != nil {
		a.log.Error("re-evaluation after rollback failed: %v", err)
	}
}

func (a *Advisor) reassert(f mangle.Fact) {
	args := make([]interface{}, len(f.Args))
	for i, v := range f.Args {
		args[i] = v
	}
	// The option is a string constant even when it looks like a name.
	if len(args) == 3 {
		args[2] = ast.String(asString(args[2]))
	}
	if _, err := a.session.Assert(f.Predicate, args...); err != nil {
		a.log.Error("could not restore %s: %v", f.String(), err)
	}
}

// extract reads the state fact and its options as typed values.
func (a *Advisor) extract() (GuiState, error) {
	facts, err := a.session.GetFacts(rules.PredGuiState)
	if err != nil {
		if errors.Is(err, mangle.ErrNotEvaluated) {
			return GuiState{}, ErrNoState
		}
		return GuiState{}, err
	}

	var states []GuiState
	for _, f := range facts {
		if len(f.Args) != 5 {
			continue
		}
		states = append(states, GuiState{
			Stage:          asString(f.Args[0]),
			Message:        asString(f.Args[1]),
			Recommendation: asString(f.Args[2]),
			Finished:       asBool(f.Args[3]),
			ImageKey:       asString(f.Args[4]),
		})
	}
	if len(states) == 0 {
		a.log.Warn("no %s fact after evaluation", rules.PredGuiState)
		return GuiState{}, ErrNoState
	}
	if len(states) > 1 {
		sort.Slice(states, func(i, j int) bool { return states[i].Stage < states[j].Stage })
		a.log.Warn("%d %s facts, using stage %s", len(states), rules.PredGuiState, states[0].Stage)
	}
	state := states[0]

	options, err := a.session.GetFacts(rules.PredGuiOption)
	if err != nil {
		return GuiState{}, err
	}
	type ordered struct {
		order int64
		label string
	}
	var opts []ordered
	for _, f := range options {
		if len(f.Args) != 3 || asString(f.Args[0]) != state.Stage {
			continue
		}
		order, _ := f.Args[1].(int64)
		opts = append(opts, ordered{order: order, label: asString(f.Args[2])})
	}
	sort.SliceStable(opts, func(i, j int) bool {
		if opts[i].order != opts[j].order {
			return opts[i].order < opts[j].order
		}
		return opts[i].label < opts[j].label
	})
	for _, o := range opts {
		state.Options = append(state.Options, o.label)
	}

	if !state.Consistent() {
		a.log.Warn("inconsistent state %s: finished=%v with %d options", state.Stage, state.Finished, len(state.Options))
	}
	logging.EngineDebug("state %s: %q (%d options)", state.Stage, state.Message, len(state.Options))
	return state, nil
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func asBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "/true" || b == "true"
	default:
		return false
	}
}
