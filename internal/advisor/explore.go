package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInconsistent marks a state whose options disagree with its finished flag.
var ErrInconsistent = errors.New("options and finished flag disagree")

// DefaultMaxDepth bounds Explore against rule programs that loop.
const DefaultMaxDepth = 32

// Visit is one state reached by Explore.
type Visit struct {
	Path  []string
	State GuiState
}

// Issue is a problem found on a path.
type Issue struct {
	Path []string
	Err  error
}

func (i Issue) String() string {
	path := "(start)"
	if len(i.Path) > 0 {
		path = strings.Join(i.Path, " > ")
	}
	return fmt.Sprintf("%s: %v", path, i.Err)
}

// Report summarizes an exploration.
type Report struct {
	States   int
	Finals   int
	MaxDepth int
	Issues   []Issue
}

// OK reports whether no issue was found.
func (r Report) OK() bool {
	return len(r.Issues) == 0
}

// Explore walks every path reachable from the current state, depth first,
// by submitting each option and undoing it afterwards. visit may be nil.
// The advisor ends on the state it started from.
func (a *Advisor) Explore(ctx context.Context, maxDepth int, visit func(Visit) error) (Report, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	start, err := a.Current(ctx)
	if err != nil {
		return Report{Issues: []Issue{{Err: err}}}, nil
	}

	var report Report
	depth := len(a.Answers())
	err = a.explore(ctx, start, nil, maxDepth, visit, &report)
	if err != nil {
		if rerr := a.unwind(ctx, depth); rerr != nil {
			return report, fmt.Errorf("%w (and could not return to start: %v)", err, rerr)
		}
	}
	return report, err
}

// unwind undoes answers until depth remain. It ignores cancellation of ctx
// so an aborted walk still leaves the advisor where it started.
func (a *Advisor) unwind(ctx context.Context, depth int) error {
	ctx = context.WithoutCancel(ctx)
	for len(a.Answers()) > depth {
		if _, err := a.Undo(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *Advisor) explore(ctx context.Context, state GuiState, path []string, maxDepth int, visit func(Visit) error, report *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	report.States++
	if len(path) > report.MaxDepth {
		report.MaxDepth = len(path)
	}
	if visit != nil {
		if err := visit(Visit{Path: append([]string(nil), path...), State: state}); err != nil {
			return err
		}
	}

	if !state.Consistent() {
		report.Issues = append(report.Issues, Issue{Path: append([]string(nil), path...), Err: fmt.Errorf("%w at %s", ErrInconsistent, state.Stage)})
	}
	if state.Finished {
		report.Finals++
		return nil
	}
	if len(path) >= maxDepth {
		report.Issues = append(report.Issues, Issue{Path: append([]string(nil), path...), Err: fmt.Errorf("no recommendation within %d answers", maxDepth)})
		return nil
	}

	for _, option := range state.Options {
		next := append(append([]string(nil), path...), option)
		child, err := a.Submit(ctx, state, option)
		if err != nil {
			report.Issues = append(report.Issues, Issue{Path: next, Err: err})
			continue
		}
		if err := a.explore(ctx, child, next, maxDepth, visit, report); err != nil {
			return err
		}
		if _, err := a.Undo(ctx); err != nil {
			return fmt.Errorf("undo after %s: %w", strings.Join(next, " > "), err)
		}
	}
	return nil
}
