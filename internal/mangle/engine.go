// Package mangle provides the rule session used by musicnerd: a Google Mangle
// program plus a working memory of asserted facts, evaluated to a fixed point on demand.
package mangle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// ErrNotEvaluated is returned when facts are read before the first evaluation.
var ErrNotEvaluated = errors.New("rule session has not been evaluated")

// Config holds rule session configuration.
type Config struct {
	// FactLimit caps the number of facts a single evaluation may create. Zero disables the cap.
	FactLimit int `json:"fact_limit"`
	// MaxAsserted caps the working memory. Zero disables the cap.
	MaxAsserted int `json:"max_asserted"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FactLimit:   100000,
		MaxAsserted: 1000,
	}
}

// Engine is a single rule session. Asserted facts form the working memory;
// Evaluate derives everything else into a fresh store so that retracting a fact
// also retracts its consequences.
type Engine struct {
	config Config

	mu             sync.RWMutex
	source         string
	programInfo    *analysis.ProgramInfo
	predicateIndex map[string]ast.PredicateSym
	asserted       []ast.Atom
	store          factstore.FactStoreWithRemove
	lastEval       time.Time
	lastDuration   time.Duration
}

// Fact represents a single fact in working memory or in the derived store.
type Fact struct {
	Predicate string        `json:"predicate"`
	Args      []interface{} `json:"args"`

	// key is the exact atom text for facts read back from the engine.
	key string
}

// String returns the Datalog representation of the fact.
func (f Fact) String() string {
	var args []string
	for _, arg := range f.Args {
		switch v := arg.(type) {
		case string:
			if strings.HasPrefix(v, "/") {
				args = append(args, v)
			} else {
				args = append(args, fmt.Sprintf("%q", v))
			}
		case int:
			args = append(args, fmt.Sprintf("%d", v))
		case int64:
			args = append(args, fmt.Sprintf("%d", v))
		case float64:
			args = append(args, fmt.Sprintf("%f", v))
		case bool:
			if v {
				args = append(args, "/true")
			} else {
				args = append(args, "/false")
			}
		default:
			args = append(args, fmt.Sprintf("%v", v))
		}
	}
	return fmt.Sprintf("%s(%s).", f.Predicate, strings.Join(args, ", "))
}

// Stats contains session statistics.
type Stats struct {
	AssertedFacts   int            `json:"asserted_facts"`
	TotalFacts      int            `json:"total_facts"`
	PredicateCounts map[string]int `json:"predicate_counts"`
	LastEval        time.Time      `json:"last_eval"`
	LastDuration    time.Duration  `json:"last_duration"`
}

// NewEngine creates an empty rule session.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		config:         cfg,
		predicateIndex: make(map[string]ast.PredicateSym),
	}
}

// Analyze parses and analyzes a Mangle program without loading it.
func Analyze(source string) (*analysis.ProgramInfo, error) {
	unit, err := parse.Unit(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze rules: %w", err)
	}
	return info, nil
}

// LoadProgramFile reads a .mg file and loads it.
func (e *Engine) LoadProgramFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return e.LoadProgram(string(data))
}

// LoadProgram replaces the rule program. Working memory is kept, but every
// asserted fact must still be declared by the new program; otherwise the old
// program stays in place.
func (e *Engine) LoadProgram(source string) error {
	info, err := Analyze(source)
	if err != nil {
		return err
	}

	index := make(map[string]ast.PredicateSym, len(info.Decls))
	for sym := range info.Decls {
		index[sym.Symbol] = sym
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, atom := range e.asserted {
		sym, ok := index[atom.Predicate.Symbol]
		if !ok || sym.Arity != atom.Predicate.Arity {
			return fmt.Errorf("asserted fact %s is not declared by the new rules", atom.String())
		}
	}

	e.source = source
	e.programInfo = info
	e.predicateIndex = index
	e.store = nil
	return nil
}

// Source returns the currently loaded program text.
func (e *Engine) Source() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.source
}

// Assert adds a fact to working memory. Duplicates are ignored.
// The derived store is not touched until Evaluate runs.
func (e *Engine) Assert(predicate string, args ...interface{}) (Fact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.programInfo == nil {
		return Fact{}, fmt.Errorf("no rules loaded; call LoadProgram first")
	}

	atom, err := e.factToAtomLocked(Fact{Predicate: predicate, Args: args})
	if err != nil {
		return Fact{}, err
	}

	for _, existing := range e.asserted {
		if existing.String() == atom.String() {
			return atomToFact(atom), nil
		}
	}

	if e.config.MaxAsserted > 0 && len(e.asserted) >= e.config.MaxAsserted {
		return Fact{}, fmt.Errorf("working memory limit exceeded: %d", e.config.MaxAsserted)
	}

	e.asserted = append(e.asserted, atom)
	return atomToFact(atom), nil
}

// Retract removes a fact from working memory and reports whether it was present.
func (e *Engine) Retract(fact Fact) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := fact.key
	if key == "" {
		atom, err := e.factToAtomLocked(fact)
		if err != nil {
			return false
		}
		key = atom.String()
	}
	for i := len(e.asserted) - 1; i >= 0; i-- {
		if e.asserted[i].String() == key {
			e.asserted = append(e.asserted[:i], e.asserted[i+1:]...)
			return true
		}
	}
	return false
}

// RetractAll removes every asserted fact of a predicate and returns how many went.
func (e *Engine) RetractAll(predicate string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.asserted[:0]
	removed := 0
	for _, atom := range e.asserted {
		if atom.Predicate.Symbol == predicate {
			removed++
			continue
		}
		kept = append(kept, atom)
	}
	e.asserted = kept
	return removed
}

// Asserted returns working memory facts of a predicate in insertion order.
// An empty predicate returns all of them.
func (e *Engine) Asserted(predicate string) []Fact {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Fact
	for _, atom := range e.asserted {
		if predicate == "" || atom.Predicate.Symbol == predicate {
			out = append(out, atomToFact(atom))
		}
	}
	return out
}

// Evaluate runs the program over working memory to a fixed point.
// The previous derived store stays visible if evaluation fails.
func (e *Engine) Evaluate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.programInfo == nil {
		return fmt.Errorf("no rules loaded; call LoadProgram first")
	}

	store := factstore.NewSimpleInMemoryStore()
	for _, atom := range e.asserted {
		store.Add(atom)
	}

	var opts []mengine.EvalOption
	if e.config.FactLimit > 0 {
		opts = append(opts, mengine.WithCreatedFactLimit(e.config.FactLimit))
	}

	start := time.Now()
	if _, err := mengine.EvalProgramWithStats(e.programInfo, store, opts...); err != nil {
		return fmt.Errorf("rule evaluation failed: %w", err)
	}

	e.store = store
	e.lastEval = start
	e.lastDuration = time.Since(start)
	return nil
}

// GetFacts returns all facts of a predicate from the last evaluation.
func (e *Engine) GetFacts(predicate string) ([]Fact, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sym, ok := e.predicateIndex[predicate]
	if !ok {
		return nil, fmt.Errorf("predicate %s is not declared", predicate)
	}
	if e.store == nil {
		return nil, ErrNotEvaluated
	}

	var results []Fact
	err := e.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		results = append(results, atomToFact(atom))
		return nil
	})
	return results, err
}

// Snapshot returns every fact in the derived store, sorted by predicate and text.
func (e *Engine) Snapshot() ([]Fact, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.store == nil {
		return nil, ErrNotEvaluated
	}

	var atoms []ast.Atom
	for _, sym := range e.store.ListPredicates() {
		_ = e.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
			atoms = append(atoms, atom)
			return nil
		})
	}
	sort.Slice(atoms, func(i, j int) bool {
		if atoms[i].Predicate.Symbol != atoms[j].Predicate.Symbol {
			return atoms[i].Predicate.Symbol < atoms[j].Predicate.Symbol
		}
		return atoms[i].String() < atoms[j].String()
	})

	facts := make([]Fact, len(atoms))
	for i, atom := range atoms {
		facts[i] = atomToFact(atom)
	}
	return facts, nil
}

// GetStats returns overall statistics for the session.
func (e *Engine) GetStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := Stats{
		AssertedFacts:   len(e.asserted),
		PredicateCounts: make(map[string]int),
		LastEval:        e.lastEval,
		LastDuration:    e.lastDuration,
	}
	if e.store == nil {
		return stats
	}
	for _, sym := range e.store.ListPredicates() {
		count := 0
		_ = e.store.GetFacts(ast.NewQuery(sym), func(ast.Atom) error {
			count++
			return nil
		})
		stats.PredicateCounts[sym.Symbol] = count
		stats.TotalFacts += count
	}
	return stats
}

// Clear empties working memory and drops the derived store. The program stays loaded.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.asserted = nil
	e.store = nil
}

// Close releases session resources.
func (e *Engine) Close() error {
	e.Clear()
	return nil
}

func (e *Engine) factToAtomLocked(fact Fact) (ast.Atom, error) {
	sym, ok := e.predicateIndex[fact.Predicate]
	if !ok {
		return ast.Atom{}, fmt.Errorf("predicate %s is not declared in rules", fact.Predicate)
	}

	if len(fact.Args) != sym.Arity {
		return ast.Atom{}, fmt.Errorf("predicate %s expects %d args, got %d", fact.Predicate, sym.Arity, len(fact.Args))
	}

	var decl *ast.Decl
	if e.programInfo != nil {
		decl = e.programInfo.Decls[sym]
	}

	args := make([]ast.BaseTerm, len(fact.Args))
	for i, raw := range fact.Args {
		var expectedType ast.ConstantType = -1
		if decl != nil && len(decl.Bounds) > 0 {
			bounds := decl.Bounds[0].Bounds
			if len(bounds) > i {
				if c, ok := bounds[i].(ast.Constant); ok {
					switch c.Symbol {
					case "/name":
						expectedType = ast.NameType
					case "/string":
						expectedType = ast.StringType
					case "/number":
						expectedType = ast.NumberType
					}
				}
			}
		}

		term, err := convertValueToTypedTerm(raw, expectedType)
		if err != nil {
			return ast.Atom{}, fmt.Errorf("predicate %s arg %d: %w", fact.Predicate, i, err)
		}
		args[i] = term
	}

	return ast.Atom{Predicate: sym, Args: args}, nil
}

// convertValueToTypedTerm converts a Go value to a Mangle term. Strings are
// names only when they start with "/" or when the declaration asks for a name.
func convertValueToTypedTerm(value interface{}, expectedType ast.ConstantType) (ast.BaseTerm, error) {
	switch expectedType {
	case ast.NameType:
		if s, ok := value.(string); ok {
			if !strings.HasPrefix(s, "/") {
				return ast.Name("/" + s)
			}
			return ast.Name(s)
		}
	case ast.StringType:
		if s, ok := value.(string); ok {
			return ast.String(s), nil
		}
	}

	switch v := value.(type) {
	case ast.BaseTerm:
		return v, nil
	case string:
		if strings.HasPrefix(v, "/") {
			return ast.Name(v)
		}
		return ast.String(v), nil
	case int:
		return ast.Number(int64(v)), nil
	case int32:
		return ast.Number(int64(v)), nil
	case int64:
		return ast.Number(v), nil
	case float64:
		return ast.Float64(v), nil
	case bool:
		if v {
			return ast.TrueConstant, nil
		}
		return ast.FalseConstant, nil
	default:
		return nil, fmt.Errorf("unsupported fact argument type %T", v)
	}
}

func atomToFact(atom ast.Atom) Fact {
	args := make([]interface{}, len(atom.Args))
	for i, arg := range atom.Args {
		args[i] = convertBaseTermToInterface(arg)
	}
	return Fact{Predicate: atom.Predicate.Symbol, Args: args, key: atom.String()}
}

func convertBaseTermToInterface(term ast.BaseTerm) interface{} {
	switch v := term.(type) {
	case ast.Constant:
		return constantToInterface(v)
	case ast.Variable:
		return v.Symbol
	default:
		return fmt.Sprintf("%v", term)
	}
}

func constantToInterface(constant ast.Constant) interface{} {
	switch constant.Type {
	case ast.StringType, ast.NameType, ast.BytesType:
		return constant.Symbol
	case ast.NumberType:
		return constant.NumValue
	case ast.Float64Type:
		return math.Float64frombits(uint64(constant.NumValue))
	default:
		return constant.String()
	}
}
