package questions

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/publicis/arena/internal/logger"
	"github.com/publicis/arena/internal/store"
)

// DefaultDesired is the quiz length used when a caller asks for zero or
// fewer questions.
const DefaultDesired = 10

// Generation outcomes reported to the Recorder.
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeFormat    = "format"
	OutcomeBackend   = "backend"
	OutcomeStore     = "store"
)

// QuestionStore is the subset of the question repository the engine uses.
type QuestionStore interface {
	ListByPair(ctx context.Context, category, level string, limit int) ([]store.Question, error)
	RecentByPair(ctx context.Context, category, level string, limit int) ([]store.Question, error)
	Insert(ctx context.Context, q store.Question) (*store.Question, error)
}

// Recorder receives one outcome per generation task.
type Recorder interface {
	GenerationOutcome(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) GenerationOutcome(string) {}

// Engine keeps each (category, level) pair stocked with questions,
// generating the shortfall on demand.
type Engine struct {
	questions   QuestionStore
	gen         Generator
	log         *logger.Logger
	recorder    Recorder
	parallelism int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithParallelism caps concurrent generation tasks. Zero or less means
// unbounded.
func WithParallelism(n int) Option {
	return func(e *Engine) { e.parallelism = n }
}

// NewEngine returns an engine. gen may be nil when no backend is
// configured; the engine then serves stored questions only.
func NewEngine(questions QuestionStore, gen Generator, opts ...Option) *Engine {
	e := &Engine{
		questions: questions,
		gen:       gen,
		log:       logger.NewNop(),
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Configured reports whether the engine can generate.
func (e *Engine) Configured() bool { return e.gen != nil }

// EnsureQuestions returns up to desired questions for the pair, generating
// the missing ones first. Individual generation failures are logged and
// never returned; the result may be shorter than desired.
func (e *Engine) EnsureQuestions(ctx context.Context, category, level string, desired int) ([]store.Question, error) {
	if desired <= 0 {
		desired = DefaultDesired
	}

	existing, err := e.questions.ListByPair(ctx, category, level, desired)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(existing) >= desired {
		return existing[:desired], nil
	}
	if e.gen == nil {
		return nil, &ConfigurationError{Err: ErrNotConfigured}
	}

	needed := desired - len(existing)
	seen := newHashSet(existing)
	log := e.log.With("category", category, "level", level)
	log.Info("generating questions", "existing", len(existing), "needed", needed)

	var g errgroup.Group
	if e.parallelism > 0 {
		g.SetLimit(e.parallelism)
	}
	for range needed {
		g.Go(func() error {
			outcome, err := e.generateOne(ctx, category, level, seen)
			e.recorder.GenerationOutcome(outcome)
			if err != nil {
				log.Warn("question generation failed", "outcome", outcome, "error", err)
			}
			// Failures never cancel sibling tasks.
			return nil
		})
	}
	_ = g.Wait()

	final, err := e.questions.RecentByPair(ctx, category, level, desired)
	if err != nil {
		return nil, fmt.Errorf("reload questions: %w", err)
	}
	if len(final) > desired {
		final = final[:desired]
	}
	return final, nil
}

func (e *Engine) generateOne(ctx context.Context, category, level string, seen *hashSet) (string, error) {
	draft, err := e.gen.Generate(ctx, GenerateInput{
		Category:    category,
		Level:       level,
		AvoidHashes: seen.list(),
	})
	if err != nil {
		var ferr *GenerationFormatError
		if errors.As(err, &ferr) {
			return OutcomeFormat, err
		}
		return OutcomeBackend, err
	}

	hash := HashQuestion(draft.Question)
	if !seen.claim(hash, draft.HashHint) {
		return OutcomeDuplicate, &DuplicateError{Hash: hash}
	}

	if _, err := e.questions.Insert(ctx, draft.toQuestion(category, level, hash)); err != nil {
		if store.IsUniqueViolation(err) {
			return OutcomeDuplicate, &DuplicateError{Hash: hash}
		}
		return OutcomeStore, err
	}
	return OutcomeAccepted, nil
}

// hashSet is the shared set of hashes known for one EnsureQuestions call.
type hashSet struct {
	mu    sync.Mutex
	order []string
	set   map[string]bool
}

func newHashSet(existing []store.Question) *hashSet {
	s := &hashSet{set: make(map[string]bool, len(existing))}
	for _, q := range existing {
		s.add(q.HashHint)
		s.add(HashQuestion(q.Question))
	}
	return s
}

func (s *hashSet) add(h string) {
	if h == "" || s.set[h] {
		return
	}
	s.set[h] = true
	s.order = append(s.order, h)
}

// claim records hash and hint unless either is already known.
func (s *hashSet) claim(hash, hint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set[hash] || (hint != "" && s.set[hint]) {
		return false
	}
	s.add(hash)
	s.add(hint)
	return true
}

func (s *hashSet) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}
