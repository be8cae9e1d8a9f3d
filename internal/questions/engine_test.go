package questions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publicis/arena/internal/llm"
	"github.com/publicis/arena/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// uniqueResponder answers every call with a new question.
func uniqueResponder() func(context.Context, llm.Request) (*llm.Response, error) {
	var n atomic.Int64
	return func(_ context.Context, _ llm.Request) (*llm.Response, error) {
		i := n.Add(1)
		return &llm.Response{Content: draftJSON(fmt.Sprintf("Question number %d?", i), fmt.Sprintf("hint-%d", i))}, nil
	}
}

type countingRecorder struct {
	mu  sync.Mutex
	got map[string]int
}

func (r *countingRecorder) GenerationOutcome(o string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.got == nil {
		r.got = map[string]int{}
	}
	r.got[o]++
}

func seedQuestions(t *testing.T, s *store.Store, category, level string, n int) {
	t.Helper()
	for i := range n {
		d := Draft{
			Question: fmt.Sprintf("Seeded %d?", i),
			Choices:  [4]string{"a", "b", "c", "d"},
		}
		_, err := s.Questions().Insert(context.Background(), d.toQuestion(category, level, HashQuestion(d.Question)))
		require.NoError(t, err)
	}
}

func ids(qs []store.Question) map[string]bool {
	out := map[string]bool{}
	for _, q := range qs {
		out[q.ID] = true
	}
	return out
}

func TestEnsureQuestions_GeneratesShortfall(t *testing.T) {
	s := openStore(t)
	mock := llm.NewMockProvider()
	mock.Func = uniqueResponder()
	rec := &countingRecorder{}

	e := NewEngine(s.Questions(), NewLLMGenerator(mock, DefaultConfig()), WithRecorder(rec), WithParallelism(3))
	got, err := e.EnsureQuestions(context.Background(), "seo", "beginner", 5)
	require.NoError(t, err)

	assert.Len(t, got, 5)
	assert.Len(t, ids(got), 5)
	assert.Equal(t, 5, mock.CallCount())
	assert.Equal(t, 5, rec.got[OutcomeAccepted])
	for _, q := range got {
		assert.Equal(t, "seo", q.CategorySlug)
		assert.Equal(t, HashQuestion(q.Question), q.HashHint)
	}
}

func TestEnsureQuestions_EnoughStoredSkipsGeneration(t *testing.T) {
	s := openStore(t)
	seedQuestions(t, s, "creative", "expert", 4)
	mock := llm.NewMockProvider()

	got, err := NewEngine(s.Questions(), NewLLMGenerator(mock, DefaultConfig())).
		EnsureQuestions(context.Background(), "creative", "expert", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Zero(t, mock.CallCount())
}

func TestEnsureQuestions_NotConfigured(t *testing.T) {
	s := openStore(t)
	seedQuestions(t, s, "seo", "beginner", 2)
	e := NewEngine(s.Questions(), nil)

	_, err := e.EnsureQuestions(context.Background(), "seo", "beginner", 5)
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, ErrNotConfigured)

	got, err := e.EnsureQuestions(context.Background(), "seo", "beginner", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestEnsureQuestions_DuplicatesDropped(t *testing.T) {
	s := openStore(t)
	mock := llm.NewMockProvider()
	mock.Func = func(context.Context, llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: draftJSON("Always the same?", "same")}, nil
	}
	rec := &countingRecorder{}

	got, err := NewEngine(s.Questions(), NewLLMGenerator(mock, DefaultConfig()), WithRecorder(rec)).
		EnsureQuestions(context.Background(), "strategy", "intermediate", 4)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, rec.got[OutcomeAccepted])
	assert.Equal(t, 3, rec.got[OutcomeDuplicate])
}

func TestEnsureQuestions_SeenHintIsDuplicate(t *testing.T) {
	s := openStore(t)
	seedQuestions(t, s, "seo", "expert", 1)
	existing, err := s.Questions().ListByPair(context.Background(), "seo", "expert", 1)
	require.NoError(t, err)

	// A new stem whose hint equals a stored hash.
	mock := llm.NewMockProvider(llm.MockResponse{Content: draftJSON("Brand new stem?", existing[0].HashHint)})
	rec := &countingRecorder{}

	got, err := NewEngine(s.Questions(), NewLLMGenerator(mock, DefaultConfig()), WithRecorder(rec)).
		EnsureQuestions(context.Background(), "seo", "expert", 2)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, rec.got[OutcomeDuplicate])

	// The avoid list carried the stored hash.
	require.Len(t, mock.Calls(), 1)
	assert.Contains(t, mock.Calls()[0].Messages[0].Content, existing[0].HashHint)
}

func TestEnsureQuestions_FailuresSwallowed(t *testing.T) {
	s := openStore(t)
	var n atomic.Int64
	unique := uniqueResponder()
	mock := llm.NewMockProvider()
	mock.Func = func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		switch n.Add(1) % 3 {
		case 0:
			return nil, &llm.ErrProviderUnavailable{Err: errors.New("down")}
		case 1:
			return nil, &llm.ErrInvalidResponse{Err: errors.New("bad")}
		}
		return unique(ctx, req)
	}
	rec := &countingRecorder{}

	got, err := NewEngine(s.Questions(), NewLLMGenerator(mock, DefaultConfig()), WithRecorder(rec), WithParallelism(1)).
		EnsureQuestions(context.Background(), "performance", "beginner", 6)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, rec.got[OutcomeAccepted])
	assert.Equal(t, 2, rec.got[OutcomeBackend])
	assert.Equal(t, 2, rec.got[OutcomeFormat])
}

func TestEnsureQuestions_DefaultDesired(t *testing.T) {
	s := openStore(t)
	mock := llm.NewMockProvider()
	mock.Func = uniqueResponder()

	got, err := NewEngine(s.Questions(), NewLLMGenerator(mock, DefaultConfig())).
		EnsureQuestions(context.Background(), "seo", "beginner", 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultDesired)
}

func TestEnsureQuestions_ResultNewestFirstAndBounded(t *testing.T) {
	s := openStore(t)
	seedQuestions(t, s, "creative", "beginner", 2)
	mock := llm.NewMockProvider()
	mock.Func = uniqueResponder()

	got, err := NewEngine(s.Questions(), NewLLMGenerator(mock, DefaultConfig())).
		EnsureQuestions(context.Background(), "creative", "beginner", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Len(t, ids(got), 3)
	assert.Equal(t, 1, mock.CallCount())
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].CreatedAt.After(got[i-1].CreatedAt))
	}
}

func TestEnsureQuestions_GeneratesConcurrently(t *testing.T) {
	const n = 6
	s := openStore(t)
	mock := llm.NewMockProvider()

	var (
		inFlight atomic.Int64
		peak     atomic.Int64
		timedOut atomic.Bool
		all      = make(chan struct{})
		once     sync.Once
	)
	unique := uniqueResponder()
	mock.Func = func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		if cur == n {
			once.Do(func() { close(all) })
		}
		select {
		case <-all:
		case <-time.After(5 * time.Second):
			timedOut.Store(true)
			return nil, errors.New("generation calls did not overlap")
		}
		return unique(ctx, req)
	}

	e := NewEngine(s.Questions(), NewLLMGenerator(mock, DefaultConfig()))
	got, err := e.EnsureQuestions(context.Background(), "seo", "expert", n)
	require.NoError(t, err)

	require.False(t, timedOut.Load(), "generations ran serially")
	assert.EqualValues(t, n, peak.Load())
	assert.Len(t, got, n)
	assert.Equal(t, n, mock.CallCount())
}
