package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetersoncode/stepflow"
)

// recorder is a step that logs its invocations and can be told to fail.
type recorder struct {
	name  string
	fail  bool
	mu    sync.Mutex
	calls []int
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Run(_ context.Context, _ *stepflow.ExecutionContext, in int) (int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, in)
	r.mu.Unlock()
	if r.fail {
		return 0, stepflow.NewExecutionError(r.name+" failed", nil)
	}
	return in + 1, nil
}

func (r *recorder) Calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls...)
}

func double() *Func[int, int] {
	return NewFunc("double", func(_ context.Context, x int) (int, error) { return x * 2, nil })
}

func addTen() *Func[int, int] {
	return NewFunc("add_ten", func(_ context.Context, x int) (int, error) { return x + 10, nil })
}

func TestFunc(t *testing.T) {
	ec := stepflow.NewExecutionContext()

	t.Run("runs closure", func(t *testing.T) {
		out, err := double().Run(context.Background(), ec, 4)
		require.NoError(t, err)
		assert.Equal(t, 8, out)
	})

	t.Run("default name from types", func(t *testing.T) {
		f := NewFunc("", func(_ context.Context, s string) (int, error) { return len(s), nil })
		assert.Equal(t, "Func[string,int]", f.Name())
	})

	t.Run("step func sees execution context", func(t *testing.T) {
		f := NewStepFunc("count", func(_ context.Context, ec *stepflow.ExecutionContext, s string) (string, error) {
			ec.RecordTokens(len(s), 1)
			return s, nil
		})
		local := stepflow.NewExecutionContext()
		_, err := f.Run(context.Background(), local, "abc")
		require.NoError(t, err)
		assert.Equal(t, 4, local.Snapshot().TotalTokens)
	})

	t.Run("Named overrides name", func(t *testing.T) {
		s := Named[int, int](double(), "twice")
		assert.Equal(t, "twice", s.Name())
		out, err := s.Run(context.Background(), ec, 3)
		require.NoError(t, err)
		assert.Equal(t, 6, out)
	})
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "int", TypeName[int]())
	assert.Equal(t, "[]string", TypeName[[]string]())
	assert.Equal(t, "any", TypeName[any]())
	assert.Equal(t, "workflow.Pair[int,string]", TypeName[Pair[int, string]]())
}

func TestErase(t *testing.T) {
	ec := stepflow.NewExecutionContext()
	dyn := Erase[int, int](double())

	t.Run("runs with matching input", func(t *testing.T) {
		out, err := dyn.Run(context.Background(), ec, 21)
		require.NoError(t, err)
		assert.Equal(t, 42, out)
		assert.Equal(t, "double", dyn.Name())
	})

	t.Run("nil input is zero value", func(t *testing.T) {
		out, err := dyn.Run(context.Background(), ec, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, out)
	})

	t.Run("mismatched input is a validation error", func(t *testing.T) {
		_, err := dyn.Run(context.Background(), ec, "21")
		require.Error(t, err)
		assert.True(t, stepflow.IsValidation(err))
		assert.True(t, errors.Is(err, ErrTypeMismatch))
	})

	t.Run("Typed restores types", func(t *testing.T) {
		back := Typed[int, int](dyn)
		out, err := back.Run(context.Background(), ec, 5)
		require.NoError(t, err)
		assert.Equal(t, 10, out)
	})

	t.Run("Typed rejects wrong output", func(t *testing.T) {
		back := Typed[int, string](dyn)
		_, err := back.Run(context.Background(), ec, 5)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})
}
