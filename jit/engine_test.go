package jit

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	hperrors "github.com/deepnoodle-ai/hotpath/errors"
	"github.com/deepnoodle-ai/hotpath/hotspot"
	"github.com/deepnoodle-ai/hotpath/native"
	"github.com/deepnoodle-ai/hotpath/parser"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var modes = []Mode{ModeNative, ModeSimulate}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(opts...)
	require.Nil(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func execute(t *testing.T, e *Engine, src string) *Result {
	t.Helper()
	res, err := e.Execute(context.Background(), src)
	require.Nil(t, err, src)
	return res
}

func stats(t *testing.T, e *Engine) hotspot.Stats {
	t.Helper()
	s, err := e.Stats(context.Background())
	require.Nil(t, err)
	return s
}

func TestPromotionAtThreshold(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			e := newEngine(t, WithHotThreshold(5), WithMode(mode))
			for i := 1; i <= 4; i++ {
				res := execute(t, e, "2 + 3 * 4")
				require.Equal(t, int64(14), res.Value)
				require.False(t, res.Compiled)
				require.Equal(t, uint64(i), res.ExecutionCount)
				require.Equal(t, uint64(0), stats(t, e).TotalCompilations)
			}

			res := execute(t, e, "2 + 3 * 4")
			require.Equal(t, int64(14), res.Value)
			require.True(t, res.Compiled)
			require.Equal(t, uint64(1), stats(t, e).TotalCompilations)

			res = execute(t, e, "2+3*4")
			require.Equal(t, int64(14), res.Value)
			require.True(t, res.Compiled)
			require.Equal(t, time.Duration(0), res.CompilationTime)

			s := stats(t, e)
			require.Equal(t, uint64(1), s.TotalCompilations)
			require.Equal(t, uint64(6), s.TotalExecutions)
			require.Equal(t, uint64(2), s.CompiledExecutions)
			require.Equal(t, uint64(4), s.InterpretedExecutions)
		})
	}
}

func TestCallsNeverCompile(t *testing.T) {
	e := newEngine(t, WithHotThreshold(5))
	for i := 0; i < 20; i++ {
		res := execute(t, e, "fib(6)")
		require.Equal(t, int64(8), res.Value)
		require.False(t, res.Compiled)
	}
	s := stats(t, e)
	require.Equal(t, uint64(0), s.TotalCompilations)
	require.Equal(t, uint64(0), s.CompileFailures)

	infos, err := e.CacheInfo(context.Background())
	require.Nil(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "never_compile", infos[0].State)
	require.Equal(t, uint64(20), infos[0].Count)
}

func TestEvictLeastExecuted(t *testing.T) {
	e := newEngine(t, WithHotThreshold(100), WithMaxEntries(2))
	first := execute(t, e, "1+1")
	execute(t, e, "1+1")
	second := execute(t, e, "2+2")
	third := execute(t, e, "3+3")

	infos, err := e.CacheInfo(context.Background())
	require.Nil(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, first.Fingerprint, infos[0].Fingerprint)
	require.Equal(t, third.Fingerprint, infos[1].Fingerprint)
	for _, info := range infos {
		require.NotEqual(t, second.Fingerprint, info.Fingerprint)
	}
	require.Equal(t, uint64(1), stats(t, e).Evictions)
}

func TestSeededVariable(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			e := newEngine(t, WithHotThreshold(2), WithMode(mode))
			require.Equal(t, int64(10), execute(t, e, "x = 10").Value)

			res := execute(t, e, "x * 3 + 7")
			require.Equal(t, int64(37), res.Value)
			require.False(t, res.Compiled)

			for i := 0; i < 3; i++ {
				res = execute(t, e, "x * 3 + 7")
				require.Equal(t, int64(37), res.Value)
				require.True(t, res.Compiled)
				require.Equal(t, map[string]int64{"x": 10}, res.Environment)
			}
		})
	}
}

func TestCompiledAssignmentsCommit(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			e := newEngine(t, WithHotThreshold(1), WithMode(mode))
			require.Nil(t, e.SetVariable(context.Background(), "n", 1))
			for i := int64(2); i <= 5; i++ {
				res := execute(t, e, "n = n + 1")
				require.True(t, res.Compiled)
				require.Equal(t, i, res.Value)
			}
			env, err := e.Environment(context.Background())
			require.Nil(t, err)
			require.Equal(t, map[string]int64{"n": 5}, env)
		})
	}
}

func TestCompiledDivisionByZero(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			e := newEngine(t, WithHotThreshold(1), WithMode(mode))
			ctx := context.Background()
			require.Nil(t, e.SetVariable(ctx, "y", 2))
			res := execute(t, e, "q = 10 / y")
			require.True(t, res.Compiled)
			require.Equal(t, int64(5), res.Value)

			require.Nil(t, e.SetVariable(ctx, "y", 0))
			_, err := e.Execute(ctx, "q = 10 / y")
			require.ErrorIs(t, err, hperrors.ErrDivisionByZero)
			require.Equal(t, "division by zero (1:8)", err.Error())

			env, err := e.Environment(ctx)
			require.Nil(t, err)
			require.Equal(t, map[string]int64{"q": 5, "y": 0}, env)
			require.Equal(t, uint64(1), stats(t, e).FailedExecutions)
		})
	}
}

func TestUnboundVariableNeverCompiles(t *testing.T) {
	e := newEngine(t, WithHotThreshold(2))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := e.Execute(ctx, "z + 1")
		require.ErrorIs(t, err, hperrors.ErrUndefinedVariable)
	}
	s := stats(t, e)
	require.Equal(t, uint64(0), s.TotalCompilations)
	require.Equal(t, uint64(1), s.CompileFailures)
	require.Equal(t, uint64(3), s.FailedExecutions)

	require.Nil(t, e.SetVariable(ctx, "z", 4))
	res := execute(t, e, "z + 1")
	require.Equal(t, int64(5), res.Value)
	require.False(t, res.Compiled)
}

func TestMonotonicPromotion(t *testing.T) {
	e := newEngine(t, WithHotThreshold(3))
	for i := 0; i < 25; i++ {
		execute(t, e, "if(1 < 2, 40 + 2, 0)")
	}
	s := stats(t, e)
	require.Equal(t, uint64(1), s.TotalCompilations+s.CompileFailures)
	require.Equal(t, uint64(23), s.CompiledExecutions)
}

func TestEquivalenceAcrossEngines(t *testing.T) {
	program := []string{
		"a = 7", "b = -3", "c = 0",
		"a * b - c", "a / b", "a % b", "b / a", "-a % 3",
		"if(a > b, a - b, b - a)", "a == 7", "a != 7", "b <= -3", "c >= 1",
		"d = if(c, 1, 2) * a", "d + 1", "e = d = d + 1", "e * 2",
		"9223372036854775807 + a", "(a = a + 1) * 2", "a",
		"1 / c", "a % c", "pow(a, 2) + b",
	}
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			cold := newEngine(t, WithHotThreshold(1_000_000))
			hot := newEngine(t, WithHotThreshold(1), WithMode(mode))
			for round := 0; round < 3; round++ {
				for _, src := range program {
					want, wantErr := cold.Execute(ctx, src)
					got, gotErr := hot.Execute(ctx, src)
					if wantErr != nil {
						require.NotNil(t, gotErr, src)
						require.Equal(t, wantErr.Error(), gotErr.Error(), src)
						continue
					}
					require.Nil(t, gotErr, src)
					require.Equal(t, want.Value, got.Value, src)
					require.Equal(t, want.Environment, got.Environment, src)
				}
			}
			require.Greater(t, stats(t, hot).CompiledExecutions, uint64(20))
		})
	}
}

func TestTransactionalEnvironment(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	_, err := e.Execute(ctx, "(b = 5) + 1 / 0")
	require.ErrorIs(t, err, hperrors.ErrDivisionByZero)
	env, err := e.Environment(ctx)
	require.Nil(t, err)
	require.Empty(t, env)
}

func TestSyntaxErrorNotCounted(t *testing.T) {
	e := newEngine(t)
	_, err := e.Execute(context.Background(), "1 +")
	require.ErrorIs(t, err, hperrors.ErrSyntax)
	require.Equal(t, uint64(0), stats(t, e).TotalExecutions)
}

func TestBusy(t *testing.T) {
	e := newEngine(t, WithLockTimeout(20*time.Millisecond))
	ctx := context.Background()
	require.Nil(t, e.lock.acquire(ctx))

	_, err := e.Execute(ctx, "1 + 1")
	require.ErrorIs(t, err, hperrors.ErrBusy)
	require.Equal(t, hperrors.E4001, hperrors.CodeOf(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Execute(cancelled, "1 + 1")
	require.ErrorIs(t, err, context.Canceled)

	e.lock.release()
	require.Equal(t, uint64(1), stats(t, e).BusyRejections)
	require.Equal(t, int64(2), execute(t, e, "1 + 1").Value)
}

func TestConcurrentExecution(t *testing.T) {
	e := newEngine(t, WithHotThreshold(5), WithLockTimeout(5*time.Second))
	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				src := fmt.Sprintf("%d * 3 + %d", w, i%4)
				res, err := e.Execute(context.Background(), src)
				if err != nil {
					return err
				}
				if want := int64(w*3 + i%4); res.Value != want {
					return fmt.Errorf("%s = %d, want %d", src, res.Value, want)
				}
			}
			return nil
		})
	}
	require.Nil(t, g.Wait())
	s := stats(t, e)
	require.Equal(t, uint64(400), s.TotalExecutions)
	require.Equal(t, uint64(32), s.TotalCompilations)
}

func TestConcurrentIncrement(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		threshold uint64
		compiled  bool
	}{
		{"interpreted", "n = n + 1 + fib(15) * 0", 1000, false},
		{"compiled", "n = n + 1", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t,
				WithHotThreshold(tt.threshold),
				WithLockTimeout(10*time.Second),
				WithVariables(map[string]int64{"n": 0}))
			var g errgroup.Group
			for i := 0; i < 200; i++ {
				g.Go(func() error {
					_, err := e.Execute(context.Background(), tt.src)
					return err
				})
			}
			require.Nil(t, g.Wait())

			env, err := e.Environment(context.Background())
			require.Nil(t, err)
			require.Equal(t, int64(200), env["n"])
			res := execute(t, e, tt.src)
			require.Equal(t, int64(201), res.Value)
			require.Equal(t, tt.compiled, res.Compiled)
		})
	}
}

func TestCancelledCallRunsToCompletion(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			e := newEngine(t, WithHotThreshold(1), WithMode(mode))
			expr, err := parser.Parse(context.Background(), "1 + 2")
			require.Nil(t, err)

			res, err := e.ExecuteExpr(cancelled, expr)
			require.Nil(t, err)
			require.Equal(t, int64(3), res.Value)
			require.True(t, res.Compiled)

			for i := 0; i < 5; i++ {
				require.True(t, execute(t, e, "1 + 2").Compiled)
			}
			infos, err := e.CacheInfo(context.Background())
			require.Nil(t, err)
			require.Len(t, infos, 1)
			require.Equal(t, "compiled", infos[0].State)
			require.Equal(t, uint64(6), infos[0].Count)

			s := stats(t, e)
			require.Equal(t, uint64(6), s.TotalExecutions)
			require.Equal(t, uint64(1), s.TotalCompilations)
		})
	}

	t.Run("interpreted", func(t *testing.T) {
		e := newEngine(t, WithHotThreshold(10))
		expr, err := parser.Parse(context.Background(), "fib(5)")
		require.Nil(t, err)
		res, err := e.ExecuteExpr(cancelled, expr)
		require.Nil(t, err)
		require.Equal(t, int64(5), res.Value)

		infos, err := e.CacheInfo(context.Background())
		require.Nil(t, err)
		require.Equal(t, uint64(1), infos[0].Count)
		require.Equal(t, uint64(1), stats(t, e).TotalExecutions)
	})
}

func TestStatsSnapshot(t *testing.T) {
	e := newEngine(t, WithHotThreshold(100))
	execute(t, e, "1 + 1")
	execute(t, e, "2 + 2")
	execute(t, e, "1 + 1")
	s := stats(t, e)
	require.Equal(t, 2, s.CacheEntries)
	require.Equal(t, uint64(3), s.TotalExecutions)

	require.Nil(t, e.Reset(context.Background()))
	require.Equal(t, 0, stats(t, e).CacheEntries)
}

func TestArtifact(t *testing.T) {
	e := newEngine(t, WithHotThreshold(1))
	ctx := context.Background()
	res := execute(t, e, "1 + 2")
	art, err := e.Artifact(ctx, res.Fingerprint)
	require.Nil(t, err)
	require.NotEmpty(t, art.Code)

	res = execute(t, e, "fact(3)")
	_, err = e.Artifact(ctx, res.Fingerprint)
	require.ErrorIs(t, err, ErrNotCompiled)
	_, err = e.Artifact(ctx, 42)
	require.ErrorIs(t, err, ErrNotCompiled)
}

func TestResetAndClose(t *testing.T) {
	e := newEngine(t, WithHotThreshold(1), WithVariables(map[string]int64{"k": 3}))
	ctx := context.Background()
	require.Equal(t, int64(6), execute(t, e, "k * 2").Value)

	require.Nil(t, e.Reset(ctx))
	infos, err := e.CacheInfo(ctx)
	require.Nil(t, err)
	require.Empty(t, infos)
	require.Equal(t, hotspot.Stats{}, stats(t, e))
	env, err := e.Environment(ctx)
	require.Nil(t, err)
	require.Empty(t, env)

	require.Nil(t, e.Close())
	require.Nil(t, e.Close())
	_, err = e.Execute(ctx, "1")
	require.ErrorIs(t, err, ErrClosed)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	e := newEngine(t, WithHotThreshold(1), WithMaxEntries(1), WithLogger(zerolog.New(&buf)))
	execute(t, e, "1 + 2")
	execute(t, e, "fib(2)")
	out := buf.String()
	require.Contains(t, out, `"message":"compiled expression"`)
	require.Contains(t, out, `"message":"evicted cache entry"`)
}

func TestConfig(t *testing.T) {
	_, err := New(WithHotThreshold(0))
	require.ErrorContains(t, err, "hot threshold must be at least 1")
	_, err = New(WithMaxEntries(0))
	require.Error(t, err)
	_, err = New(WithLockTimeout(0))
	require.Error(t, err)

	e := newEngine(t, WithConfig(Config{HotThreshold: 3, MaxEntries: 7, LockTimeout: time.Second, Mode: ModeNative}))
	cfg := e.Config()
	require.Equal(t, uint64(3), cfg.HotThreshold)
	if !native.Supported {
		require.Equal(t, ModeSimulate, cfg.Mode)
	} else {
		require.Equal(t, ModeNative, cfg.Mode)
	}

	m, err := ParseMode("simulate")
	require.Nil(t, err)
	require.Equal(t, ModeSimulate, m)
	_, err = ParseMode("fast")
	require.Error(t, err)
	text, err := ModeNative.MarshalText()
	require.Nil(t, err)
	require.Equal(t, "native", string(text))
}
