package airecog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/mediascout/mediascout/pkg/airecog/mocks"
	"github.com/mediascout/mediascout/pkg/match"
)

type fakeMem struct {
	used float64
	err  error
}

func (f fakeMem) UsedPercent() (float64, error) {
	return f.used, f.err
}

func testConfig() Config {
	return Config{
		Enabled:      true,
		URL:          "http://localhost:9999/v1",
		APIKey:       "test-key",
		Model:        "test-model",
		MaxBatchSize: 50,
	}
}

func testOpts() []BatcherOption {
	return []BatcherOption{
		WithMemStater(fakeMem{used: 20}),
		WithSleep(func(time.Duration) {}),
	}
}

// recognizeClient adapts a func to the Client interface for tests that only
// care about the response text.
type recognizeClient func(ctx context.Context, systemPrompt string, lines []string) (string, error)

func (f recognizeClient) Recognize(ctx context.Context, systemPrompt string, lines []string) (string, error) {
	return f(ctx, systemPrompt, lines)
}

func TestPending_StableID(t *testing.T) {
	p := Pending{ShowID: 7, ShowTitle: "Foo", RelPath: "Season 01/Foo.S01E01.mkv"}

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, p.StableID(), p.StableID())
	})

	t.Run("independent of batch fields", func(t *testing.T) {
		q := p
		q.ShowTitle = "Renamed"
		q.VideoPath = "/mnt/other"
		assert.Equal(t, p.StableID(), q.StableID())
	})

	t.Run("distinct per file", func(t *testing.T) {
		q := p
		q.RelPath = "Season 01/Foo.S01E02.mkv"
		assert.NotEqual(t, p.StableID(), q.StableID())
	})
}

func TestConfig_Fingerprint(t *testing.T) {
	cfg := testConfig()
	other := cfg
	other.APIKey = "rotated-key"

	assert.Equal(t, cfg.Fingerprint(), cfg.Fingerprint())
	assert.NotEqual(t, cfg.Fingerprint(), other.Fingerprint())

	// batching knobs don't invalidate the endpoint identity
	resized := cfg
	resized.MaxBatchSize = 10
	assert.Equal(t, cfg.Fingerprint(), resized.Fingerprint())
}

func TestBatcher_Flush(t *testing.T) {
	ctx := context.Background()
	pending := []Pending{
		{ShowID: 1, ShowTitle: "Foo", RelPath: "a.mkv"},
		{ShowID: 1, ShowTitle: "Foo", RelPath: "b.mkv"},
		{ShowID: 1, ShowTitle: "Foo", RelPath: "c.mkv"},
	}

	t.Run("disabled returns nothing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := mocks.NewMockClient(ctrl)

		cfg := testConfig()
		cfg.Enabled = false
		b := NewBatcher(client, cfg, testOpts()...)

		assert.Nil(t, b.Flush(ctx, pending))
	})

	t.Run("parses positional response", func(t *testing.T) {
		b := NewBatcher(recognizeClient(func(_ context.Context, _ string, lines []string) (string, error) {
			require.Len(t, lines, 3)
			return "S01E01 - Pilot\nS01E02 - The Second One\nS02E05\n", nil
		}), testConfig(), testOpts()...)

		results := b.Flush(ctx, pending)
		require.Len(t, results, 3)

		r := results[pending[0].StableID()]
		assert.Equal(t, 1, r.Season)
		assert.Equal(t, []int{1}, r.Episodes)
		assert.Equal(t, "Pilot", r.Title)
		assert.Equal(t, match.ConfidenceAI, r.Confidence)

		assert.Equal(t, "The Second One", results[pending[1].StableID()].Title)

		r = results[pending[2].StableID()]
		assert.Equal(t, 2, r.Season)
		assert.Equal(t, []int{5}, r.Episodes)
		assert.Empty(t, r.Title)
	})

	t.Run("shortfall leaves trailing items unresolved", func(t *testing.T) {
		b := NewBatcher(recognizeClient(func(_ context.Context, _ string, _ []string) (string, error) {
			return "S01E01 - Pilot", nil
		}), testConfig(), testOpts()...)

		results := b.Flush(ctx, pending)
		require.Len(t, results, 1)
		_, ok := results[pending[2].StableID()]
		assert.False(t, ok)
	})

	t.Run("unknown lines are skipped not fatal", func(t *testing.T) {
		b := NewBatcher(recognizeClient(func(_ context.Context, _ string, _ []string) (string, error) {
			return "S01E01 - Pilot\nUNKNOWN\nS01E03 - Third", nil
		}), testConfig(), testOpts()...)

		results := b.Flush(ctx, pending)
		require.Len(t, results, 2)
		_, ok := results[pending[1].StableID()]
		assert.False(t, ok)
	})

	t.Run("permanent error abandons remaining queue", func(t *testing.T) {
		calls := 0
		cfg := testConfig()
		cfg.MaxBatchSize = 1

		b := NewBatcher(recognizeClient(func(_ context.Context, _ string, _ []string) (string, error) {
			calls++
			return "", ErrPermanent
		}), cfg, testOpts()...)

		results := b.Flush(ctx, pending)
		assert.Empty(t, results)
		assert.Equal(t, 1, calls)
	})

	t.Run("transient batch failure skips only that batch", func(t *testing.T) {
		calls := 0
		cfg := testConfig()
		cfg.MaxBatchSize = 1

		b := NewBatcher(recognizeClient(func(_ context.Context, _ string, _ []string) (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("timeout")
			}
			return "S01E02 - ok", nil
		}), cfg, testOpts()...)

		results := b.Flush(ctx, pending)
		assert.Equal(t, 3, calls)
		assert.Len(t, results, 2)
		_, ok := results[pending[0].StableID()]
		assert.False(t, ok)
	})

	t.Run("rate limit denial drops batches", func(t *testing.T) {
		calls := 0
		cfg := testConfig()
		cfg.MaxBatchSize = 1
		cfg.CallsPerMinute = 1

		b := NewBatcher(recognizeClient(func(_ context.Context, _ string, _ []string) (string, error) {
			calls++
			return "S01E01 - only", nil
		}), cfg, testOpts()...)

		results := b.Flush(ctx, pending)
		assert.Equal(t, 1, calls)
		assert.Len(t, results, 1)
	})

	t.Run("minute denial leaves the hour budget alone", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxBatchSize = 1
		cfg.CallsPerMinute = 1
		cfg.CallsPerHour = 5

		b := NewBatcher(recognizeClient(func(_ context.Context, _ string, _ []string) (string, error) {
			return "S01E01 - only", nil
		}), cfg, testOpts()...)

		b.Flush(ctx, pending)

		// one call went through; the two denied batches must not have
		// drawn down the hourly allowance
		assert.Greater(t, b.hour.Tokens(), 3.5)
	})

	t.Run("overlapping flush is skipped", func(t *testing.T) {
		calls := 0
		b := NewBatcher(recognizeClient(func(_ context.Context, _ string, _ []string) (string, error) {
			calls++
			return "S01E01 - Pilot", nil
		}), testConfig(), testOpts()...)

		b.flight.Lock()
		assert.Nil(t, b.Flush(ctx, pending))
		assert.Zero(t, calls)
		b.flight.Unlock()

		assert.Len(t, b.Flush(ctx, pending[:1]), 1)
	})

	t.Run("memory pressure shrinks batches", func(t *testing.T) {
		var sizes []int
		cfg := testConfig()
		cfg.MaxBatchSize = 50

		many := make([]Pending, 12)
		for i := range many {
			many[i] = Pending{ShowID: 1, RelPath: string(rune('a'+i)) + ".mkv"}
		}

		b := NewBatcher(recognizeClient(func(_ context.Context, _ string, lines []string) (string, error) {
			sizes = append(sizes, len(lines))
			return "", errors.New("unimportant")
		}), cfg, WithMemStater(fakeMem{used: 90}), WithSleep(func(time.Duration) {}))

		b.Flush(ctx, many)
		assert.Equal(t, []int{10, 2}, sizes)
	})
}

func TestBatcher_Cache(t *testing.T) {
	ctx := context.Background()
	pending := []Pending{{ShowID: 1, ShowTitle: "Foo", RelPath: "a.mkv"}}

	t.Run("repeat flush served from cache", func(t *testing.T) {
		calls := 0
		b := NewBatcher(recognizeClient(func(_ context.Context, _ string, _ []string) (string, error) {
			calls++
			return "S01E01 - Pilot", nil
		}), testConfig(), testOpts()...)

		first := b.Flush(ctx, pending)
		second := b.Flush(ctx, pending)

		assert.Equal(t, 1, calls)
		assert.Equal(t, first, second)
	})

	t.Run("endpoint change invalidates cache", func(t *testing.T) {
		calls := 0
		client := recognizeClient(func(_ context.Context, _ string, _ []string) (string, error) {
			calls++
			return "S01E01 - Pilot", nil
		})

		b := NewBatcher(client, testConfig(), testOpts()...)
		b.Flush(ctx, pending)

		rotated := testConfig()
		rotated.APIKey = "rotated-key"
		b.Configure(client, rotated)

		b.Flush(ctx, pending)
		assert.Equal(t, 2, calls)
	})

	t.Run("same config keeps cache", func(t *testing.T) {
		calls := 0
		client := recognizeClient(func(_ context.Context, _ string, _ []string) (string, error) {
			calls++
			return "S01E01 - Pilot", nil
		})

		b := NewBatcher(client, testConfig(), testOpts()...)
		b.Flush(ctx, pending)
		b.Configure(client, testConfig())
		b.Flush(ctx, pending)

		assert.Equal(t, 1, calls)
	})
}

func TestBatcher_IndividualFallback(t *testing.T) {
	ctx := context.Background()
	pending := []Pending{
		{ShowID: 1, ShowTitle: "Foo", RelPath: "a.mkv"},
		{ShowID: 1, ShowTitle: "Foo", RelPath: "b.mkv"},
	}

	t.Run("retries missing items one by one", func(t *testing.T) {
		var sizes []int
		cfg := testConfig()
		cfg.IndividualFallback = true

		b := NewBatcher(recognizeClient(func(_ context.Context, _ string, lines []string) (string, error) {
			sizes = append(sizes, len(lines))
			if len(lines) > 1 {
				// batch response drops the second item
				return "S01E01 - Pilot", nil
			}
			return "S01E02 - Recovered", nil
		}), cfg, testOpts()...)

		results := b.Flush(ctx, pending)
		assert.Equal(t, []int{2, 1}, sizes)
		require.Len(t, results, 2)
		assert.Equal(t, "Recovered", results[pending[1].StableID()].Title)
	})

	t.Run("disabled by default", func(t *testing.T) {
		calls := 0
		b := NewBatcher(recognizeClient(func(_ context.Context, _ string, _ []string) (string, error) {
			calls++
			return "S01E01 - Pilot", nil
		}), testConfig(), testOpts()...)

		results := b.Flush(ctx, pending)
		assert.Equal(t, 1, calls)
		assert.Len(t, results, 1)
	})
}
