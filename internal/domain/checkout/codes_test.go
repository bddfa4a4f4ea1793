package checkout

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^APP-\d{3}-\d{3}$`)

func TestCodeFactory_Format(t *testing.T) {
	f := NewCodeFactory()

	code := f.Generate()
	assert.Regexp(t, codePattern, code)
	assert.True(t, f.Used(code))
}

func TestCodeFactory_UniqueWithinSession(t *testing.T) {
	f := NewCodeFactory()

	seen := make(map[string]struct{})
	for range 500 {
		code := f.Generate()
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %s", code)
		seen[code] = struct{}{}
	}
}

func TestCodeFactory_IndependentInstances(t *testing.T) {
	a := NewCodeFactory()
	b := NewCodeFactory()

	code := a.Generate()
	assert.True(t, a.Used(code))
	assert.False(t, b.Used(code))
}

func TestCodeFactory_ClockFallbackOnExhaustedRandom(t *testing.T) {
	f := NewCodeFactory()
	f.randInt = func(int) int { return 42 }
	f.now = func() time.Time { return time.Unix(0, 123456789) }

	first := f.Generate()
	assert.Equal(t, "APP-042-042", first)

	// Every random attempt now collides, so the second call must take the
	// clock-derived path and still terminate with a fresh code.
	second := f.Generate()
	assert.Regexp(t, codePattern, second)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "APP-456-789", second)
	assert.True(t, f.Used(second))
}

func TestCodeFactory_ClockFallbackSkipsUsedCodes(t *testing.T) {
	f := NewCodeFactory()
	f.randInt = func(int) int { return 42 }
	// Unix(0, 42042) derives exactly "APP-042-042", which the first call
	// already handed out through the random path.
	f.now = func() time.Time { return time.Unix(0, 42042) }

	first := f.Generate()
	require.Equal(t, "APP-042-042", first)

	second := f.Generate()
	assert.Equal(t, "APP-042-043", second)
	assert.NotEqual(t, first, second)
	assert.True(t, f.Used(second))
}
