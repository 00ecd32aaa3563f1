// internal/browser/session/context_utils_test.go
package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey string

func TestCombineContextCancelsOnSecondary(t *testing.T) {
	primary := context.Background()
	secondary, cancelSecondary := context.WithCancel(context.Background())

	combined, cancel := CombineContext(primary, secondary)
	defer cancel()

	require.NoError(t, combined.Err())
	cancelSecondary()

	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not observe secondary cancellation")
	}
}

func TestCombineContextCancelsOnPrimary(t *testing.T) {
	primary, cancelPrimary := context.WithCancel(context.Background())
	secondary := context.Background()

	combined, cancel := CombineContext(primary, secondary)
	defer cancel()

	cancelPrimary()

	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not observe primary cancellation")
	}
}

func TestCombineContextInheritsPrimaryValues(t *testing.T) {
	key := ctxKey("target")
	primary := context.WithValue(context.Background(), key, "tab-1")

	combined, cancel := CombineContext(primary, context.Background())
	defer cancel()

	assert.Equal(t, "tab-1", combined.Value(key))
}
