// internal/agent/tools/catalog_test.go
package tools

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
)

func TestResolveVersion(t *testing.T) {
	v, err := ResolveVersion(Version20250124)
	require.NoError(t, err)
	assert.Equal(t, "computer_20250124", v.APIType)
	assert.Equal(t, "computer-use-2025-01-24", v.BetaFlag)

	v, err = ResolveVersion(Version20241022)
	require.NoError(t, err)
	assert.Equal(t, "computer_20241022", v.APIType)
	assert.Equal(t, "computer-use-2024-10-22", v.BetaFlag)
}

func TestResolveVersionUnknown(t *testing.T) {
	_, err := ResolveVersion("computer_use_19990101")
	require.Error(t, err)

	var unknownErr *schemas.UnknownToolVersionError
	require.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, "computer_use_19990101", unknownErr.Version)
}

func TestVersionGating(t *testing.T) {
	base, err := ResolveVersion(Version20241022)
	require.NoError(t, err)
	extended, err := ResolveVersion(Version20250124)
	require.NoError(t, err)

	// Shared surface.
	for _, kind := range []schemas.ActionKind{
		schemas.ActionKey, schemas.ActionType, schemas.ActionLeftClick,
		schemas.ActionScreenshot, schemas.ActionCursorPosition,
	} {
		assert.True(t, base.Supports(kind), "base should support %s", kind)
		assert.True(t, extended.Supports(kind), "extended should support %s", kind)
	}

	// Extended-only surface.
	for _, kind := range []schemas.ActionKind{
		schemas.ActionScroll, schemas.ActionHoldKey, schemas.ActionWait,
		schemas.ActionTripleClick, schemas.ActionLeftMouseDown, schemas.ActionLeftMouseUp,
	} {
		assert.False(t, base.Supports(kind), "base should reject %s", kind)
		assert.True(t, extended.Supports(kind), "extended should support %s", kind)
	}
}

func TestVersionSchemas(t *testing.T) {
	v, err := ResolveVersion(Version20250124)
	require.NoError(t, err)

	defs := v.Schemas(1024, 768)
	require.Len(t, defs, 2)

	assert.Equal(t, ComputerToolName, defs[0].Name)
	assert.Equal(t, "computer_20250124", defs[0].Type)
	assert.Equal(t, 1024, defs[0].DisplayWidthPx)
	assert.Equal(t, 768, defs[0].DisplayHeightPx)

	assert.Equal(t, NavigateToolName, defs[1].Name)
	assert.Empty(t, defs[1].Type)
	require.NotNil(t, defs[1].InputSchema)
	assert.Contains(t, defs[1].InputSchema, "properties")
}
