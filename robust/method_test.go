package robust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodStringParseRoundTrip(t *testing.T) {
	t.Parallel()

	methods := []Method{MethodRANSAC, MethodLMedS, MethodMSAC, MethodPROSAC, MethodPROMedS}
	for _, m := range methods {
		got, err := ParseMethod(m.String())
		require.NoError(t, err, m.String())
		assert.Equal(t, m, got)
	}
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	t.Run("empty selects the default", func(t *testing.T) {
		t.Parallel()
		got, err := ParseMethod("")
		require.NoError(t, err)
		assert.Equal(t, DefaultMethod, got)
	})

	t.Run("unknown name fails", func(t *testing.T) {
		t.Parallel()
		_, err := ParseMethod("ransack")
		assert.ErrorContains(t, err, "unknown robust method")
	})
}

func TestMethodTraits(t *testing.T) {
	t.Parallel()

	assert.True(t, MethodRANSAC.usesThreshold())
	assert.True(t, MethodMSAC.usesThreshold())
	assert.True(t, MethodPROSAC.usesThreshold())
	assert.False(t, MethodLMedS.usesThreshold())
	assert.False(t, MethodPROMedS.usesThreshold())

	assert.True(t, MethodPROSAC.usesQualityScores())
	assert.True(t, MethodPROMedS.usesQualityScores())
	assert.False(t, MethodRANSAC.usesQualityScores())
	assert.False(t, MethodLMedS.usesQualityScores())
	assert.False(t, MethodMSAC.usesQualityScores())
}
