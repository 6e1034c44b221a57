package trainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorizerFitFreezesVocabulary(t *testing.T) {
	v := NewVectorizer()
	v.Fit([]string{"ABC123", "DEF456"}, []string{"EPWA", "EGLL"})
	require.True(t, v.Fitted())

	dim := v.Dim()

	// A second fit must not extend the frozen vocabulary
	v.Fit([]string{"ZZZ999"}, []string{"EHAM"})
	assert.Equal(t, dim, v.Dim())
}

func TestVectorizerUnknownTokensDegradeGracefully(t *testing.T) {
	v := NewVectorizer()
	v.Fit([]string{"ABC123"}, []string{"EPWA"})

	// Never-seen callsign and origin: sparse empty vector, no error
	features := v.Transform("ZZZ999", "EHAM")
	assert.Empty(t, features)
}

func TestVectorizerKnownSampleProducesFeatures(t *testing.T) {
	v := NewVectorizer()
	v.Fit([]string{"ABC123", "DEF456"}, []string{"EPWA", "EGLL"})

	features := v.Transform("ABC123", "EPWA")
	assert.NotEmpty(t, features)

	// Same input always vectorizes identically
	assert.Equal(t, features, v.Transform("ABC123", "EPWA"))

	// Different origins flip different one-hot positions
	other := v.Transform("ABC123", "EGLL")
	assert.NotEqual(t, features, other)
}

func TestVectorizerEmptyOriginHasNoCategoryFeature(t *testing.T) {
	v := NewVectorizer()
	v.Fit([]string{"ABC123"}, []string{"EPWA"})

	withOrigin := v.Transform("ABC123", "EPWA")
	withoutOrigin := v.Transform("ABC123", "")
	assert.Equal(t, len(withOrigin)-1, len(withoutOrigin))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"abc123"}, tokenize("ABC123"))
	assert.Equal(t, []string{"lot", "3pm"}, tokenize("LOT-3PM"))
	assert.Empty(t, tokenize("A"))
	assert.Empty(t, tokenize(""))
}
