package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

func TestPublicIDRoundTrip(t *testing.T) {
	require.NoError(t, Setup("filehub-test-seed"))

	for _, id := range []uint{1, 42, 987654} {
		publicID, err := GeneratePublicID(id, EntityTypeDistributionRecord)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(publicID), minPublicIDLength)

		decoded, err := DecodeEntityID(publicID, EntityTypeDistributionRecord)
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}
}

func TestDecodeRejectsWrongTypeAndGarbage(t *testing.T) {
	c, err := NewCodec("")
	require.NoError(t, err)

	publicID, err := c.Encode(7, 99)
	require.NoError(t, err)
	_, err = c.Decode(publicID, EntityTypeDistributionRecord)
	assert.ErrorIs(t, err, constant.ErrInvalidPublicID)

	_, err = c.Decode("!!", EntityTypeDistributionRecord)
	assert.ErrorIs(t, err, constant.ErrInvalidPublicID)
}

func TestSeedDerivesStableAlphabet(t *testing.T) {
	assert.Equal(t, DefaultAlphabet, alphabetFor(""))
	assert.Equal(t, alphabetFor("abc"), alphabetFor("abc"))
	assert.NotEqual(t, DefaultAlphabet, alphabetFor("abc"))
	assert.NotEqual(t, alphabetFor("abc"), alphabetFor("abd"))
	assert.ElementsMatch(t, []rune(DefaultAlphabet), []rune(alphabetFor("abc")))
}

func TestCodecsWithDifferentSeedsDisagree(t *testing.T) {
	a, err := NewCodec("seed-a")
	require.NoError(t, err)
	b, err := NewCodec("seed-b")
	require.NoError(t, err)

	idA, err := a.Encode(5, EntityTypeDistributionRecord)
	require.NoError(t, err)
	idB, err := b.Encode(5, EntityTypeDistributionRecord)
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)
}
