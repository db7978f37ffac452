package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhaseCanonicalNames(t *testing.T) {
	for i, name := range phaseNames {
		p, err := ParsePhase(name)
		require.NoError(t, err)
		assert.Equal(t, Phase(i), p)
		assert.Equal(t, name, p.String())
	}
}

func TestParsePhaseLegacyAliases(t *testing.T) {
	cases := map[string]Phase{
		"demos":     PhaseInbox,
		"new":       PhaseInbox,
		"second":    PhaseSecondListen,
		"listen":    PhaseSecondListen,
		"review":    PhaseTeamReview,
		"team":      PhaseTeamReview,
		"contract":  PhaseContracting,
		"scheduled": PhaseUpcoming,
		"released":  PhaseVault,
	}
	for alias, want := range cases {
		p, err := ParsePhase(alias)
		require.NoError(t, err, alias)
		assert.Equal(t, want, p, alias)
	}
}

func TestParsePhaseUnknown(t *testing.T) {
	_, err := ParsePhase("limbo")
	require.Error(t, err)
}

func TestPhaseNextPrevBounds(t *testing.T) {
	next, ok := PhaseInbox.Next()
	require.True(t, ok)
	assert.Equal(t, PhaseSecondListen, next)

	_, ok = PhaseVault.Next()
	assert.False(t, ok)

	prev, ok := PhaseVault.Prev()
	require.True(t, ok)
	assert.Equal(t, PhaseUpcoming, prev)

	_, ok = PhaseInbox.Prev()
	assert.False(t, ok)
}

func TestPhaseTerminal(t *testing.T) {
	assert.True(t, PhaseVault.Terminal())
	for p := PhaseInbox; p < PhaseVault; p++ {
		assert.False(t, p.Terminal(), p.String())
	}
}
