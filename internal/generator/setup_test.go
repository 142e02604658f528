package generator

import (
	"context"
	"testing"

	"github.com/ashureev/goalmap/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromConfigNone(t *testing.T) {
	st, err := FromConfig(config.GeneratorConfig{Provider: config.ProviderNone, Breaker: config.BreakerConfig{Enabled: true}}, nil, nil)
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, "none", st.Name)
	assert.IsType(t, Disabled{}, st.Generator)
	assert.NoError(t, st.Health(context.Background()))

	_, err = st.GenerateTopLevel(context.Background(), "Learn Go")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestFromConfigOpenAIWrapsBreakerAndJournal(t *testing.T) {
	j, err := NewJournal(JournalConfig{Enabled: false}, nil)
	require.NoError(t, err)

	st, err := FromConfig(config.GeneratorConfig{
		Provider: config.ProviderOpenAI,
		APIKey:   "sk-test",
		Breaker:  config.BreakerConfig{Enabled: true, MinRequests: 3},
	}, j, nil)
	require.NoError(t, err)

	journaled, ok := st.Generator.(*Journaled)
	require.True(t, ok)
	assert.IsType(t, &Breaker{}, journaled.next)
}

func TestFromConfigErrors(t *testing.T) {
	_, err := FromConfig(config.GeneratorConfig{Provider: config.ProviderOpenAI}, nil, nil)
	assert.Error(t, err, "missing api key")

	_, err = FromConfig(config.GeneratorConfig{Provider: "carrier-pigeon"}, nil, nil)
	assert.ErrorContains(t, err, "unknown generator provider")
}
