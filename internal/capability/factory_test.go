package capability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linguameet/pkg/config"
)

func TestChain(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.CapabilityConfig
		want []string
	}{
		{"default", config.CapabilityConfig{}, []string{"local", "stub"}},
		{"google cloud", config.CapabilityConfig{UseGoogleCloud: true}, []string{"cloud", "local", "stub"}},
		{"free premium wins", config.CapabilityConfig{UseFreePremium: true, UseGoogleCloud: true}, []string{"premium", "local", "stub"}},
		{"explicit", config.CapabilityConfig{Chain: []string{"cloud", "stub", "cloud"}, UseFreePremium: true}, []string{"cloud", "stub"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chain(tt.cfg))
		})
	}
}

func TestSelectFirstAvailable(t *testing.T) {
	var tried []string
	constructors := map[string]Constructor{
		"a": func() (*Backend, error) { tried = append(tried, "a"); return nil, ErrUnavailable },
		"b": func() (*Backend, error) { tried = append(tried, "b"); return NewBackend("b"), nil },
		"c": func() (*Backend, error) { tried = append(tried, "c"); return NewBackend("c"), nil },
	}

	backend, err := Select([]string{"a", "missing", "b", "c"}, constructors)
	require.NoError(t, err)
	assert.Equal(t, "b", backend.Name())
	assert.Equal(t, []string{"a", "b"}, tried)
}

func TestSelectNoneAvailable(t *testing.T) {
	constructors := map[string]Constructor{
		"a": func() (*Backend, error) { return nil, ErrUnavailable },
	}

	_, err := Select([]string{"a"}, constructors)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestNewFallsBackToStub(t *testing.T) {
	// 沒有金鑰與模型時，任何鏈最後都會落到 stub
	c, err := New(config.CapabilityConfig{UseFreePremium: true, VoskModelPath: "/nonexistent"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", c.Name())
}
