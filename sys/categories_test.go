package sys

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBotConfig_Defaults(t *testing.T) {
	cfg, err := LoadBotConfig("")
	require.NoError(t, err)

	assert.Len(t, cfg.Categories, 10)
	assert.Equal(t, 10, cfg.List.PageSize)
	assert.Equal(t, 60*time.Second, cfg.List.Timeout)
	assert.Equal(t, "🔷", cfg.List.HomeEmoji)
	assert.Equal(t, 500*time.Millisecond, cfg.Playback.PollInterval)
	assert.Equal(t, 4, cfg.Warmup.Workers)

	cats, err := cfg.CategorySet()
	require.NoError(t, err)
	c, ok := cats.Lookup("c")
	require.True(t, ok)
	assert.Equal(t, "Combate", c.Name)
}

func TestParseBotConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "minimal file gets defaults",
			yaml: "categories:\n  - {letter: X, name: Extra, emoji: \"⭐\"}\n",
		},
		{name: "no categories", yaml: "list:\n  page_size: 5\n", wantErr: true},
		{
			name:    "multi letter key",
			yaml:    "categories:\n  - {letter: XY, name: Extra, emoji: \"⭐\"}\n",
			wantErr: true,
		},
		{
			name:    "missing emoji",
			yaml:    "categories:\n  - {letter: X, name: Extra}\n",
			wantErr: true,
		},
		{name: "not yaml", yaml: "categories: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseBotConfig([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 10, cfg.List.PageSize)
			assert.Equal(t, 50, cfg.Playback.DefaultVolume)
		})
	}
}

func TestBotConfig_CategorySet_DuplicateLetters(t *testing.T) {
	cfg, err := ParseBotConfig([]byte("categories:\n  - {letter: x, name: One, emoji: \"1️⃣\"}\n  - {letter: X, name: Two, emoji: \"2️⃣\"}\n"))
	require.NoError(t, err)

	_, err = cfg.CategorySet()
	assert.Error(t, err)
}
