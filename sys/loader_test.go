package sys

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		content string
		name    string
		args    []string
		ok      bool
	}{
		{"$$add C https://youtu.be/x", "add", []string{"C", "https://youtu.be/x"}, true},
		{"  $$stop  ", "stop", []string{}, true},
		{"$$", "", nil, false},
		{"add C x", "", nil, false},
		{"$ add", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			name, args, ok := ParseCommand("$$", tt.content)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			if tt.ok {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestLoader_TextCommandAliases(t *testing.T) {
	l := NewLoader(context.Background(), "$$", nil, nil)
	cmd := &TextCommand{Name: "remove", Aliases: []string{"r", "rem"}}
	l.RegisterTextCommand(cmd)

	for _, name := range []string{"remove", "r", "rem"} {
		got, ok := l.TextCommand(name)
		require.True(t, ok, name)
		assert.Same(t, cmd, got)
	}
	_, ok := l.TextCommand("Remove")
	assert.False(t, ok, "command names are case-sensitive")
}

func TestLoader_AwaitReaction(t *testing.T) {
	l := NewLoader(context.Background(), "$$", nil, nil)
	msg, user := snowflake.ID(10), snowflake.ID(20)

	done := make(chan string, 1)
	go func() {
		emoji, err := l.AwaitReaction(context.Background(), msg, user, time.Second)
		if err == nil {
			done <- emoji
		}
		close(done)
	}()

	require.Eventually(t, func() bool {
		l.waitersMu.Lock()
		defer l.waitersMu.Unlock()
		_, ok := l.waiters[msg]
		return ok
	}, time.Second, 5*time.Millisecond)

	assert.False(t, l.deliverReaction(msg, snowflake.ID(99), "▶️"), "other users are ignored")
	assert.True(t, l.deliverReaction(msg, user, "▶️"))
	assert.Equal(t, "▶️", <-done)

	l.waitersMu.Lock()
	assert.Empty(t, l.waiters)
	l.waitersMu.Unlock()
}

func TestLoader_AwaitReactionTimeout(t *testing.T) {
	l := NewLoader(context.Background(), "$$", nil, nil)
	_, err := l.AwaitReaction(context.Background(), 1, 2, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrReactionTimeout)
}

func TestLoader_Daemons(t *testing.T) {
	l := NewLoader(context.Background(), "$$", nil, nil)

	var ran, stopped atomic.Int32
	l.RegisterDaemon(func(string, ...any) {}, func(ctx context.Context) (bool, func(), func()) {
		return true, func() { ran.Add(1) }, func() { stopped.Add(1) }
	})
	l.RegisterDaemon(func(string, ...any) {}, func(ctx context.Context) (bool, func(), func()) {
		return false, nil, nil
	})

	l.StartDaemons(context.Background())
	l.StartDaemons(context.Background())

	require.Eventually(t, func() bool { return ran.Load() == 1 }, time.Second, 5*time.Millisecond)
	l.ShutdownDaemons()
	assert.Equal(t, int32(1), stopped.Load())
}
