// Package proc runs the soundtrack bot's background work: the shuffle
// player, the voice sink that streams into Discord, track resolution and the
// metadata warmup daemon.
package proc

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
)

var (
	ErrNotConnected = errors.New("not connected to a voice channel")
	ErrNotPlaying   = errors.New("nothing is playing")

	ErrVolumeOutOfRange = errors.New("volume out of range")
)

// Stream is one play request for the sink. Loop replays the track until the
// sink is stopped.
type Stream struct {
	URL   string
	Title string
	Loop  bool
}

// Sink is the audio output the player drives.
// MaxVolume is the loudest gain in percent a sink accepts.
const MaxVolume = 1000

type Sink interface {
	Connect(ctx context.Context, guildID, channelID snowflake.ID) error
	// Play replaces whatever is playing. onComplete is called exactly once:
	// nil when the stream ended by itself, the cause otherwise.
	Play(ctx context.Context, s Stream, onComplete func(error)) error
	Stop()
	IsPlaying() bool
	SetVolume(percent int) error
	Connected() bool
	Disconnect(ctx context.Context) error
}

// Input is an opened audio source: either a URL the transcoder can open
// itself or a reader with the raw container bytes.
type Input struct {
	URL    string
	Reader io.ReadCloser
}

// Source opens the audio behind a track page URL.
type Source interface {
	Open(ctx context.Context, pageURL string) (Input, error)
}
