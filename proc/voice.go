package proc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/soundtrack/sys"
)

type streamHandle struct {
	cancel context.CancelFunc
	stream Stream
}

// VoiceSink streams tracks into one guild voice channel.
type VoiceSink struct {
	client *bot.Client
	source Source

	mu        sync.Mutex
	conn      voice.Conn
	guildID   snowflake.ID
	channelID snowflake.ID
	connected atomic.Bool

	current atomic.Pointer[streamHandle]
	volume  atomic.Int32
}

func NewVoiceSink(client *bot.Client, source Source, volume int) *VoiceSink {
	s := &VoiceSink{client: client, source: source}
	s.volume.Store(int32(min(max(volume, 0), MaxVolume)))
	return s
}

// Connect joins channelID, retrying with backoff. Joining the channel the
// sink is already in is a no-op.
func (s *VoiceSink) Connect(ctx context.Context, guildID, channelID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected.Load() && s.guildID == guildID && s.channelID == channelID {
		return nil
	}

	if s.conn == nil || s.guildID != guildID {
		if s.conn != nil {
			s.conn.Close(ctx)
		}
		conn := s.client.VoiceManager.GetConn(guildID)
		if conn == nil {
			conn = s.client.VoiceManager.CreateConn(guildID)
		}
		s.conn = conn
	}
	s.guildID = guildID

	sys.LogVoice(sys.MsgVoiceJoining, channelID, guildID)

	var lastErr error
	for i := range 5 {
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * time.Second
			sys.LogVoice(sys.MsgVoiceJoinRetry, i, lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := s.conn.Open(ctx, channelID, false, false); err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		s.conn.Close(ctx)
		s.conn = nil
		s.connected.Store(false)
		return errors.Wrap(lastErr, "join voice channel")
	}

	s.channelID = channelID
	s.connected.Store(true)
	return nil
}

func (s *VoiceSink) Connected() bool {
	return s.connected.Load()
}

func (s *VoiceSink) IsPlaying() bool {
	return s.current.Load() != nil
}

func (s *VoiceSink) SetVolume(percent int) error {
	if !s.connected.Load() {
		return ErrNotConnected
	}
	if percent < 0 || percent > MaxVolume {
		return errors.Wrapf(ErrVolumeOutOfRange, "volume %d", percent)
	}
	s.volume.Store(int32(percent))
	return nil
}

// Volume returns the gain in percent.
func (s *VoiceSink) Volume() int {
	return int(s.volume.Load())
}

func (s *VoiceSink) Play(ctx context.Context, st Stream, onComplete func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected.Load() || s.conn == nil {
		return ErrNotConnected
	}

	streamCtx, cancel := context.WithCancel(ctx)
	h := &streamHandle{cancel: cancel, stream: st}
	if old := s.current.Swap(h); old != nil {
		old.cancel()
	}

	conn := s.conn
	sys.SafeGo(func() {
		err := s.run(streamCtx, conn, h)
		cancel()
		if onComplete != nil {
			onComplete(err)
		}
	})
	return nil
}

// Stop halts the current stream, if any.
func (s *VoiceSink) Stop() {
	if h := s.current.Swap(nil); h != nil {
		h.cancel()
	}
}

func (s *VoiceSink) Disconnect(ctx context.Context) error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close(ctx)
		s.conn = nil
	}
	if s.connected.Swap(false) {
		sys.LogVoice(sys.MsgVoiceLeft, s.guildID)
	}
	return nil
}

// MarkDisconnected records that Discord dropped the bot from voice.
func (s *VoiceSink) MarkDisconnected() {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected.Swap(false) {
		sys.LogVoice(sys.MsgVoiceDisconnected, s.guildID)
	}
	s.conn = nil
}

// run plays h.stream, once or until canceled when it loops. It returns nil
// when a non-looping stream reaches its end.
func (s *VoiceSink) run(ctx context.Context, conn voice.Conn, h *streamHandle) error {
	defer func() {
		s.mu.Lock()
		if cur := s.current.Load(); cur == nil || cur == h {
			setOpusFrameProviderSafe(conn, nil)
			setSpeakingSafe(ctx, conn, 0)
		}
		s.mu.Unlock()
		s.current.CompareAndSwap(h, nil)
	}()

	for {
		err := s.playOnce(ctx, conn, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			sys.LogVoice(sys.MsgVoiceStreamFail, h.stream.URL, err)
			return err
		}
		if !h.stream.Loop {
			return nil
		}
	}
}

func (s *VoiceSink) playOnce(ctx context.Context, conn voice.Conn, h *streamHandle) error {
	in, err := s.source.Open(ctx, h.stream.URL)
	if err != nil {
		return err
	}
	if in.Reader != nil {
		defer in.Reader.Close()
	}

	p := NewStreamProvider(ctx)
	done := make(chan struct{})
	p.OnFinish = func() { close(done) }

	result := make(chan error, 1)
	go func() {
		defer p.PushFrame(nil)
		t := NewAstiavTranscoder(&s.volume)
		defer t.Close()

		if err := t.OpenInput(in.URL, in.Reader); err != nil {
			result <- err
			return
		}
		if err := t.SetupDecoder(); err != nil {
			result <- err
			return
		}
		if err := t.SetupEncoder(); err != nil {
			result <- err
			return
		}
		result <- t.Transcode(ctx, p.PushFrame)
	}()

	s.mu.Lock()
	if s.current.Load() == h {
		setOpusFrameProviderSafe(conn, p)
		setSpeakingSafe(ctx, conn, voice.SpeakingFlagMicrophone)
	}
	s.mu.Unlock()

	select {
	case err := <-result:
		if err != nil {
			return err
		}
		// Transcoding is done; let the queued frames play out.
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func setOpusFrameProviderSafe(conn voice.Conn, provider voice.OpusFrameProvider) {
	defer func() {
		if r := recover(); r != nil {
			sys.LogVoice(sys.MsgVoicePanic, r)
		}
	}()
	conn.SetOpusFrameProvider(provider)
}

func setSpeakingSafe(ctx context.Context, conn voice.Conn, flags voice.SpeakingFlags) {
	defer func() {
		if r := recover(); r != nil {
			sys.LogVoice(sys.MsgVoicePanic, r)
		}
	}()
	conn.SetSpeaking(context.WithoutCancel(ctx), flags)
}
