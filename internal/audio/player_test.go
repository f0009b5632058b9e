package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV writes a short silent WAV file and returns its path.
func writeWAV(t *testing.T, name string, rate beep.SampleRate, samples int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	format := beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(samples), format))
	return path
}

// fakeSpeaker replaces the speaker hooks of p and records played streamers.
type fakeSpeaker struct {
	rate    beep.SampleRate
	played  []beep.Streamer
	cleared int
}

func installFakeSpeaker(p *Player) *fakeSpeaker {
	fs := &fakeSpeaker{}
	p.initSpeaker = func(rate beep.SampleRate, _ int) error {
		fs.rate = rate
		return nil
	}
	p.play = func(s beep.Streamer) { fs.played = append(fs.played, s) }
	p.clear = func() { fs.cleared++ }
	return fs
}

func drain(s beep.Streamer) {
	buf := make([][2]float64, 512)
	for {
		if _, ok := s.Stream(buf); !ok {
			return
		}
	}
}

func TestPlayer_PlayAndFinish(t *testing.T) {
	p := NewPlayer(nil)
	fs := installFakeSpeaker(p)
	path := writeWAV(t, "happy.wav", 8000, 800)

	require.NoError(t, p.Play(path))
	assert.Equal(t, beep.SampleRate(8000), fs.rate)
	require.Len(t, fs.played, 1)
	assert.Equal(t, path, p.Current())

	done := p.Done()
	select {
	case <-done:
		t.Fatal("track finished before streaming")
	default:
	}

	drain(fs.played[0])
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("done not closed after track ended")
	}
	assert.Empty(t, p.Current())
}

func TestPlayer_PlayReplacesCurrent(t *testing.T) {
	p := NewPlayer(nil)
	fs := installFakeSpeaker(p)
	a := writeWAV(t, "a.wav", 8000, 800)
	b := writeWAV(t, "b.wav", 16000, 800)

	require.NoError(t, p.Play(a))
	first := p.Done()
	require.NoError(t, p.Play(b))

	// replacing a track ends the previous one
	select {
	case <-first:
	default:
		t.Fatal("previous track not ended")
	}
	assert.Equal(t, b, p.Current())
	assert.Len(t, fs.played, 2)
	assert.GreaterOrEqual(t, fs.cleared, 1)
	// speaker keeps the first sample rate
	assert.Equal(t, beep.SampleRate(8000), fs.rate)
}

func TestPlayer_Errors(t *testing.T) {
	p := NewPlayer(nil)
	installFakeSpeaker(p)

	assert.Error(t, p.Play(""))
	assert.Error(t, p.Play(filepath.Join(t.TempDir(), "missing.wav")))

	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hi"), 0644))
	err := p.Play(txt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported audio format")

	p.SetEnabled(false)
	assert.ErrorIs(t, p.Play(writeWAV(t, "x.wav", 8000, 10)), ErrDisabled)
}

func TestPlayer_PlayUntilDoneCancelled(t *testing.T) {
	p := NewPlayer(nil)
	installFakeSpeaker(p)
	path := writeWAV(t, "long.wav", 8000, 8000)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.PlayUntilDone(ctx, path)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, p.Current())
}

func TestPlayer_CacheReloadsChangedFile(t *testing.T) {
	p := NewPlayer(nil)
	path := writeWAV(t, "track.wav", 8000, 100)

	first, err := p.load(path)
	require.NoError(t, err)
	again, err := p.load(path)
	require.NoError(t, err)
	assert.Same(t, first, again)

	// rewrite with a different length and a later mtime
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, wav.Encode(f, beep.Silence(400), beep.Format{SampleRate: 8000, NumChannels: 1, Precision: 2}))
	require.NoError(t, f.Close())
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	reloaded, err := p.load(path)
	require.NoError(t, err)
	assert.NotSame(t, first, reloaded)
	assert.Equal(t, 400, reloaded.Len())
}

func TestPlayer_Volume(t *testing.T) {
	p := NewPlayer(nil)
	p.SetVolume(1.5)
	assert.Equal(t, 1.0, p.GetVolume())
	p.SetVolume(-1)
	assert.Equal(t, 0.0, p.GetVolume())

	assert.InDelta(t, -1.0, volumeToExponent(0.5), 1e-9)
	assert.InDelta(t, -2.0, volumeToExponent(0.25), 1e-9)
	assert.InDelta(t, 0.0, volumeToExponent(1), 1e-9)
}

func TestPlayer_TogglePause(t *testing.T) {
	p := NewPlayer(nil)
	installFakeSpeaker(p)
	assert.False(t, p.TogglePause())

	require.NoError(t, p.Play(writeWAV(t, "p.wav", 8000, 800)))
	assert.True(t, p.TogglePause())
	assert.False(t, p.TogglePause())
}

func TestPlayer_PlayAsync(t *testing.T) {
	p := NewPlayer(nil)
	started := make(chan struct{}, 4)
	p.initSpeaker = func(beep.SampleRate, int) error { return nil }
	p.play = func(beep.Streamer) { started <- struct{}{} }
	p.clear = func() {}
	path := writeWAV(t, "calm.wav", 8000, 800)

	require.NoError(t, p.PlayAsync(path))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("track never started")
	}
	assert.Equal(t, path, p.Current())

	assert.Error(t, p.PlayAsync(""))
	p.SetEnabled(false)
	assert.ErrorIs(t, p.PlayAsync(path), ErrDisabled)
}

func TestPlayer_SupersededDecodeIsDropped(t *testing.T) {
	p := NewPlayer(nil)
	installFakeSpeaker(p)
	a := writeWAV(t, "a.wav", 8000, 800)
	b := writeWAV(t, "b.wav", 8000, 800)

	buffer, err := p.load(a)
	require.NoError(t, err)

	old, err := p.request(a)
	require.NoError(t, err)
	require.NoError(t, p.Play(b))

	// the decode for a finishes after b was requested
	require.NoError(t, p.start(old, a, buffer))
	assert.Equal(t, b, p.Current())
}
