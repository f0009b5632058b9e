package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	frames chan Frame
	closed atomic.Bool
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan Frame, 8)}
}

func (s *fakeStream) Frames() <-chan Frame { return s.frames }

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	s.once.Do(func() { close(s.frames) })
	return nil
}

type fakeCamera struct {
	mu      sync.Mutex
	opens   int
	err     error
	streams []*fakeStream
}

func (c *fakeCamera) Name() string { return "fake" }

func (c *fakeCamera) Open(ctx context.Context) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
	if c.err != nil {
		return nil, c.err
	}
	s := newFakeStream()
	c.streams = append(c.streams, s)
	return s, nil
}

func (c *fakeCamera) openCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

type statusRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *statusRecorder) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, s)
}

func (r *statusRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func TestController_StartIsIdempotent(t *testing.T) {
	cam := &fakeCamera{}
	c := NewController(cam, nil)
	rec := &statusRecorder{}
	c.SetStatusFunc(rec.record)

	require.NoError(t, c.Start(context.Background()))
	first := cam.streams[0]
	require.NoError(t, c.Start(context.Background()))

	assert.Equal(t, 1, cam.openCount())
	assert.True(t, c.Active())
	assert.Equal(t, first, c.stream)
	assert.Equal(t, []string{StatusCameraOn}, rec.all())
}

func TestController_ConcurrentStartOpensOnce(t *testing.T) {
	cam := &fakeCamera{}
	c := NewController(cam, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Start(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, cam.openCount())
}

func TestController_StartErrorReportsStatus(t *testing.T) {
	cam := &fakeCamera{err: errors.New("permission denied")}
	c := NewController(cam, nil)
	rec := &statusRecorder{}
	c.SetStatusFunc(rec.record)

	err := c.Start(context.Background())
	require.Error(t, err)

	var camErr *CameraError
	require.ErrorAs(t, err, &camErr)
	assert.Equal(t, "fake", camErr.Camera)
	assert.False(t, c.Active())
	assert.Equal(t, []string{"camera error: permission denied"}, rec.all())

	_, err = c.Latest()
	assert.ErrorIs(t, err, ErrNoCamera)
}

func TestController_LatestAndStop(t *testing.T) {
	cam := &fakeCamera{}
	c := NewController(cam, nil)
	rec := &statusRecorder{}
	c.SetStatusFunc(rec.record)

	require.NoError(t, c.Start(context.Background()))
	_, err := c.Latest()
	assert.ErrorIs(t, err, ErrNoFrame)

	now := time.Now()
	cam.streams[0].frames <- Frame{Captured: now, Width: 4, Height: 3}

	var f Frame
	require.Eventually(t, func() bool {
		f, err = c.Latest()
		return err == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, 4, f.Width)
	assert.True(t, f.Captured.Equal(now))

	c.Stop()
	assert.True(t, cam.streams[0].closed.Load())
	assert.False(t, c.Active())
	_, err = c.Latest()
	assert.ErrorIs(t, err, ErrNoCamera)

	// stopping again is a no-op
	c.Stop()
	assert.Equal(t, []string{StatusCameraOn, StatusCameraStopped}, rec.all())
}

func TestController_SeqContinuesAcrossRestart(t *testing.T) {
	cam := &fakeCamera{}
	c := NewController(cam, nil)

	require.NoError(t, c.Start(context.Background()))
	cam.streams[0].frames <- Frame{Captured: time.Now()}
	require.Eventually(t, func() bool { _, err := c.Latest(); return err == nil }, time.Second, 5*time.Millisecond)
	c.Stop()

	require.NoError(t, c.Start(context.Background()))
	cam.streams[1].frames <- Frame{Captured: time.Now()}

	var f Frame
	require.Eventually(t, func() bool {
		var err error
		f, err = c.Latest()
		return err == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), f.Seq)
}

func TestSyntheticCamera(t *testing.T) {
	cam := &SyntheticCamera{FPS: 50, Width: 320, Height: 240}
	s, err := cam.Open(context.Background())
	require.NoError(t, err)

	select {
	case f := <-s.Frames():
		assert.Equal(t, 320, f.Width)
		assert.Nil(t, f.Data)
	case <-time.After(time.Second):
		t.Fatal("no synthetic frame")
	}

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	// channel is eventually closed
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-s.Frames():
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func jpegBytes(body ...byte) []byte {
	out := []byte{0xFF, 0xD8}
	out = append(out, body...)
	return append(out, 0xFF, 0xD9)
}

func TestSplitJPEG(t *testing.T) {
	a := jpegBytes(1, 2, 3)
	b := jpegBytes(0xFF, 0x00, 4)

	var stream []byte
	stream = append(stream, 0x00, 0x11) // garbage before the first image
	stream = append(stream, a...)
	stream = append(stream, b...)
	stream = append(stream, 0xFF, 0xD8, 9) // truncated trailing image

	scanner := bufio.NewScanner(bytes.NewReader(stream))
	scanner.Split(SplitJPEG)

	var got [][]byte
	for scanner.Scan() {
		got = append(got, append([]byte(nil), scanner.Bytes()...))
	}
	require.NoError(t, scanner.Err())
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0])
	assert.Equal(t, b, got[1])
}

func TestFFmpegCamera_Args(t *testing.T) {
	cam := &FFmpegCamera{Device: "/dev/video2", InputFormat: "v4l2", Width: 640, Height: 480, FPS: 5}
	args := cam.Args()

	assert.Equal(t, "ffmpeg:/dev/video2", cam.Name())
	assert.Contains(t, args, "-an")
	assert.Contains(t, args, "640x480")
	assert.Contains(t, args, "fps=5")
	assert.Equal(t, "-", args[len(args)-1])
}

func TestFFmpegCamera_MissingBinary(t *testing.T) {
	cam := &FFmpegCamera{Path: "/nonexistent/ffmpeg", Device: "/dev/video0"}
	_, err := cam.Open(context.Background())
	assert.Error(t, err)
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{limit: 5}
	_, _ = b.Write([]byte("hello world"))
	assert.Equal(t, "world", b.String())
}
