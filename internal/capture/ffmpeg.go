package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// maxFrameSize bounds a single MJPEG frame read from ffmpeg.
const maxFrameSize = 8 * 1024 * 1024

// FFmpegCamera captures a local video device through an ffmpeg subprocess
// emitting MJPEG on stdout.
type FFmpegCamera struct {
	Path         string        // ffmpeg binary, looked up in PATH when empty
	Device       string        // e.g. /dev/video0, or "0" for avfoundation
	InputFormat  string        // v4l2, avfoundation, dshow; derived from GOOS when empty
	Width        int           // requested capture width
	Height       int           // requested capture height
	FPS          int           // frames per second delivered
	StartTimeout time.Duration // how long to wait for the first frame
}

// Name returns the camera identifier.
func (c *FFmpegCamera) Name() string {
	return "ffmpeg:" + c.Device
}

func (c *FFmpegCamera) inputFormat() string {
	if c.InputFormat != "" {
		return c.InputFormat
	}
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "v4l2"
	}
}

// Args returns the ffmpeg command line used to open the device.
func (c *FFmpegCamera) Args() []string {
	fps := c.FPS
	if fps <= 0 {
		fps = 10
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-f", c.inputFormat()}
	if c.Width > 0 && c.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", c.Width, c.Height))
	}
	args = append(args,
		"-i", c.Device,
		"-an",
		"-vf", "fps="+strconv.Itoa(fps),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"-",
	)
	return args
}

// Open starts ffmpeg and waits for the first frame, so that a missing
// device or denied permission surfaces here rather than as a silent stream.
func (c *FFmpegCamera) Open(ctx context.Context) (Stream, error) {
	path := c.Path
	if path == "" {
		path = "ffmpeg"
	}
	bin, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	if c.Device == "" {
		return nil, errors.New("no camera device configured")
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, bin, c.Args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s := &ffmpegStream{
		cmd:    cmd,
		cancel: cancel,
		frames: make(chan Frame, 1),
		first:  make(chan error, 1),
		stderr: stderr,
	}
	go s.read(stdout)

	timeout := c.StartTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	select {
	case err := <-s.first:
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case <-time.After(timeout):
		_ = s.Close()
		return nil, fmt.Errorf("no frames from %s after %s", c.Device, timeout)
	case <-ctx.Done():
		_ = s.Close()
		return nil, ctx.Err()
	}
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	frames chan Frame
	first  chan error
	stderr *tailBuffer
	once   sync.Once
}

func (s *ffmpegStream) read(r io.Reader) {
	defer close(s.frames)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 256*1024), maxFrameSize)
	scanner.Split(SplitJPEG)

	started := false
	for scanner.Scan() {
		data := append([]byte(nil), scanner.Bytes()...)
		f := Frame{Captured: time.Now(), Data: data}
		if cfg, err := jpeg.DecodeConfig(bytes.NewReader(data)); err == nil {
			f.Width = cfg.Width
			f.Height = cfg.Height
		}
		offer(s.frames, f)
		if !started {
			started = true
			s.first <- nil
		}
	}

	err := s.cmd.Wait()
	if !started {
		msg := strings.TrimSpace(s.stderr.String())
		if msg == "" && err != nil {
			msg = err.Error()
		}
		if msg == "" {
			msg = "ffmpeg exited without frames"
		}
		s.first <- errors.New(msg)
	}
}

func (s *ffmpegStream) Frames() <-chan Frame {
	return s.frames
}

func (s *ffmpegStream) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SplitJPEG is a bufio.SplitFunc yielding complete JPEG images (SOI..EOI)
// from a concatenated MJPEG byte stream. Bytes before an SOI marker are skipped.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, []byte{0xFF, 0xD8})
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// keep a trailing 0xFF that may start the next marker
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+2:], []byte{0xFF, 0xD9})
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	stop := start + 2 + end + 2
	return stop, data[start:stop], nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
