package infrastructure

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonas747/dca"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
	"layeh.com/gopus"
)

// Discord voice audio format.
const (
	sampleRate   = 48000
	channels     = 2
	frameSamples = 960 // 20ms at 48kHz
	frameBytes   = frameSamples * channels * 2
	maxOpusBytes = frameBytes

	stderrTailBytes = 4096
)

// OpusSource is a DecodedSource that yields Opus frames for a voice connection.
type OpusSource interface {
	ports.DecodedSource
	OpusFrame() ([]byte, error)
}

// Compile-time check that FFmpegDecoder implements ports.StreamDecoder.
var _ ports.StreamDecoder = (*FFmpegDecoder)(nil)

// FFmpegDecoder decodes local files with dca and remote streams with an
// ffmpeg PCM pipe encoded by gopus.
type FFmpegDecoder struct {
	ffmpegPath string
	bitrate    int // kbps
}

// NewFFmpegDecoder creates a new FFmpegDecoder.
func NewFFmpegDecoder(ffmpegPath string, bitrateKbps int) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if bitrateKbps <= 0 {
		bitrateKbps = 128
	}
	return &FFmpegDecoder{
		ffmpegPath: ffmpegPath,
		bitrate:    bitrateKbps,
	}
}

// Open starts decoding source at offset.
func (d *FFmpegDecoder) Open(
	ctx context.Context,
	source string,
	offset time.Duration,
	remote bool,
) (ports.DecodedSource, error) {
	if remote {
		return d.openRemote(ctx, source, offset)
	}
	return d.openFile(source, offset)
}

func (d *FFmpegDecoder) openFile(path string, offset time.Duration) (*dcaSource, error) {
	opts := *dca.StdEncodeOptions
	opts.RawOutput = true
	opts.Bitrate = d.bitrate
	opts.Application = dca.AudioApplicationAudio
	opts.StartTime = int(offset / time.Second)

	session, err := dca.EncodeFile(path, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}
	return &dcaSource{session: session}, nil
}

func (d *FFmpegDecoder) openRemote(ctx context.Context, url string, offset time.Duration) (*pcmSource, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	enc.SetBitrate(d.bitrate * 1000)

	cctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cctx, d.ffmpegPath, remoteArgs(url, offset)...)
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open ffmpeg output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	return &pcmSource{
		cmd:     cmd,
		cancel:  cancel,
		stdout:  stdout,
		stderr:  stderr,
		encoder: enc,
		buf:     make([]byte, frameBytes),
		pcm:     make([]int16, frameSamples*channels),
	}, nil
}

// remoteArgs builds the ffmpeg arguments for a network source. Input seeking
// goes before -i so ffmpeg can skip without decoding.
func remoteArgs(url string, offset time.Duration) []string {
	args := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
	}
	if secs := int(offset / time.Second); secs > 0 {
		args = append(args, "-ss", strconv.Itoa(secs))
	}
	return append(args,
		"-i", url,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "error",
		"pipe:1",
	)
}

// dcaSource adapts a dca encode session.
type dcaSource struct {
	session *dca.EncodeSession
	once    sync.Once
}

func (s *dcaSource) OpusFrame() ([]byte, error) {
	frame, err := s.session.OpusFrame()
	if errors.Is(err, io.EOF) {
		if serr := s.session.Error(); serr != nil {
			return nil, fmt.Errorf("ffmpeg failed: %w", serr)
		}
	}
	return frame, err
}

func (s *dcaSource) Close() error {
	s.once.Do(s.session.Cleanup)
	return nil
}

// pcmSource encodes ffmpeg's s16le output into Opus frames.
type pcmSource struct {
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	stdout  io.ReadCloser
	stderr  *tailBuffer
	encoder *gopus.Encoder

	buf []byte
	pcm []int16
	eof bool

	waitOnce sync.Once
	waitErr  error
	closed   sync.Once
}

func (s *pcmSource) OpusFrame() ([]byte, error) {
	if s.eof {
		return nil, io.EOF
	}

	n, err := io.ReadFull(s.stdout, s.buf)
	switch {
	case errors.Is(err, io.EOF):
		s.eof = true
		if werr := s.wait(); werr != nil {
			return nil, werr
		}
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		// Pad the trailing partial frame with silence.
		clear(s.buf[n:])
		s.eof = true
	case err != nil:
		return nil, fmt.Errorf("failed to read ffmpeg output: %w", err)
	}

	for i := range s.pcm {
		s.pcm[i] = int16(binary.LittleEndian.Uint16(s.buf[i*2:]))
	}
	frame, err := s.encoder.Encode(s.pcm, frameSamples, maxOpusBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode opus frame: %w", err)
	}
	return frame, nil
}

func (s *pcmSource) wait() error {
	s.waitOnce.Do(func() {
		if err := s.cmd.Wait(); err != nil {
			msg := strings.TrimSpace(s.stderr.String())
			if msg != "" {
				s.waitErr = fmt.Errorf("ffmpeg exited: %w: %s", err, msg)
			} else {
				s.waitErr = fmt.Errorf("ffmpeg exited: %w", err)
			}
		}
	})
	return s.waitErr
}

func (s *pcmSource) Close() error {
	s.closed.Do(func() {
		s.cancel()
		_ = s.stdout.Close()
		_ = s.wait()
	})
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = b.data[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
