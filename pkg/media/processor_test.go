package media

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callqa-server/pkg/errors"
)

func testProcessor(t *testing.T, config Config) *Processor {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	config.UploadDir = t.TempDir()
	return NewProcessor(logger, config)
}

func wavBytes(t *testing.T, sampleRate, channels int, seconds float64) []byte {
	t.Helper()
	var buf bytes.Buffer
	pcm := make([]byte, int(float64(sampleRate*channels*2)*seconds))
	require.NoError(t, WriteWAV(&buf, sampleRate, channels, pcm))
	return buf.Bytes()
}

func TestReadWAVHeader(t *testing.T) {
	h, err := ReadWAVHeader(bytes.NewReader(wavBytes(t, 8000, 1, 2)))
	require.NoError(t, err)

	assert.Equal(t, 1, h.AudioFormat)
	assert.Equal(t, 8000, h.SampleRate)
	assert.Equal(t, 1, h.Channels)
	assert.Equal(t, 16, h.BitsPerSample)
	assert.InDelta(t, 2.0, h.Duration(), 1e-9)
}

func TestReadWAVHeaderRejectsOtherContainers(t *testing.T) {
	_, err := ReadWAVHeader(strings.NewReader("ID3\x03\x00\x00\x00\x00\x00\x00\x00\x00"))
	assert.Error(t, err)
}

func TestProbeCompressedUsesNominalBitrate(t *testing.T) {
	meta, err := Probe(strings.NewReader(""), 1_920_000, "call.mp3")
	require.NoError(t, err)
	assert.Equal(t, "mp3", meta.Format)
	assert.InDelta(t, 120.0, meta.Duration, 1e-9)

	_, err = Probe(strings.NewReader(""), 100, "call.flac")
	assert.Error(t, err)
}

func TestSyntheticSilences(t *testing.T) {
	silences := SyntheticSilences(180, 7)
	require.Len(t, silences, 6)
	assert.Equal(t, silences, SyntheticSilences(180, 7))

	for i, s := range silences {
		assert.GreaterOrEqual(t, s.Duration, 3.0)
		assert.Less(t, s.Duration, 11.0)
		assert.InDelta(t, s.Start+s.Duration, s.End, 1e-9)
		if i > 0 {
			assert.LessOrEqual(t, silences[i-1].Start, s.Start)
		}
	}

	assert.Empty(t, SyntheticSilences(20, 7))
}

func TestStageAndProcessWAV(t *testing.T) {
	p := testProcessor(t, Config{Seed: 3})

	path, size, err := p.Stage(bytes.NewReader(wavBytes(t, 16000, 1, 61)), "call.wav")
	require.NoError(t, err)
	defer os.Remove(path)
	assert.Equal(t, p.Config().UploadDir, filepath.Dir(path))
	assert.Greater(t, size, int64(0))

	data, err := p.Process(context.Background(), path, "call.wav")
	require.NoError(t, err)
	assert.InDelta(t, 61.0, data.Duration, 1e-9)
	assert.Equal(t, "wav", data.Format)
	assert.Equal(t, 16000, data.SampleRate)
	assert.True(t, data.Synthetic)
	assert.Len(t, data.Silences, 2)
}

func TestStageRejectsUnsupportedAndOversized(t *testing.T) {
	p := testProcessor(t, Config{MaxBytes: 10})

	_, _, err := p.Stage(strings.NewReader("text"), "notes.txt")
	assert.True(t, errors.IsErrorType(err, errors.ErrUnsupportedAudio))

	_, _, err = p.Stage(strings.NewReader(strings.Repeat("x", 11)), "big.mp3")
	assert.True(t, errors.IsErrorType(err, errors.ErrAudioTooLarge))

	entries, err := os.ReadDir(p.Config().UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessCorruptWAV(t *testing.T) {
	p := testProcessor(t, Config{})
	path, _, err := p.Stage(strings.NewReader("not a wav file at all"), "bad.wav")
	require.NoError(t, err)

	_, err = p.Process(context.Background(), path, "bad.wav")
	assert.True(t, errors.IsErrorType(err, errors.ErrAudioProbeFailed))
}

func TestProcessHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testProcessor(t, Config{}).Process(ctx, "missing.wav", "missing.wav")
	assert.ErrorIs(t, err, context.Canceled)
}
