package media

import (
	"context"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"callqa-server/pkg/audio"
	"callqa-server/pkg/errors"
)

// Processor turns an uploaded call recording into audio data for analysis.
type Processor struct {
	logger *logrus.Logger
	config Config
}

// NewProcessor creates an upload processor.
func NewProcessor(logger *logrus.Logger, config Config) *Processor {
	defaults := DefaultConfig()
	if config.MaxBytes <= 0 {
		config.MaxBytes = defaults.MaxBytes
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = defaults.AllowedExtensions
	}
	if config.UploadDir == "" {
		config.UploadDir = defaults.UploadDir
	}
	return &Processor{logger: logger, config: config}
}

// Config returns the processor's effective configuration.
func (p *Processor) Config() Config {
	return p.config
}

// Stage copies an upload into the upload directory under a unique name,
// rejecting unsupported extensions and files above the size limit. The
// caller removes the staged file once it is done with it.
func (p *Processor) Stage(r io.Reader, filename string) (string, int64, error) {
	if !p.config.Allowed(filename) {
		return "", 0, errors.NewUnsupportedAudio(filename)
	}
	if err := os.MkdirAll(p.config.UploadDir, 0o755); err != nil {
		return "", 0, errors.Wrap(err, "failed to create upload directory", map[string]interface{}{
			"dir": p.config.UploadDir,
		})
	}

	path := filepath.Join(p.config.UploadDir, uuid.New().String()+"."+Extension(filename))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, errors.Wrap(err, "failed to stage upload")
	}

	// one byte past the limit is enough to know it was exceeded
	n, err := io.Copy(f, io.LimitReader(r, p.config.MaxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, errors.Wrap(err, "failed to stage upload")
	}
	if n > p.config.MaxBytes {
		os.Remove(path)
		return "", 0, errors.NewAudioTooLarge(n, p.config.MaxBytes)
	}

	p.logger.WithFields(logrus.Fields{
		"filename": filename,
		"path":     path,
		"bytes":    n,
	}).Debug("Upload staged")
	return path, n, nil
}

// Process probes a staged recording and builds its audio data. Silence
// candidates are synthetic: they are generated from the recording length,
// not detected in the signal.
func (p *Processor) Process(ctx context.Context, path, filename string) (*audio.Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.config.Allowed(filename) {
		return nil, errors.NewUnsupportedAudio(filename)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open audio file", map[string]interface{}{"path": path})
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat audio file", map[string]interface{}{"path": path})
	}

	meta, err := Probe(f, info.Size(), filename)
	if err != nil {
		return nil, errors.NewAudioProbeFailed(err, filename)
	}

	data := &audio.Data{
		Duration:   meta.Duration,
		Format:     meta.Format,
		SampleRate: meta.SampleRate,
		Channels:   meta.Channels,
		Silences:   SyntheticSilences(meta.Duration, p.seedFor(filename, info.Size())),
		Synthetic:  true,
	}

	p.logger.WithFields(logrus.Fields{
		"filename": filename,
		"duration": meta.Duration,
		"format":   meta.Format,
		"silences": len(data.Silences),
	}).Info("Audio processing complete")
	return data, nil
}

func (p *Processor) seedFor(filename string, size int64) int64 {
	if p.config.Seed != 0 {
		return p.config.Seed
	}
	h := fnv.New64a()
	h.Write([]byte(filename))
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(size >> (8 * i))
	}
	h.Write(buf[:])
	return int64(h.Sum64())
}
