package media

import (
	"fmt"
	"io"
)

// Metadata is what can be learned about an upload without decoding it.
type Metadata struct {
	Duration   float64 `json:"duration"`
	Format     string  `json:"format"`
	Bitrate    int     `json:"bitrate"`
	SampleRate int     `json:"sampleRate"`
	Channels   int     `json:"channels"`
}

// nominal bitrates used to estimate the length of compressed uploads
var nominalBitrates = map[string]int{
	"mp3":  128000,
	"m4a":  128000,
	"mp4":  128000,
	"webm": 96000,
	"ogg":  96000,
}

// Probe reads audio metadata from r. WAV files are measured from their
// header; compressed formats are identified by extension and their length
// estimated from size at a nominal bitrate.
func Probe(r io.ReadSeeker, size int64, filename string) (Metadata, error) {
	ext := Extension(filename)

	if ext == "wav" {
		h, err := ReadWAVHeader(r)
		if err != nil {
			return Metadata{}, fmt.Errorf("invalid WAV file %s: %w", filename, err)
		}
		return Metadata{
			Duration:   h.Duration(),
			Format:     "wav",
			Bitrate:    h.SampleRate * h.Channels * h.BitsPerSample,
			SampleRate: h.SampleRate,
			Channels:   h.Channels,
		}, nil
	}

	bitrate, ok := nominalBitrates[ext]
	if !ok {
		return Metadata{}, fmt.Errorf("no audio stream found in %s", filename)
	}
	if size <= 0 {
		return Metadata{}, fmt.Errorf("empty audio file %s", filename)
	}
	return Metadata{
		Duration: float64(size*8) / float64(bitrate),
		Format:   ext,
		Bitrate:  bitrate,
	}, nil
}
