package media

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WAVHeader is the format and data-chunk layout of a RIFF/WAVE file.
type WAVHeader struct {
	AudioFormat   int
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataSize      int64
}

// Duration returns the playing time of the data chunk in seconds.
func (h WAVHeader) Duration() float64 {
	bytesPerSecond := h.SampleRate * h.Channels * (h.BitsPerSample / 8)
	if bytesPerSecond <= 0 {
		return 0
	}
	return float64(h.DataSize) / float64(bytesPerSecond)
}

// ReadWAVHeader walks the RIFF chunks of r until both the fmt and data chunks
// have been seen. The data chunk itself is skipped, not read.
func ReadWAVHeader(r io.ReadSeeker) (WAVHeader, error) {
	var h WAVHeader

	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return h, err
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return h, fmt.Errorf("missing RIFF/WAVE header")
	}

	var fmtFound bool
	var dataFound bool

	for !fmtFound || !dataFound {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(r, chunkHeader); err != nil {
			return h, err
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return h, fmt.Errorf("fmt chunk too short: %d bytes", chunkSize)
			}
			fmtChunk := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, fmtChunk); err != nil {
				return h, err
			}
			h.AudioFormat = int(binary.LittleEndian.Uint16(fmtChunk[0:2]))
			h.Channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
			h.SampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			h.BitsPerSample = int(binary.LittleEndian.Uint16(fmtChunk[14:16]))
			if h.Channels == 0 || h.SampleRate == 0 {
				return h, fmt.Errorf("invalid fmt chunk: %d channels at %d Hz", h.Channels, h.SampleRate)
			}
			fmtFound = true
		case "data":
			h.DataSize = int64(chunkSize)
			if _, err := r.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return h, err
			}
			dataFound = true
		default:
			if _, err := r.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return h, err
			}
		}

		// RIFF chunks are word aligned
		if chunkSize%2 == 1 {
			if _, err := r.Seek(1, io.SeekCurrent); err != nil {
				return h, err
			}
		}
	}

	return h, nil
}
