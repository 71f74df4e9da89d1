// Package audio loads PCM sound data and adapts it for playback.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/faiface/beep"
)

var (
	// ErrInvalidWAV is returned when data is not a well-formed RIFF/WAVE PCM file.
	ErrInvalidWAV = errors.New("invalid wav data")
	// ErrUnsupportedFormat is returned for channel and bit depth combinations that cannot be played.
	ErrUnsupportedFormat = errors.New("unsupported sample format")
)

const (
	riffHeaderSize  = 12 // "RIFF" + size + "WAVE"
	chunkHeaderSize = 8  // id + size
	fmtChunkSize    = 16
	formatTagPCM    = 1
)

// SampleFormat describes the channel layout and sample width of PCM data.
type SampleFormat int

const (
	SampleFormatMono8 SampleFormat = iota
	SampleFormatMono16
	SampleFormatStereo8
	SampleFormatStereo16
)

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatMono8:
		return "mono8"
	case SampleFormatMono16:
		return "mono16"
	case SampleFormatStereo8:
		return "stereo8"
	case SampleFormatStereo16:
		return "stereo16"
	default:
		return "unknown"
	}
}

// SoundData is decoded PCM audio and the format fields of its "fmt " chunk.
type SoundData struct {
	FormatTag     uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	// Data holds the raw interleaved samples of the "data" chunk.
	Data []byte
}

// LoadWAV reads and parses a WAV file.
//
// Parameters:
//   - path: the file to load
//
// Returns:
//   - *SoundData: the parsed sound
//   - error: error if the file cannot be read or is not valid PCM WAV
func LoadWAV(path string) (*SoundData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sound file: %w", err)
	}
	sound, err := ParseWAV(data)
	if err != nil {
		common.Logger().Error("failed to load sound file", "path", path, "error", err)
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sound, nil
}

// ParseWAV parses a RIFF/WAVE buffer holding PCM audio.
// A RIFF length that disagrees with the buffer size is logged and otherwise ignored.
// Unknown chunks are skipped; chunks are padded to an even size.
//
// Parameters:
//   - data: the complete file contents
//
// Returns:
//   - *SoundData: the parsed sound
//   - error: ErrInvalidWAV describing the first structural problem found
func ParseWAV(data []byte) (*SoundData, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("%w: file too small", ErrInvalidWAV)
	}
	if string(data[0:4]) != "RIFF" {
		return nil, fmt.Errorf("%w: not a RIFF file", ErrInvalidWAV)
	}
	if length := binary.LittleEndian.Uint32(data[4:8]); uint64(length)+8 != uint64(len(data)) {
		common.Logger().Warn("wav size mismatch", "riffLength", length, "fileSize", len(data))
	}
	if string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a WAVE file", ErrInvalidWAV)
	}

	sound := &SoundData{}
	foundFormat, foundData := false, false

	offset := uint64(riffHeaderSize)
	size := uint64(len(data))
	for offset < size {
		if size < offset+chunkHeaderSize {
			return nil, fmt.Errorf("%w: truncated chunk header at offset %d", ErrInvalidWAV, offset)
		}
		id := string(data[offset : offset+4])
		chunkSize := uint64(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		offset += chunkHeaderSize
		if size < offset+chunkSize {
			return nil, fmt.Errorf("%w: chunk %q overruns the file", ErrInvalidWAV, id)
		}
		payload := data[offset : offset+chunkSize]

		switch id {
		case "fmt ":
			if chunkSize < fmtChunkSize {
				return nil, fmt.Errorf("%w: format chunk too small", ErrInvalidWAV)
			}
			sound.FormatTag = binary.LittleEndian.Uint16(payload[0:2])
			if sound.FormatTag != formatTagPCM {
				return nil, fmt.Errorf("%w: format tag %d is not PCM", ErrInvalidWAV, sound.FormatTag)
			}
			sound.Channels = binary.LittleEndian.Uint16(payload[2:4])
			sound.SampleRate = binary.LittleEndian.Uint32(payload[4:8])
			sound.ByteRate = binary.LittleEndian.Uint32(payload[8:12])
			sound.BlockAlign = binary.LittleEndian.Uint16(payload[12:14])
			sound.BitsPerSample = binary.LittleEndian.Uint16(payload[14:16])
			foundFormat = true
		case "data":
			sound.Data = append([]byte(nil), payload...)
			foundData = true
		}

		offset += (chunkSize + 1) &^ 1
	}

	if !foundFormat {
		return nil, fmt.Errorf("%w: no format chunk", ErrInvalidWAV)
	}
	if !foundData {
		return nil, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
	}
	return sound, nil
}

// SampleFormat maps the channel count and bit depth to a playable format.
//
// Returns:
//   - SampleFormat: the sample format
//   - error: ErrUnsupportedFormat for anything other than 1 or 2 channels of 8 or 16 bits
func (d *SoundData) SampleFormat() (SampleFormat, error) {
	switch {
	case d.Channels == 1 && d.BitsPerSample == 8:
		return SampleFormatMono8, nil
	case d.Channels == 1 && d.BitsPerSample == 16:
		return SampleFormatMono16, nil
	case d.Channels == 2 && d.BitsPerSample == 8:
		return SampleFormatStereo8, nil
	case d.Channels == 2 && d.BitsPerSample == 16:
		return SampleFormatStereo16, nil
	default:
		return 0, fmt.Errorf("%w: %d channels of %d bits", ErrUnsupportedFormat, d.Channels, d.BitsPerSample)
	}
}

// Format returns the beep stream format of the sound.
func (d *SoundData) Format() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(d.SampleRate),
		NumChannels: int(d.Channels),
		Precision:   int(d.BitsPerSample / 8),
	}
}

// frameSize is the byte size of one sample across all channels.
func (d *SoundData) frameSize() int {
	return int(d.Channels) * int(d.BitsPerSample/8)
}

// Frames returns the number of sample frames in Data. A trailing partial frame is not counted.
func (d *SoundData) Frames() int {
	if fs := d.frameSize(); fs > 0 {
		return len(d.Data) / fs
	}
	return 0
}

// Duration returns the playback length.
func (d *SoundData) Duration() time.Duration {
	if d.SampleRate == 0 {
		return 0
	}
	return d.Format().SampleRate.D(d.Frames())
}

// Streamer adapts the PCM data to a seekable beep stream. Mono sound is played on both channels.
//
// Returns:
//   - beep.StreamSeeker: a stream over the sound's frames
//   - beep.Format: the stream format
//   - error: ErrUnsupportedFormat if the sample format cannot be decoded
func (d *SoundData) Streamer() (beep.StreamSeeker, beep.Format, error) {
	format, err := d.SampleFormat()
	if err != nil {
		return nil, beep.Format{}, err
	}
	return &pcmStreamer{sound: d, format: format}, d.Format(), nil
}

// pcmStreamer decodes interleaved 8-bit unsigned or 16-bit signed little-endian PCM.
type pcmStreamer struct {
	sound    *SoundData
	format   SampleFormat
	position int
}

var _ beep.StreamSeeker = &pcmStreamer{}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	frames := s.sound.Frames()
	if s.position >= frames {
		return 0, false
	}
	frameSize := s.sound.frameSize()
	for n < len(samples) && s.position < frames {
		frame := s.sound.Data[s.position*frameSize : (s.position+1)*frameSize]
		switch s.format {
		case SampleFormatMono8:
			v := unsigned8(frame[0])
			samples[n] = [2]float64{v, v}
		case SampleFormatMono16:
			v := signed16(frame[0:2])
			samples[n] = [2]float64{v, v}
		case SampleFormatStereo8:
			samples[n] = [2]float64{unsigned8(frame[0]), unsigned8(frame[1])}
		case SampleFormatStereo16:
			samples[n] = [2]float64{signed16(frame[0:2]), signed16(frame[2:4])}
		}
		n++
		s.position++
	}
	return n, true
}

func (s *pcmStreamer) Err() error { return nil }

func (s *pcmStreamer) Len() int { return s.sound.Frames() }

func (s *pcmStreamer) Position() int { return s.position }

func (s *pcmStreamer) Seek(p int) error {
	if p < 0 || p > s.Len() {
		return fmt.Errorf("seek position %d out of range [0, %d]", p, s.Len())
	}
	s.position = p
	return nil
}

// unsigned8 maps an 8-bit sample centered on 128 to [-1, 1).
func unsigned8(b byte) float64 {
	return (float64(b) - 128) / 128
}

// signed16 maps a little-endian 16-bit sample to [-1, 1).
func signed16(b []byte) float64 {
	return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
}
