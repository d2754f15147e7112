package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

const (
	pcmFormat          = 1
	mp3BytesPerFrame   = 4
	mp3Channels        = 2
	DEFAULT_BIT_DEPTH  = 16
	minimumHeaderBytes = 4
)

var (
	// ErrEmptyAudio indicates a zero-length byte stream or buffer.
	ErrEmptyAudio = errors.New("audio data is empty")
	// ErrUnsupportedEncoding indicates bytes that are neither WAV nor MP3.
	ErrUnsupportedEncoding = errors.New("unsupported audio encoding")
	// ErrInvalidWAV indicates a RIFF stream that is not a readable WAV file.
	ErrInvalidWAV = errors.New("invalid wav data")
)

// Loader reads audio assets from storage.
type Loader interface {
	LoadAudioFile(path string) (Buffer, error)
}

// FileLoader loads WAV or MP3 files from the local filesystem.
type FileLoader struct{}

// LoadAudioFile reads and decodes the file at path.
func (FileLoader) LoadAudioFile(path string) (Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("failed to read audio file %s: %w", path, err)
	}

	buf, decodeErr := Decode(data)
	if decodeErr != nil {
		return Buffer{}, fmt.Errorf("failed to decode audio file %s: %w", path, decodeErr)
	}

	return buf, nil
}

// Decode sniffs the container and decodes WAV or MP3 bytes.
func Decode(data []byte) (Buffer, error) {
	if len(data) == 0 {
		return Buffer{}, ErrEmptyAudio
	}

	switch {
	case isWAV(data):
		return DecodeWAV(data)
	case isMP3(data):
		return DecodeMP3(data)
	default:
		return Buffer{}, ErrUnsupportedEncoding
	}
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

func isMP3(data []byte) bool {
	if len(data) < minimumHeaderBytes {
		return false
	}

	if bytes.Equal(data[:3], []byte("ID3")) {
		return true
	}

	return data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// DecodeMP3 decodes MP3 bytes. go-mp3 always yields 16-bit stereo.
func DecodeMP3(data []byte) (Buffer, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Buffer{}, fmt.Errorf("failed to open mp3 stream: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return Buffer{}, fmt.Errorf("failed to read mp3 pcm: %w", err)
	}

	pcm = pcm[:len(pcm)/mp3BytesPerFrame*mp3BytesPerFrame]
	if len(pcm) == 0 {
		return Buffer{}, ErrEmptyAudio
	}

	samples := make([]float64, len(pcm)/2)
	for i := range samples {
		value := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		samples[i] = float64(value) / 32768
	}

	return wrap(samples, decoder.SampleRate(), mp3Channels), nil
}

// DecodeWAV decodes integer PCM WAV bytes.
func DecodeWAV(data []byte) (Buffer, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return Buffer{}, ErrInvalidWAV
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("failed to read wav pcm: %w", err)
	}

	if pcm == nil || pcm.Format == nil || len(pcm.Data) == 0 {
		return Buffer{}, ErrEmptyAudio
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = DEFAULT_BIT_DEPTH
	}

	fullScale := float64(int64(1) << (bitDepth - 1))
	samples := make([]float64, len(pcm.Data))

	for i, value := range pcm.Data {
		if bitDepth == 8 {
			samples[i] = float64(value-128) / fullScale

			continue
		}

		samples[i] = float64(value) / fullScale
	}

	return NewBuffer(samples, pcm.Format.SampleRate, pcm.Format.NumChannels)
}

// EncodeWAV writes the buffer as 16-bit PCM WAV, clamping to full scale.
func EncodeWAV(w io.WriteSeeker, buf Buffer) error {
	if buf.IsEmpty() {
		return ErrEmptyAudio
	}

	encoder := wav.NewEncoder(w, buf.sampleRate, DEFAULT_BIT_DEPTH, buf.channels, pcmFormat)

	data := make([]int, len(buf.samples))
	for i, sample := range buf.samples {
		data[i] = int(clamp(sample) * 32767)
	}

	intBuf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: buf.channels, SampleRate: buf.sampleRate},
		Data:           data,
		SourceBitDepth: DEFAULT_BIT_DEPTH,
	}

	writeErr := encoder.Write(intBuf)
	if writeErr != nil {
		return fmt.Errorf("failed to write wav samples: %w", writeErr)
	}

	closeErr := encoder.Close()
	if closeErr != nil {
		return fmt.Errorf("failed to finalize wav: %w", closeErr)
	}

	return nil
}

// WriteWAVFile encodes the buffer into a new file at path.
func WriteWAVFile(path string, buf Buffer) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file %s: %w", path, err)
	}

	encodeErr := EncodeWAV(file, buf)
	closeErr := file.Close()

	if encodeErr != nil {
		return encodeErr
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close wav file %s: %w", path, closeErr)
	}

	return nil
}

// EncodeWAVBytes encodes the buffer as an in-memory WAV file.
func EncodeWAVBytes(buf Buffer) ([]byte, error) {
	var sink seekBuffer

	encodeErr := EncodeWAV(&sink, buf)
	if encodeErr != nil {
		return nil, encodeErr
	}

	return sink.data, nil
}

// seekBuffer is an io.WriteSeeker over a growable byte slice.
type seekBuffer struct {
	data []byte
	pos  int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if end := s.pos + len(p); end > len(s.data) {
		s.data = append(s.data, make([]byte, end-len(s.data))...)
	}

	n := copy(s.data[s.pos:], p)
	s.pos += n

	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(s.pos)
	case io.SeekEnd:
		base = int64(len(s.data))
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}

	next := base + offset
	if next < 0 {
		return 0, fmt.Errorf("negative seek position %d", next)
	}

	s.pos = int(next)

	return next, nil
}
