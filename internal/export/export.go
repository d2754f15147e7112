// Package export writes finished clips to the filesystem or the object store.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/radio-tts-service/internal/audio"
	"github.com/book-expert/radio-tts-service/internal/core"
	"github.com/book-expert/radio-tts-service/internal/fileutil"
)

// Output formats.
const (
	FORMAT_WAV  = "wav"
	FORMAT_OGG  = "ogg"
	FORMAT_MP3  = "mp3"
	FORMAT_FLAC = "flac"
)

const (
	wavExtension    = "." + FORMAT_WAV
	objectKeyFormat = "%s/%s.wav"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrEncoderFailed     = errors.New("external encoder failed")
)

// FileExporter writes clips into Dir as <name>.<Format>. WAV is written
// directly; other formats are transcoded from a temp WAV by ffmpeg. The
// target file only appears once it is complete.
type FileExporter struct {
	dir        string
	format     string
	ffmpegPath string
	log        *logger.Logger
}

// NewFileExporter returns an exporter for dir. ffmpegPath may be empty
// when format is wav.
func NewFileExporter(dir, format, ffmpegPath string, log *logger.Logger) (*FileExporter, error) {
	switch format {
	case FORMAT_WAV, FORMAT_OGG, FORMAT_MP3, FORMAT_FLAC:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return &FileExporter{dir: dir, format: format, ffmpegPath: ffmpegPath, log: log}, nil
}

// Dir returns the output directory.
func (e *FileExporter) Dir() string {
	return e.dir
}

// Export writes clip and returns the final file path.
func (e *FileExporter) Export(ctx context.Context, clip audio.Buffer, name string) (string, error) {
	safeName := fileutil.SanitizeFilename(name)
	if safeName == "" {
		return "", fmt.Errorf("%w: %q", fileutil.ErrEmptyName, name)
	}

	dirErr := fileutil.EnsureDir(e.dir)
	if dirErr != nil {
		return "", dirErr
	}

	finalPath := filepath.Join(e.dir, safeName+"."+e.format)

	wavPath, wavErr := e.writeTempWAV(clip)
	if wavErr != nil {
		return "", wavErr
	}

	if e.format == FORMAT_WAV {
		commitErr := fileutil.Commit(wavPath, finalPath)
		if commitErr != nil {
			return "", commitErr
		}

		return finalPath, nil
	}

	defer e.remove(wavPath)

	encodedPath, encodeErr := e.transcode(ctx, wavPath)
	if encodeErr != nil {
		return "", encodeErr
	}

	commitErr := fileutil.Commit(encodedPath, finalPath)
	if commitErr != nil {
		return "", commitErr
	}

	return finalPath, nil
}

func (e *FileExporter) writeTempWAV(clip audio.Buffer) (string, error) {
	file, tempErr := fileutil.TempFile(e.dir, wavExtension)
	if tempErr != nil {
		return "", tempErr
	}

	encodeErr := audio.EncodeWAV(file, clip)
	closeErr := file.Close()

	if encodeErr != nil {
		e.remove(file.Name())

		return "", fmt.Errorf("failed to encode wav: %w", encodeErr)
	}

	if closeErr != nil {
		e.remove(file.Name())

		return "", fmt.Errorf("failed to close temp wav: %w", closeErr)
	}

	return file.Name(), nil
}

func (e *FileExporter) transcode(ctx context.Context, wavPath string) (string, error) {
	file, tempErr := fileutil.TempFile(e.dir, "."+e.format)
	if tempErr != nil {
		return "", tempErr
	}

	outputPath := file.Name()
	_ = file.Close()

	args := []string{"-y", "-loglevel", "error", "-i", wavPath, outputPath}

	// #nosec G204 -- the binary comes from configuration, the paths are our temp files
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		e.remove(outputPath)

		return "", fmt.Errorf("%w: %s: %w - output: %s", ErrEncoderFailed, e.ffmpegPath, runErr, string(output))
	}

	return outputPath, nil
}

func (e *FileExporter) remove(path string) {
	removeErr := os.Remove(path)
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) && e.log != nil {
		e.log.Warn("Failed to remove temp file '%s': %v", path, removeErr)
	}
}

// ObjectStoreExporter uploads clips as WAV under fresh uuid keys.
type ObjectStoreExporter struct {
	store  core.ObjectStore
	prefix string
}

// NewObjectStoreExporter returns an exporter writing to store. Keys are
// "<prefix>/<uuid>.wav".
func NewObjectStoreExporter(store core.ObjectStore, prefix string) *ObjectStoreExporter {
	return &ObjectStoreExporter{store: store, prefix: prefix}
}

// Export uploads clip and returns its object key. The key does not embed name.
func (e *ObjectStoreExporter) Export(ctx context.Context, clip audio.Buffer, _ string) (string, error) {
	data, encodeErr := audio.EncodeWAVBytes(clip)
	if encodeErr != nil {
		return "", fmt.Errorf("failed to encode wav: %w", encodeErr)
	}

	key := fmt.Sprintf(objectKeyFormat, e.prefix, uuid.NewString())
	if e.prefix == "" {
		key = uuid.NewString() + wavExtension
	}

	uploadErr := e.store.Upload(ctx, key, data)
	if uploadErr != nil {
		return "", fmt.Errorf("failed to upload clip %s: %w", key, uploadErr)
	}

	return key, nil
}
