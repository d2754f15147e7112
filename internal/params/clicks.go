package params

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/book-expert/radio-tts-service/internal/audio"
)

// Click asset defaults.
const (
	DEFAULT_CLICK_DIR          = "assets"
	DEFAULT_CLICK_IN_FILE      = "In.wav"
	DEFAULT_CLICK_OUT_FILE     = "Out.wav"
	DEFAULT_CLICK_REDUCTION_DB = 5.0
)

// ClickKind names one of the two click assets.
type ClickKind string

const (
	CLICK_IN  ClickKind = "in"
	CLICK_OUT ClickKind = "out"
)

// ClickSettings locates the click assets and their load-time reduction.
type ClickSettings struct {
	Dir         string
	InFile      string
	OutFile     string
	ReductionDB float64
}

// NewClickSettings returns the default asset location and reduction.
func NewClickSettings() ClickSettings {
	return ClickSettings{
		Dir:         DEFAULT_CLICK_DIR,
		InFile:      DEFAULT_CLICK_IN_FILE,
		OutFile:     DEFAULT_CLICK_OUT_FILE,
		ReductionDB: DEFAULT_CLICK_REDUCTION_DB,
	}
}

// Path returns the file a click kind is loaded from.
func (s ClickSettings) Path(kind ClickKind) string {
	if kind == CLICK_IN {
		return filepath.Join(s.Dir, s.InFile)
	}

	return filepath.Join(s.Dir, s.OutFile)
}

type clickSlot struct {
	once   sync.Once
	buffer audio.Buffer
	err    error
}

// ClickCache loads each click asset at most once and shares the result,
// including a load failure, with every caller for its lifetime.
type ClickCache struct {
	loader   audio.Loader
	settings ClickSettings
	in       clickSlot
	out      clickSlot
}

// NewClickCache returns an empty cache; nothing is read until Get.
func NewClickCache(loader audio.Loader, settings ClickSettings) *ClickCache {
	return &ClickCache{loader: loader, settings: settings}
}

// Get returns the volume-reduced click for kind.
func (c *ClickCache) Get(kind ClickKind) (audio.Buffer, error) {
	slot := &c.out
	if kind == CLICK_IN {
		slot = &c.in
	}

	slot.once.Do(func() {
		path := c.settings.Path(kind)

		buf, err := c.loader.LoadAudioFile(path)
		if err != nil {
			slot.err = fmt.Errorf("failed to load %s click %s: %w", kind, path, err)

			return
		}

		if buf.IsEmpty() {
			slot.err = fmt.Errorf("%s click %s: %w", kind, path, audio.ErrEmptyAudio)

			return
		}

		slot.buffer = buf.Gain(-c.settings.ReductionDB)
	})

	return slot.buffer, slot.err
}

// Clicks is the pair of click buffers a single clip is framed with.
type Clicks struct {
	In  *audio.Buffer
	Out *audio.Buffer
}

// ForConfig fetches the clicks cfg enables. A missing asset is an error.
func (c *ClickCache) ForConfig(cfg ResolvedConfig) (Clicks, error) {
	var clicks Clicks

	if cfg.ClickIn {
		buf, err := c.Get(CLICK_IN)
		if err != nil {
			return Clicks{}, err
		}

		clicks.In = &buf
	}

	if cfg.ClickOut {
		buf, err := c.Get(CLICK_OUT)
		if err != nil {
			return Clicks{}, err
		}

		clicks.Out = &buf
	}

	return clicks, nil
}
