package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/window"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSettings is returned when a settings file holds a value the engine cannot use.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings configures the window and renderer an engine creates.
// Width and Height of 0 keep the window defaults; TargetFPS of 0 means no preference.
type Settings struct {
	Driver           string  `yaml:"driver" toml:"driver"`
	Width            int     `yaml:"width" toml:"width"`
	Height           int     `yaml:"height" toml:"height"`
	SampleCount      uint32  `yaml:"sample_count" toml:"sample_count"`
	TextureFiltering string  `yaml:"texture_filtering" toml:"texture_filtering"`
	Resizable        bool    `yaml:"resizable" toml:"resizable"`
	Fullscreen       bool    `yaml:"fullscreen" toml:"fullscreen"`
	TargetFPS        float32 `yaml:"target_fps" toml:"target_fps"`
	VerticalSync     bool    `yaml:"vertical_sync" toml:"vertical_sync"`
	Title            string  `yaml:"title" toml:"title"`
	// ClearColor is packed as 0xRRGGBBAA.
	ClearColor uint32  `yaml:"clear_color" toml:"clear_color"`
	TickRate   float64 `yaml:"tick_rate" toml:"tick_rate"`
	Profiling  bool    `yaml:"profiling" toml:"profiling"`
}

// filteringNames maps settings file names to texture filtering modes.
var filteringNames = map[string]renderer.TextureFiltering{
	"none":      renderer.TextureFilteringNone,
	"linear":    renderer.TextureFilteringLinear,
	"bilinear":  renderer.TextureFilteringBilinear,
	"trilinear": renderer.TextureFilteringTrilinear,
}

var driverNames = map[string]bool{
	renderer.BackendDefault:    true,
	renderer.BackendEmpty:      true,
	renderer.BackendOpenGL:     true,
	renderer.BackendDirect3D11: true,
	renderer.BackendMetal:      true,
	renderer.BackendWGPU:       true,
}

// DefaultSettings returns the settings used when no file overrides them.
//
// Returns:
//   - Settings: default driver, one sample, no filtering, vsync on, 60Hz ticks, black clear color
func DefaultSettings() Settings {
	return Settings{
		Driver:           renderer.BackendDefault,
		SampleCount:      1,
		TextureFiltering: "none",
		VerticalSync:     true,
		Title:            "oxy-gfx",
		ClearColor:       0x000000ff,
		TickRate:         60,
	}
}

// LoadSettings reads settings from a YAML (.yaml, .yml) or TOML (.toml) file.
// Keys missing from the file keep their DefaultSettings value.
//
// Parameters:
//   - path: the settings file
//
// Returns:
//   - Settings: the merged settings
//   - error: error if the file cannot be read, parsed or validated
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	s, err := ParseSettings(data, filepath.Ext(path))
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	common.Logger().Info("loaded settings", "path", path, "driver", s.Driver)
	return s, nil
}

// ParseSettings decodes settings data in the format named by a file extension.
//
// Parameters:
//   - data: the encoded settings
//   - ext: ".yaml", ".yml" or ".toml"
//
// Returns:
//   - Settings: the merged settings
//   - error: error if the format is unknown, the data does not parse or a value is invalid
func ParseSettings(data []byte, ext string) (Settings, error) {
	s := DefaultSettings()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("failed to parse yaml settings: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("failed to parse toml settings: %w", err)
		}
	default:
		return Settings{}, fmt.Errorf("%w: unknown settings format %q", ErrInvalidSettings, ext)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the driver, filtering mode, size and sample count.
//
// Returns:
//   - error: ErrInvalidSettings describing the first bad value, or nil
func (s Settings) Validate() error {
	if s.Driver != "" && !driverNames[strings.ToLower(s.Driver)] {
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidSettings, s.Driver)
	}
	if _, ok := filteringNames[strings.ToLower(s.TextureFiltering)]; !ok {
		return fmt.Errorf("%w: unknown texture filtering %q", ErrInvalidSettings, s.TextureFiltering)
	}
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrInvalidSettings, s.Width, s.Height)
	}
	if s.SampleCount == 0 {
		return fmt.Errorf("%w: sample count must be at least 1", ErrInvalidSettings)
	}
	return nil
}

// Filtering returns the texture filtering mode, or TextureFilteringNone for an unknown name.
//
// Returns:
//   - renderer.TextureFiltering: the filtering mode
func (s Settings) Filtering() renderer.TextureFiltering {
	return filteringNames[strings.ToLower(s.TextureFiltering)]
}

// RendererOptions converts the settings into renderer builder options.
//
// Returns:
//   - []renderer.RendererBuilderOption: options for renderer.NewRenderer
func (s Settings) RendererOptions() []renderer.RendererBuilderOption {
	return []renderer.RendererBuilderOption{
		renderer.WithBackend(strings.ToLower(common.Coalesce(s.Driver, renderer.BackendDefault))),
		renderer.WithSampleCount(max(s.SampleCount, 1)),
		renderer.WithTextureFiltering(s.Filtering()),
		renderer.WithTargetFPS(s.TargetFPS),
		renderer.WithVerticalSync(s.VerticalSync),
		renderer.WithClearColor(common.NewColor(s.ClearColor)),
	}
}

// WindowOptions converts the settings into window builder options.
// The OpenGL context flag is left to the engine, which knows which backend the default driver resolved to.
//
// Returns:
//   - []window.WindowBuilderOption: options for window.NewWindow
func (s Settings) WindowOptions() []window.WindowBuilderOption {
	options := []window.WindowBuilderOption{
		window.WithTitle(common.Coalesce(s.Title, "oxy-gfx")),
		window.WithResizable(s.Resizable),
		window.WithFullscreen(s.Fullscreen),
	}
	if s.Width > 0 {
		options = append(options, window.WithWidth(s.Width))
	}
	if s.Height > 0 {
		options = append(options, window.WithHeight(s.Height))
	}
	return options
}
