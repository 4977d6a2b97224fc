package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	// ConfigPathEnvVar points at an alternate .env file when no .env sits
	// next to the executable.
	ConfigPathEnvVar = "WINDOW_OVERLAY_CONFIG"

	tomlFileName = "overlay.toml"

	BackendFramePool     = "framepool"
	BackendSharedSurface = "sharedsurface"
)

// Config is the engine configuration. Sources in priority order:
// process environment > .env next to the executable (or ConfigPathEnvVar) >
// overlay.toml next to the executable > defaults.
type Config struct {
	// KeyColor is the chroma key, three channels in 0..1.
	KeyColor [3]float32
	// OpaqueAlpha is written for non-key pixels, 0..1.
	OpaqueAlpha float32
	// TransparentAlpha is written for key pixels; 0 is fully see-through.
	TransparentAlpha float32
	// OverlayWidthMeters is the physical width of the quad; height follows
	// the capture aspect ratio.
	OverlayWidthMeters float32
	// CursorMarginPx expands the hit-test area around the quad.
	CursorMarginPx int
	// ProcessPath is the overlay helper executable to spawn.
	ProcessPath string
	// WindowTitle optionally disambiguates window discovery by title.
	WindowTitle string
	// Backend selects the capture strategy.
	Backend string
	// CaptureFPS is the frame-pool sampling rate.
	CaptureFPS int
	// Interactive enables cursor hit-testing against the overlay.
	Interactive bool
	// IPDOverrideEnabled enables the forced eye-separation variant.
	IPDOverrideEnabled bool
	// ForcedIPDMeters is the synthetic separation when the override is on.
	ForcedIPDMeters float32
	// Bypass disables the engine entirely; EndFrame becomes a pass-through.
	Bypass bool
	// EnableFileLogging writes logs to a rotating file instead of stderr.
	EnableFileLogging bool
}

// tomlConfig mirrors Config for overlay.toml decoding. Pointer fields tell
// "absent" apart from zero values.
type tomlConfig struct {
	KeyColor           string   `toml:"key_color"`
	OpaqueAlpha        *float32 `toml:"opaque_alpha"`
	TransparentAlpha   *float32 `toml:"transparent_alpha"`
	OverlayWidthMeters *float32 `toml:"overlay_width_meters"`
	CursorMarginPx     *int     `toml:"cursor_margin_px"`
	ProcessPath        string   `toml:"process_path"`
	WindowTitle        string   `toml:"window_title"`
	Backend            string   `toml:"backend"`
	CaptureFPS         *int     `toml:"capture_fps"`
	Interactive        *bool    `toml:"interactive"`
	IPDOverride        *bool    `toml:"ipd_override"`
	ForcedIPDMeters    *float32 `toml:"forced_ipd_meters"`
	Bypass             *bool    `toml:"bypass"`
	EnableFileLogging  *bool    `toml:"enable_file_logging"`
}

func defaults() *Config {
	return &Config{
		KeyColor:           [3]float32{1, 0, 1}, // magenta
		OpaqueAlpha:        1,
		TransparentAlpha:   0,
		OverlayWidthMeters: 1,
		CursorMarginPx:     16,
		ProcessPath:        "OverlayWindow.exe",
		Backend:            BackendFramePool,
		CaptureFPS:         60,
		ForcedIPDMeters:    0.063,
	}
}

// Load resolves the configuration from overlay.toml, .env and the process
// environment.
func Load() (*Config, error) {
	cfg := defaults()

	if err := applyTOML(cfg, filepath.Join(executableDir(), tomlFileName)); err != nil {
		return nil, err
	}

	// godotenv does not override variables already set in the environment,
	// which is exactly the priority order we want.
	if p := resolveEnvPath(); p != "" {
		_ = godotenv.Load(p)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.OverlayWidthMeters <= 0 {
		return fmt.Errorf("config: overlay width must be positive, got %v", c.OverlayWidthMeters)
	}
	if c.Backend != BackendFramePool && c.Backend != BackendSharedSurface {
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.CaptureFPS <= 0 {
		return fmt.Errorf("config: capture fps must be positive, got %d", c.CaptureFPS)
	}
	for i, ch := range c.KeyColor {
		if ch < 0 || ch > 1 {
			return fmt.Errorf("config: key color channel %d out of range: %v", i, ch)
		}
	}
	for name, a := range map[string]float32{"opaque": c.OpaqueAlpha, "transparent": c.TransparentAlpha} {
		if a < 0 || a > 1 {
			return fmt.Errorf("config: %s alpha out of range: %v", name, a)
		}
	}
	return nil
}

func applyTOML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil // optional file
	}
	var tc tomlConfig
	if err := toml.Unmarshal(data, &tc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if tc.KeyColor != "" {
		kc, err := ParseColor(tc.KeyColor)
		if err != nil {
			return err
		}
		cfg.KeyColor = kc
	}
	if tc.OpaqueAlpha != nil {
		cfg.OpaqueAlpha = *tc.OpaqueAlpha
	}
	if tc.TransparentAlpha != nil {
		cfg.TransparentAlpha = *tc.TransparentAlpha
	}
	if tc.OverlayWidthMeters != nil {
		cfg.OverlayWidthMeters = *tc.OverlayWidthMeters
	}
	if tc.CursorMarginPx != nil {
		cfg.CursorMarginPx = *tc.CursorMarginPx
	}
	if tc.ProcessPath != "" {
		cfg.ProcessPath = tc.ProcessPath
	}
	if tc.WindowTitle != "" {
		cfg.WindowTitle = tc.WindowTitle
	}
	if tc.Backend != "" {
		cfg.Backend = strings.ToLower(tc.Backend)
	}
	if tc.CaptureFPS != nil {
		cfg.CaptureFPS = *tc.CaptureFPS
	}
	if tc.Interactive != nil {
		cfg.Interactive = *tc.Interactive
	}
	if tc.IPDOverride != nil {
		cfg.IPDOverrideEnabled = *tc.IPDOverride
	}
	if tc.ForcedIPDMeters != nil {
		cfg.ForcedIPDMeters = *tc.ForcedIPDMeters
	}
	if tc.Bypass != nil {
		cfg.Bypass = *tc.Bypass
	}
	if tc.EnableFileLogging != nil {
		cfg.EnableFileLogging = *tc.EnableFileLogging
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("KEY_COLOR"); v != "" {
		kc, err := ParseColor(v)
		if err != nil {
			return err
		}
		cfg.KeyColor = kc
	}
	var err error
	if cfg.OpaqueAlpha, err = envFloat("OPAQUE_ALPHA", cfg.OpaqueAlpha); err != nil {
		return err
	}
	if cfg.TransparentAlpha, err = envFloat("TRANSPARENT_ALPHA", cfg.TransparentAlpha); err != nil {
		return err
	}
	if cfg.OverlayWidthMeters, err = envFloat("OVERLAY_WIDTH_METERS", cfg.OverlayWidthMeters); err != nil {
		return err
	}
	if cfg.ForcedIPDMeters, err = envFloat("FORCED_IPD_METERS", cfg.ForcedIPDMeters); err != nil {
		return err
	}
	if cfg.CursorMarginPx, err = envInt("CURSOR_MARGIN_PX", cfg.CursorMarginPx); err != nil {
		return err
	}
	if cfg.CaptureFPS, err = envInt("CAPTURE_FPS", cfg.CaptureFPS); err != nil {
		return err
	}
	if v := os.Getenv("PROCESS_PATH"); v != "" {
		cfg.ProcessPath = v
	}
	if v := os.Getenv("WINDOW_TITLE"); v != "" {
		cfg.WindowTitle = v
	}
	if v := os.Getenv("CAPTURE_BACKEND"); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	cfg.Interactive = envBool("INTERACTIVE", cfg.Interactive)
	cfg.IPDOverrideEnabled = envBool("IPD_OVERRIDE", cfg.IPDOverrideEnabled)
	cfg.Bypass = envBool("BYPASS", cfg.Bypass)
	cfg.EnableFileLogging = envBool("ENABLE_FILE_LOGGING", cfg.EnableFileLogging)
	return nil
}

func envFloat(name string, def float32) (float32, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	return float32(f), nil
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	return n, nil
}

func envBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return strings.ToLower(v) == "true" || v == "1"
}

// ParseColor parses "r,g,b" with channels in 0..1, or in 0..255 when any
// channel exceeds 1 (both spellings appear in the wild for chroma keys).
func ParseColor(s string) ([3]float32, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return [3]float32{}, fmt.Errorf("config: color %q: want r,g,b", s)
	}
	var out [3]float32
	max := float32(0)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return [3]float32{}, fmt.Errorf("config: color %q: %w", s, err)
		}
		out[i] = float32(f)
		if out[i] > max {
			max = out[i]
		}
	}
	if max > 1 {
		for i := range out {
			out[i] /= 255
		}
	}
	for i, ch := range out {
		if ch < 0 || ch > 1 {
			return [3]float32{}, fmt.Errorf("config: color %q: channel %d out of range", s, i)
		}
	}
	return out, nil
}

func resolveEnvPath() string {
	if exe, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(exe), ".env")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
