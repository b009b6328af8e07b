package config

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/emotion-analyzer/pkg/app"
	"github.com/menta2k/emotion-analyzer/pkg/emotion"
	"github.com/menta2k/emotion-analyzer/pkg/render"
	"github.com/menta2k/emotion-analyzer/pkg/types"
	"github.com/menta2k/emotion-analyzer/pkg/vision"
)

// Config holds the application configuration. It is built once at startup
// and components receive copies of the parts they need.
type Config struct {
	Models    ModelPaths        `mapstructure:"models" yaml:"models"`
	Emotion   EmotionSettings   `mapstructure:"emotion" yaml:"emotion"`
	Detection DetectionSettings `mapstructure:"detection" yaml:"detection"`
	Display   DisplaySettings   `mapstructure:"display" yaml:"display"`
	Colors    ColorSettings     `mapstructure:"colors" yaml:"colors"`
	Output    OutputSettings    `mapstructure:"output" yaml:"output"`
	Logging   LoggingSettings   `mapstructure:"logging" yaml:"logging"`
}

// ModelPaths locates the model files
type ModelPaths struct {
	FaceCascade     string `mapstructure:"face_cascade" yaml:"face_cascade"`
	EmotionModel    string `mapstructure:"emotion_model" yaml:"emotion_model"`
	EmotionMetadata string `mapstructure:"emotion_metadata" yaml:"emotion_metadata"`
	RequireMetadata bool   `mapstructure:"require_metadata" yaml:"require_metadata"`
}

// EmotionSettings describes the emotion model input and output
type EmotionSettings struct {
	// Labels must follow the model output order
	Labels          []string `mapstructure:"labels" yaml:"labels"`
	InputWidth      int      `mapstructure:"input_width" yaml:"input_width"`
	InputHeight     int      `mapstructure:"input_height" yaml:"input_height"`
	Channels        int      `mapstructure:"channels" yaml:"channels"`
	// Layout is the model input dimension order: nhwc (Keras) or nchw
	Layout          string   `mapstructure:"layout" yaml:"layout"`
	DummyConfidence float64  `mapstructure:"dummy_confidence" yaml:"dummy_confidence"`
}

// DetectionSettings tunes the face cascade
type DetectionSettings struct {
	ScaleFactor  float64 `mapstructure:"scale_factor" yaml:"scale_factor"`
	MinNeighbors int     `mapstructure:"min_neighbors" yaml:"min_neighbors"`
	MinWidth     int     `mapstructure:"min_width" yaml:"min_width"`
	MinHeight    int     `mapstructure:"min_height" yaml:"min_height"`
}

// DisplaySettings holds the live window options
type DisplaySettings struct {
	WebcamIndex   int     `mapstructure:"webcam_index" yaml:"webcam_index"`
	WindowName    string  `mapstructure:"window_name" yaml:"window_name"`
	Mirror        bool    `mapstructure:"mirror" yaml:"mirror"`
	QuitKey       string  `mapstructure:"quit_key" yaml:"quit_key"`
	WaitDelay     int     `mapstructure:"wait_delay" yaml:"wait_delay"`
	FontScale     float64 `mapstructure:"font_scale" yaml:"font_scale"`
	FontThickness int     `mapstructure:"font_thickness" yaml:"font_thickness"`
	BoxThickness  int     `mapstructure:"box_thickness" yaml:"box_thickness"`
	LabelOffset   int     `mapstructure:"label_offset" yaml:"label_offset"`
}

// ColorSettings holds RGB triples. Label keys are matched case-insensitively.
type ColorSettings struct {
	Box     []int            `mapstructure:"box" yaml:"box"`
	Default []int            `mapstructure:"default" yaml:"default"`
	Labels  map[string][]int `mapstructure:"labels" yaml:"labels"`
}

// OutputSettings holds configuration for annotated still images
type OutputSettings struct {
	Dir      string `mapstructure:"dir" yaml:"dir"`
	Format   string `mapstructure:"format" yaml:"format"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
	Suffix   string `mapstructure:"suffix" yaml:"suffix"`
	Quality  int    `mapstructure:"quality" yaml:"quality"`
	Lossless bool   `mapstructure:"lossless" yaml:"lossless"`
}

// LoggingSettings selects the log level and format (text or json)
type LoggingSettings struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Models: ModelPaths{
			FaceCascade:  filepath.Join("models", "haarcascade_frontalface_default.xml"),
			EmotionModel: filepath.Join("models", "em_recog.onnx"),
		},
		Emotion: EmotionSettings{
			Labels:          append([]string(nil), emotion.DefaultLabels...),
			InputWidth:      48,
			InputHeight:     48,
			Channels:        1,
			Layout:          string(emotion.LayoutNHWC),
			DummyConfidence: emotion.DefaultDummyConfidence,
		},
		Detection: DetectionSettings{
			ScaleFactor:  1.1,
			MinNeighbors: 5,
			MinWidth:     80,
			MinHeight:    80,
		},
		Display: DisplaySettings{
			WebcamIndex:   0,
			WindowName:    "Emotion Analyzer",
			Mirror:        true,
			QuitKey:       "q",
			WaitDelay:     1,
			FontScale:     0.9,
			FontThickness: 2,
			BoxThickness:  2,
			LabelOffset:   10,
		},
		Colors: ColorSettings{
			Box:     []int{0, 0, 255},
			Default: []int{255, 255, 255},
			// lowercase keys, viper lowercases the keys it reads
			Labels: map[string][]int{
				"happy":    {0, 255, 0},
				"sad":      {0, 0, 255},
				"angry":    {255, 0, 0},
				"surprise": {255, 255, 0},
				"fear":     {128, 0, 128},
				"disgust":  {255, 165, 0},
				"neutral":  {0, 255, 255},
				"error":    {255, 255, 255},
			},
		},
		Output: OutputSettings{
			Dir:     "./output",
			Format:  "jpg",
			Suffix:  "_emotions",
			Quality: 85,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile reads a YAML, JSON or TOML file over the defaults.
// Keys missing from the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filename)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", filename)
	}

	cfg := Default()
	// lists replace the defaults instead of merging element-wise
	if v.IsSet("emotion.labels") {
		cfg.Emotion.Labels = nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	return cfg, nil
}

// Dump returns the configuration as YAML
func (c *Config) Dump() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	return data, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := c.Dump()
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Models.FaceCascade == "" {
		return errors.New("models.face_cascade cannot be empty")
	}

	if len(c.Emotion.Labels) == 0 {
		return errors.New("emotion.labels cannot be empty")
	}

	seen := make(map[string]bool, len(c.Emotion.Labels))
	for _, label := range c.Emotion.Labels {
		if label == "" {
			return errors.New("emotion.labels cannot contain an empty label")
		}
		if strings.EqualFold(label, types.ErrorLabel) {
			return errors.Errorf("emotion.labels: %q is reserved", label)
		}
		key := strings.ToLower(label)
		if seen[key] {
			return errors.Errorf("emotion.labels: duplicate label %q", label)
		}
		seen[key] = true
	}

	if c.Emotion.InputWidth < 1 || c.Emotion.InputHeight < 1 {
		return errors.New("emotion input size must be positive")
	}

	if c.Emotion.Channels != 1 {
		return errors.New("emotion.channels must be 1")
	}

	switch emotion.Layout(strings.ToLower(c.Emotion.Layout)) {
	case emotion.LayoutNHWC, emotion.LayoutNCHW:
	default:
		return errors.Errorf("emotion.layout %q must be nhwc or nchw", c.Emotion.Layout)
	}

	if c.Emotion.DummyConfidence < 0 || c.Emotion.DummyConfidence > 1 {
		return errors.New("emotion.dummy_confidence must be between 0 and 1")
	}

	if c.Detection.ScaleFactor <= 1 {
		return errors.New("detection.scale_factor must be greater than 1")
	}

	if c.Detection.MinNeighbors < 0 {
		return errors.New("detection.min_neighbors cannot be negative")
	}

	if c.Detection.MinWidth < 1 || c.Detection.MinHeight < 1 {
		return errors.New("detection minimum face size must be positive")
	}

	if c.Display.WebcamIndex < 0 {
		return errors.New("display.webcam_index cannot be negative")
	}

	// key codes are compared on their low byte
	if len(c.Display.QuitKey) != 1 || c.Display.QuitKey[0] < 0x20 || c.Display.QuitKey[0] > 0x7e {
		return errors.New("display.quit_key must be a single printable ASCII character")
	}

	// a non-positive delay blocks WaitKey until a key is pressed
	if c.Display.WaitDelay < 1 {
		return errors.New("display.wait_delay must be at least 1 ms")
	}

	if err := validateRGB("colors.box", c.Colors.Box); err != nil {
		return err
	}
	if err := validateRGB("colors.default", c.Colors.Default); err != nil {
		return err
	}
	for label, rgb := range c.Colors.Labels {
		if err := validateRGB("colors.labels."+label, rgb); err != nil {
			return err
		}
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return errors.New("output.quality must be between 1 and 100")
	}

	switch strings.ToLower(c.Output.Format) {
	case "jpg", "jpeg", "png", "webp":
	default:
		return errors.Errorf("output.format %q is not supported", c.Output.Format)
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, "logging.level")
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return errors.New("logging.format must be text or json")
	}

	return nil
}

func validateRGB(name string, rgb []int) error {
	if len(rgb) != 3 {
		return errors.Errorf("%s must have 3 components", name)
	}
	for _, v := range rgb {
		if v < 0 || v > 255 {
			return errors.Errorf("%s components must be between 0 and 255", name)
		}
	}
	return nil
}

// ClassifierConfig returns the emotion classifier configuration
func (c *Config) ClassifierConfig() emotion.Config {
	return emotion.Config{
		ModelPath:       c.Models.EmotionModel,
		MetadataPath:    c.Models.EmotionMetadata,
		RequireMetadata: c.Models.RequireMetadata,
		Labels:          append([]string(nil), c.Emotion.Labels...),
		InputWidth:      c.Emotion.InputWidth,
		InputHeight:     c.Emotion.InputHeight,
		Channels:        c.Emotion.Channels,
		Layout:          emotion.Layout(strings.ToLower(c.Emotion.Layout)),
		DummyConfidence: c.Emotion.DummyConfidence,
	}
}

// LocatorParams returns the face detection tuning
func (c *Config) LocatorParams() vision.LocatorParams {
	return vision.LocatorParams{
		ScaleFactor:  c.Detection.ScaleFactor,
		MinNeighbors: c.Detection.MinNeighbors,
		MinSize:      image.Pt(c.Detection.MinWidth, c.Detection.MinHeight),
	}
}

// RenderStyle returns the annotation style
func (c *Config) RenderStyle() render.Style {
	colors := make(map[string]color.RGBA, len(c.Colors.Labels))
	for label, rgb := range c.Colors.Labels {
		colors[label] = toRGBA(rgb)
	}

	return render.Style{
		Palette:       render.NewPalette(colors),
		BoxColor:      toRGBA(c.Colors.Box),
		DefaultColor:  toRGBA(c.Colors.Default),
		BoxThickness:  c.Display.BoxThickness,
		FontScale:     c.Display.FontScale,
		FontThickness: c.Display.FontThickness,
		LabelOffset:   c.Display.LabelOffset,
	}
}

// LoopOptions returns the live loop options
func (c *Config) LoopOptions() app.Options {
	quit := 'q'
	if r := []rune(c.Display.QuitKey); len(r) > 0 {
		quit = r[0]
	}

	return app.Options{
		Mirror:    c.Display.Mirror,
		QuitKey:   quit,
		WaitDelay: c.Display.WaitDelay,
		Style:     c.RenderStyle(),
	}
}

func toRGBA(rgb []int) color.RGBA {
	if len(rgb) != 3 {
		return color.RGBA{255, 255, 255, 255}
	}
	return color.RGBA{uint8(rgb[0]), uint8(rgb[1]), uint8(rgb[2]), 255}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "emotion-analyzer", "config.yaml")
}
