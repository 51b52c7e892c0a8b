package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/transform"
)

// Config keys.
const (
	KeyDatasetRoot   = "dataset.root"
	KeyKeepValid     = "dataset.keep_valid"
	KeyAngles        = "dataset.angles"
	KeyWorkers       = "dataset.workers"
	KeyJPEGQuality   = "dataset.jpeg_quality"
	KeyBoxPolicy     = "dataset.box_policy"
	KeyManifestPath  = "manifest.path"
	KeyManifestTrain = "manifest.train"
	KeyManifestVal   = "manifest.val"
	KeyDatabasePath  = "database.path"
	KeyLogLevel      = "logging.level"
	KeyLogFormat     = "logging.format"
)

// Config holds every pipeline setting after defaults and path expansion.
type Config struct {
	DatasetRoot   string
	ManifestPath  string
	ManifestTrain string
	ManifestVal   string
	DatabasePath  string
	LogLevel      string
	LogFormat     string
	Angles        []float64
	KeepValid     int
	Workers       int
	JPEGQuality   int
	BoxPolicy     transform.BoxPolicy
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatasetRoot, "$HOME/.local/share/piece-dataset/dataset")
	v.SetDefault(KeyKeepValid, 2)
	v.SetDefault(KeyAngles, []float64{45, 90, 135, 180, 270})
	v.SetDefault(KeyWorkers, runtime.NumCPU())
	v.SetDefault(KeyJPEGQuality, 95)
	v.SetDefault(KeyBoxPolicy, transform.PolicyClip.String())
	v.SetDefault(KeyManifestPath, "")
	v.SetDefault(KeyManifestTrain, "")
	v.SetDefault(KeyManifestVal, "")
	v.SetDefault(KeyDatabasePath, "$HOME/.local/share/piece-dataset/pieces.db")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Default returns the configuration used when nothing is set.
func Default() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	return Load(v)
}

// Load reads the configuration from v. Missing keys fall back to the
// defaults registered by SetDefaults.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaultsIfMissing(v)

	policy, err := transform.ParseBoxPolicy(v.GetString(KeyBoxPolicy))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", KeyBoxPolicy, err)
	}

	angles, err := floatSlice(v.Get(KeyAngles))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", KeyAngles, err)
	}

	cfg := &Config{
		DatasetRoot:   ExpandPath(v.GetString(KeyDatasetRoot)),
		ManifestPath:  ExpandPath(v.GetString(KeyManifestPath)),
		ManifestTrain: ExpandPath(v.GetString(KeyManifestTrain)),
		ManifestVal:   ExpandPath(v.GetString(KeyManifestVal)),
		DatabasePath:  ExpandPath(v.GetString(KeyDatabasePath)),
		LogLevel:      v.GetString(KeyLogLevel),
		LogFormat:     v.GetString(KeyLogFormat),
		Angles:        angles,
		KeepValid:     v.GetInt(KeyKeepValid),
		Workers:       v.GetInt(KeyWorkers),
		JPEGQuality:   v.GetInt(KeyJPEGQuality),
		BoxPolicy:     policy,
	}

	if cfg.ManifestPath == "" {
		cfg.ManifestPath = filepath.Join(cfg.DatasetRoot, "data.yaml")
	}
	if cfg.ManifestTrain == "" {
		cfg.ManifestTrain = filepath.Join(cfg.DatasetRoot, "images", "train")
	}
	if cfg.ManifestVal == "" {
		cfg.ManifestVal = filepath.Join(cfg.DatasetRoot, "images", "valid")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaultsIfMissing registers defaults only for keys v knows nothing
// about, so a caller-supplied default is never overridden.
func SetDefaultsIfMissing(v *viper.Viper) {
	defaults := viper.New()
	SetDefaults(defaults)
	for _, key := range defaults.AllKeys() {
		if !v.IsSet(key) {
			v.SetDefault(key, defaults.Get(key))
		}
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.DatasetRoot == "" {
		errs = append(errs, fmt.Errorf("%s must be set", KeyDatasetRoot))
	}
	if c.KeepValid < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative, got %d", KeyKeepValid, c.KeepValid))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("%s must be in 1..100, got %d", KeyJPEGQuality, c.JPEGQuality))
	}
	if _, err := common.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid log format: %s", c.LogFormat))
	}
	if len(errs) > 0 {
		return common.InvalidPrecondition("config", "%v", errors.Join(errs...))
	}
	return nil
}

// Specs returns the transforms configured for augmentation.
func (c *Config) Specs() []transform.Spec {
	return transform.DefaultSpecs(c.Angles)
}

func floatSlice(v any) ([]float64, error) {
	switch vals := v.(type) {
	case nil:
		return nil, nil
	case []float64:
		return vals, nil
	case []int:
		out := make([]float64, len(vals))
		for i, n := range vals {
			out[i] = float64(n)
		}
		return out, nil
	case []any:
		out := make([]float64, len(vals))
		for i, item := range vals {
			switch n := item.(type) {
			case int:
				out[i] = float64(n)
			case int64:
				out[i] = float64(n)
			case float64:
				out[i] = n
			default:
				return nil, fmt.Errorf("angle %v is not a number", item)
			}
		}
		return out, nil
	case []string:
		out := make([]float64, len(vals))
		for i, s := range vals {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("angle %q is not a number", s)
			}
			out[i] = f
		}
		return out, nil
	case string:
		// Environment variables arrive as "45,90 135".
		return floatSlice(strings.FieldsFunc(vals, func(r rune) bool { return r == ',' || r == ' ' }))
	default:
		return nil, fmt.Errorf("unsupported angle list %T", v)
	}
}
