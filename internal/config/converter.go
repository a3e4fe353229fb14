// Package config loads the converter configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/lidar-samples/internal/lidar/l2scans"
)

// DefaultConfigPath is the path to the example converter configuration.
const DefaultConfigPath = "config/converter.defaults.json"

// Defaults match the simulator's 32-channel sensor used for training data.
const (
	DefaultChannelCount        = 32
	DefaultPointsPerSecond     = 640000
	DefaultRevolutionFrequency = 10.0
	DefaultLidarName           = "Lidar32"
	DefaultOutputDir           = "_samples"
)

// ConverterConfig is the root configuration of a conversion run. Fields
// are pointers so that a partial file only overrides what it names; the
// Get* accessors supply defaults for the rest.
type ConverterConfig struct {
	// Sensor
	ChannelCount        *int     `json:"channel_count,omitempty"`
	PointsPerSecond     *int     `json:"points_per_second,omitempty"`
	RevolutionFrequency *float64 `json:"revolution_frequency,omitempty"`
	StrictChannelCounts *bool    `json:"strict_channel_counts,omitempty"`

	// Input
	LidarName *string  `json:"lidar_name,omitempty"`
	InputDirs []string `json:"input_dirs,omitempty"`
	Prefetch  *int     `json:"prefetch,omitempty"` // packets read ahead; 0 = synchronous

	// Output
	OutputDir   *string `json:"output_dir,omitempty"`
	CatalogPath *string `json:"catalog_path,omitempty"` // empty = no catalog
	StartIndex  *int    `json:"start_index,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConverterConfig returns a ConverterConfig with all fields unset.
func EmptyConverterConfig() *ConverterConfig {
	return &ConverterConfig{}
}

// LoadConverterConfig loads a ConverterConfig from a JSON file. The file
// must have a .json extension and be under 1MB.
func LoadConverterConfig(path string) (*ConverterConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConverterConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks field ranges and that the sensor parameters yield a
// whole number of points per channel per revolution.
func (c *ConverterConfig) Validate() error {
	if c.Prefetch != nil && *c.Prefetch < 0 {
		return fmt.Errorf("prefetch must be non-negative, got %d", *c.Prefetch)
	}
	if c.StartIndex != nil && *c.StartIndex < 0 {
		return fmt.Errorf("start_index must be non-negative, got %d", *c.StartIndex)
	}
	if c.LidarName != nil && *c.LidarName == "" {
		return fmt.Errorf("lidar_name must not be empty")
	}
	return c.ScanConfig().Validate()
}

// ScanConfig returns the sensor parameters used by the accumulator.
func (c *ConverterConfig) ScanConfig() l2scans.ScanConfig {
	return l2scans.ScanConfig{
		ChannelCount:        c.GetChannelCount(),
		PointsPerSecond:     c.GetPointsPerSecond(),
		RevolutionFrequency: c.GetRevolutionFrequency(),
		StrictChannelCounts: c.GetStrictChannelCounts(),
	}
}

// GetChannelCount returns channel_count or the default.
func (c *ConverterConfig) GetChannelCount() int {
	if c.ChannelCount == nil {
		return DefaultChannelCount
	}
	return *c.ChannelCount
}

// GetPointsPerSecond returns points_per_second or the default.
func (c *ConverterConfig) GetPointsPerSecond() int {
	if c.PointsPerSecond == nil {
		return DefaultPointsPerSecond
	}
	return *c.PointsPerSecond
}

// GetRevolutionFrequency returns revolution_frequency or the default.
func (c *ConverterConfig) GetRevolutionFrequency() float64 {
	if c.RevolutionFrequency == nil {
		return DefaultRevolutionFrequency
	}
	return *c.RevolutionFrequency
}

func (c *ConverterConfig) GetStrictChannelCounts() bool {
	if c.StrictChannelCounts == nil {
		return false
	}
	return *c.StrictChannelCounts
}

func (c *ConverterConfig) GetLidarName() string {
	if c.LidarName == nil {
		return DefaultLidarName
	}
	return *c.LidarName
}

func (c *ConverterConfig) GetPrefetch() int {
	if c.Prefetch == nil {
		return 0
	}
	return *c.Prefetch
}

func (c *ConverterConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return DefaultOutputDir
	}
	return *c.OutputDir
}

func (c *ConverterConfig) GetCatalogPath() string {
	if c.CatalogPath == nil {
		return ""
	}
	return *c.CatalogPath
}

func (c *ConverterConfig) GetStartIndex() int {
	if c.StartIndex == nil {
		return 0
	}
	return *c.StartIndex
}

// Overrides holds command-line values; zero values leave the file's
// setting alone.
type Overrides struct {
	ChannelCount        int
	PointsPerSecond     int
	RevolutionFrequency float64
	StrictChannelCounts bool
	LidarName           string
	InputDirs           []string
	Prefetch            int
	OutputDir           string
	CatalogPath         string
	StartIndex          int
}

// Apply copies every non-zero override into c.
func (c *ConverterConfig) Apply(o Overrides) {
	if o.ChannelCount != 0 {
		c.ChannelCount = ptrInt(o.ChannelCount)
	}
	if o.PointsPerSecond != 0 {
		c.PointsPerSecond = ptrInt(o.PointsPerSecond)
	}
	if o.RevolutionFrequency != 0 {
		c.RevolutionFrequency = ptrFloat64(o.RevolutionFrequency)
	}
	if o.StrictChannelCounts {
		c.StrictChannelCounts = ptrBool(true)
	}
	if o.LidarName != "" {
		c.LidarName = ptrString(o.LidarName)
	}
	if len(o.InputDirs) > 0 {
		c.InputDirs = o.InputDirs
	}
	if o.Prefetch != 0 {
		c.Prefetch = ptrInt(o.Prefetch)
	}
	if o.OutputDir != "" {
		c.OutputDir = ptrString(o.OutputDir)
	}
	if o.CatalogPath != "" {
		c.CatalogPath = ptrString(o.CatalogPath)
	}
	if o.StartIndex != 0 {
		c.StartIndex = ptrInt(o.StartIndex)
	}
}
