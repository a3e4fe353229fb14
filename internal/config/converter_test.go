package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/lidar-samples/internal/lidar/l2scans"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConverterConfig_Defaults(t *testing.T) {
	cfg, err := LoadConverterConfig(filepath.Join("..", "..", DefaultConfigPath))
	if err != nil {
		t.Fatalf("LoadConverterConfig: %v", err)
	}
	target, err := cfg.ScanConfig().TargetPointsPerChannel()
	if err != nil {
		t.Fatalf("TargetPointsPerChannel: %v", err)
	}
	if target != 2000 {
		t.Errorf("target = %d, want 2000", target)
	}
	if got := cfg.GetLidarName(); got != "Lidar32" {
		t.Errorf("GetLidarName() = %q, want Lidar32", got)
	}
}

func TestLoadConverterConfig_PartialFile(t *testing.T) {
	path := writeConfig(t, "partial.json", `{"channel_count": 16, "output_dir": "out"}`)
	cfg, err := LoadConverterConfig(path)
	if err != nil {
		t.Fatalf("LoadConverterConfig: %v", err)
	}
	if cfg.GetChannelCount() != 16 {
		t.Errorf("GetChannelCount() = %d, want 16", cfg.GetChannelCount())
	}
	if cfg.GetPointsPerSecond() != DefaultPointsPerSecond {
		t.Errorf("GetPointsPerSecond() = %d, want default", cfg.GetPointsPerSecond())
	}
	if cfg.GetOutputDir() != "out" {
		t.Errorf("GetOutputDir() = %q, want out", cfg.GetOutputDir())
	}
	if cfg.GetCatalogPath() != "" {
		t.Errorf("GetCatalogPath() = %q, want empty", cfg.GetCatalogPath())
	}
}

func TestLoadConverterConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "cfg.json", `{"channel_count":`, "parse config JSON"},
		{"non-integral target", "cfg.json", `{"points_per_second": 100000}`, "invalid configuration"},
		{"zero channels", "cfg.json", `{"channel_count": 0}`, "invalid configuration"},
		{"negative prefetch", "cfg.json", `{"prefetch": -1}`, "prefetch"},
		{"empty lidar name", "cfg.json", `{"lidar_name": ""}`, "lidar_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConverterConfig(writeConfig(t, tt.file, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConverterConfig_TooLarge(t *testing.T) {
	body := `{"input_dirs": ["` + strings.Repeat("a", 1024*1024) + `"]}`
	_, err := LoadConverterConfig(writeConfig(t, "big.json", body))
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestConverterConfig_ValidateReportsConfigurationError(t *testing.T) {
	cfg := EmptyConverterConfig()
	cfg.RevolutionFrequency = ptrFloat64(0)
	err := cfg.Validate()
	if !errors.Is(err, l2scans.ErrConfiguration) {
		t.Fatalf("Validate() = %v, want ErrConfiguration", err)
	}
}

func TestConverterConfig_Apply(t *testing.T) {
	cfg := EmptyConverterConfig()
	cfg.OutputDir = ptrString("from_file")
	cfg.InputDirs = []string{"a"}

	cfg.Apply(Overrides{
		RevolutionFrequency: 20,
		StrictChannelCounts: true,
		InputDirs:           []string{"b", "c"},
		StartIndex:          7,
	})

	if got := cfg.GetRevolutionFrequency(); got != 20 {
		t.Errorf("GetRevolutionFrequency() = %v, want 20", got)
	}
	if !cfg.GetStrictChannelCounts() {
		t.Error("GetStrictChannelCounts() = false, want true")
	}
	if got := cfg.GetOutputDir(); got != "from_file" {
		t.Errorf("GetOutputDir() = %q, zero override should keep file value", got)
	}
	if len(cfg.InputDirs) != 2 || cfg.InputDirs[0] != "b" {
		t.Errorf("InputDirs = %v, want [b c]", cfg.InputDirs)
	}
	if got := cfg.GetStartIndex(); got != 7 {
		t.Errorf("GetStartIndex() = %d, want 7", got)
	}
	// 640000 / 20 / 32 = 1000
	if target, err := cfg.ScanConfig().TargetPointsPerChannel(); err != nil || target != 1000 {
		t.Errorf("TargetPointsPerChannel() = %d, %v; want 1000", target, err)
	}
}
