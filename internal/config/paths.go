package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths
type Paths struct {
	BaseDir    string
	DataDir    string
	InputDir   string
	ReportsDir string
	LogsDir    string

	// Well-known files
	ConfigFile     string
	BandConfigFile string
}

// GetPaths returns the application paths relative to the executable location
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	return NewPaths(filepath.Dir(exe)), nil
}

// NewPaths lays out the directory structure under base:
//
//	base/
//	  ├── configs/pixelqc.yaml
//	  ├── configuration.json  (bands and percentage)
//	  ├── data/
//	  │   ├── input/          (fine and secondary tables)
//	  │   └── reports/        (workbooks, scatter CSV, manifests)
//	  └── logs/
func NewPaths(base string) *Paths {
	dataDir := filepath.Join(base, DefaultDataDir)

	return &Paths{
		BaseDir:        base,
		DataDir:        dataDir,
		InputDir:       filepath.Join(dataDir, "input"),
		ReportsDir:     filepath.Join(dataDir, "reports"),
		LogsDir:        filepath.Join(base, DefaultLogsDir),
		ConfigFile:     filepath.Join(base, "configs", "pixelqc.yaml"),
		BandConfigFile: filepath.Join(base, DefaultBandConfigFile),
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.InputDir,
		p.ReportsDir,
		p.LogsDir,
	}

	logger := slog.Default()

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetInputPath returns the path for an input table
func (p *Paths) GetInputPath(filename string) string {
	return filepath.Join(p.InputDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("input", p.InputDir),
			slog.String("reports", p.ReportsDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("config_files",
			slog.String("config", p.ConfigFile),
			slog.Bool("config_exists", FileExists(p.ConfigFile)),
			slog.String("bands", p.BandConfigFile),
			slog.Bool("bands_exists", FileExists(p.BandConfigFile)),
		))
}
