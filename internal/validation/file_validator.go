package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"pixelqc/internal/config"
	apperrors "pixelqc/internal/errors"
)

// FileValidator checks run inputs and outputs before any table is read
type FileValidator struct {
	logger  *slog.Logger
	maxSize int64
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger:  logger,
		maxSize: config.MaxInputFileSize,
	}
}

// WithMaxSize overrides the input size limit
func (v *FileValidator) WithMaxSize(n int64) *FileValidator {
	v.maxSize = n
	return v
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("file %s does not exist", path))
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to stat file %s", path), err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("%s is a directory, not a file", path))
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, apperrors.NewStorageError(fmt.Sprintf("file %s is not readable", path), err)
	}
	file.Close()

	return info, nil
}

// ValidateInputFile checks that path is a readable table in a supported
// format and within the size limit
func (v *FileValidator) ValidateInputFile(path string) error {
	info, err := v.ValidateFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(config.SupportedInputExtensions, ext) {
		v.logger.Error("Unsupported input format",
			slog.String("file", path),
			slog.String("extension", ext))
		return apperrors.NewAppValidationError(fmt.Sprintf("file %s has unsupported extension %q (supported: %s)",
			path, ext, strings.Join(config.SupportedInputExtensions, ", ")))
	}

	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("Temporary Excel file given as input",
			slog.String("file", path))
		return apperrors.NewAppValidationError(fmt.Sprintf("file %s is a temporary Excel file", path))
	}

	if info.Size() == 0 {
		return apperrors.NewAppValidationError(fmt.Sprintf("file %s is empty", path))
	}
	if v.maxSize > 0 && info.Size() > v.maxSize {
		v.logger.Error("Input file too large",
			slog.String("file", path),
			slog.Int64("size", info.Size()),
			slog.Int64("max_size", v.maxSize))
		return apperrors.NewAppValidationError(fmt.Sprintf("file %s is %d bytes, limit is %d", path, info.Size(), v.maxSize))
	}

	v.logger.Debug("Input file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateBandFile checks the band configuration file
func (v *FileValidator) ValidateBandFile(path string) error {
	if _, err := v.ValidateFile(path); err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".yaml", ".yml":
		return nil
	default:
		return apperrors.NewAppValidationError(fmt.Sprintf("band configuration %s must be JSON or YAML, got %q", path, ext))
	}
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	// Verify it's writable by creating a test file
	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	file.Close()
	os.Remove(testFile)

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

// ValidateRun checks both input tables, the band file and the output directory
// and returns the first failure
func (v *FileValidator) ValidateRun(finePath, secondaryPath, bandPath, outputDir string) error {
	for _, p := range []string{finePath, secondaryPath} {
		if err := v.ValidateInputFile(p); err != nil {
			return err
		}
	}
	if err := v.ValidateBandFile(bandPath); err != nil {
		return err
	}
	return v.ValidateOutputDirectory(outputDir)
}
