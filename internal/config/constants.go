package config

import "pixelqc/pkg/contracts"

// Application constants
const (
	// Application Info
	AppName    = "pixelqc"
	AppVersion = contracts.Version

	// File Paths (relative to the base directory)
	DefaultDataDir    = "data"
	DefaultLogsDir    = "logs"
	DefaultReportsDir = "data/reports"

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Input size limits
	MaxInputFileSize = 2 << 30 // 2GB
)

// SupportedInputExtensions lists the table formats the loader accepts
var SupportedInputExtensions = []string{".csv", ".xlsx", ".xlsm", ".parquet", ".dbf"}
