// Package config provides configuration loading for pixelqc: the runtime
// settings (logging, telemetry, input columns, outputs), the filesystem
// layout, and the band configuration that drives a filter run.
//
// # Configuration Sources
//
// Runtime settings are loaded from the following sources in order of precedence:
//
//	1. Environment variables, including a .env file (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern PIXELQC_<SECTION>_<FIELD>:
//
//	PIXELQC_LOGGING_LEVEL=debug
//	PIXELQC_INPUT_FINE_ID_COLUMN=FID_pixelc
//	PIXELQC_OUTPUT_RUN_ID=2024-06-survey
//	PIXELQC_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Band Configuration
//
// The band configuration is a separate JSON or YAML document:
//
//	{
//	  "percentage": 0.25,
//	  "data_groups_explanation": [
//	    {"name": "low", "from": 0, "to": 50},
//	    {"name": "high", "from": 50, "to": 0}
//	  ]
//	}
//
// A zero bound means unbounded on that side. LoadBandConfig rejects a
// percentage outside (0, 1], an empty band list, duplicate names and bounded
// bands with to <= from.
package config
