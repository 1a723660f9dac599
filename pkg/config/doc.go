// Package config loads the devstate-device configuration file.
//
// Configuration is YAML. Every section is optional; Default describes a
// two-state device (DEFAULT and OTHER) with an immediate policy, the
// bridge on :8650 and discovery disabled. Command-line flags in
// cmd/devstate-device override individual fields after loading.
package config
