// Package config provides configuration loading and validation for the energy VAD.
// It handles YAML-based configuration layered over built-in defaults and converts
// the detector sections into vad.Config.
package config
