// Package server implements the HTTP API of the energy VAD: WAV detection,
// health, configuration and Prometheus metrics endpoints.
package server
