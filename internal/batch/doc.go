// Package batch runs the detector over many WAV files with bounded
// concurrency and writes one RTTM file per input.
package batch
