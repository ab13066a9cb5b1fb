// Package audio loads and stores mono WAV signals, converts speech masks to
// sample segments and provides the reverberation and white noise transforms
// used to stress the detector.
package audio
