// Package rttm reads and writes Rich Transcription Time Marked files, the
// line oriented format used for reference speech markup.
package rttm
