package rttm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/skypro1111/energy-vad/internal/audio"
)

// Turn is one annotated region.
type Turn struct {
	Start    float64 // seconds
	Duration float64 // seconds
}

// End returns the end of the turn in seconds.
func (t Turn) End() float64 {
	return t.Start + t.Duration
}

// ParseError reports a malformed RTTM line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rttm line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var (
	errTooFewFields     = errors.New("expected at least 5 fields")
	errNegativeDuration = errors.New("negative duration")
	errNegativeStart    = errors.New("negative start time")
)

// Parse reads turns from r. Blank lines and lines starting with ";;" are skipped.
func Parse(r io.Reader) ([]Turn, error) {
	var turns []Turn
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, ";;") {
			continue
		}

		turn, err := parseLine(text)
		if err != nil {
			return nil, &ParseError{Line: line, Text: text, Err: err}
		}
		turns = append(turns, turn)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rttm: %w", err)
	}
	return turns, nil
}

func parseLine(text string) (Turn, error) {
	fields := strings.Fields(text)
	if len(fields) < 5 {
		return Turn{}, fmt.Errorf("%w, got %d", errTooFewFields, len(fields))
	}

	start, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return Turn{}, fmt.Errorf("start time: %w", err)
	}
	dur, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return Turn{}, fmt.Errorf("duration: %w", err)
	}
	if start < 0 {
		return Turn{}, errNegativeStart
	}
	if dur < 0 {
		return Turn{}, errNegativeDuration
	}
	return Turn{Start: start, Duration: dur}, nil
}

// Mask renders turns into a per-sample speech mask of the given length.
// Sample bounds are truncated toward zero and clipped to the signal.
func Mask(turns []Turn, length, sampleRate int) []bool {
	segs := make([]audio.Segment, 0, len(turns))
	for _, t := range turns {
		segs = append(segs, audio.Segment{
			Start: int(t.Start * float64(sampleRate)),
			End:   int(t.End() * float64(sampleRate)),
		})
	}
	return audio.SegmentsToMask(segs, length)
}

// LoadMask reads an RTTM file and renders it as a speech mask.
func LoadMask(path string, length, sampleRate int) ([]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rttm file %s: %w", path, err)
	}
	defer f.Close()

	turns, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rttm file %s: %w", path, err)
	}
	return Mask(turns, length, sampleRate), nil
}

// Write emits one SPEAKER line per segment.
func Write(w io.Writer, fileID string, segs []audio.Segment, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if fileID == "" {
		fileID = "audio"
	}

	bw := bufio.NewWriter(w)
	for _, s := range segs {
		start, end := s.Seconds(sampleRate)
		if _, err := fmt.Fprintf(bw, "SPEAKER %s 1 %.3f %.3f <NA> <NA> speech <NA> <NA>\n",
			fileID, start, end-start); err != nil {
			return err
		}
	}
	return bw.Flush()
}
