package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/energy-vad/internal/audio"
	"github.com/skypro1111/energy-vad/internal/eval"
	"github.com/skypro1111/energy-vad/internal/rttm"
)

const testSampleRate = 8000

// fixture writes a quiet-then-loud WAV file and a quiet config into dir.
func fixture(t *testing.T) (dir, wavPath, cfgPath string) {
	t.Helper()
	dir = t.TempDir()

	samples := make([]float64, 2*testSampleRate)
	for i := range samples {
		ts := float64(i) / testSampleRate
		if i < testSampleRate {
			samples[i] = 0.01 * math.Sin(2*math.Pi*200*ts)
		} else {
			samples[i] = 0.8 * math.Sin(2*math.Pi*440*ts)
		}
	}
	wavPath = filepath.Join(dir, "call.wav")
	require.NoError(t, audio.WriteWAV(wavPath, audio.Signal{Samples: samples, SampleRate: testSampleRate}))

	cfgPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\n"), 0644))
	return dir, wavPath, cfgPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile = ""
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDetectCommand(t *testing.T) {
	dir, wavPath, cfgPath := fixture(t)

	out, err := run(t, "detect", "--config", cfgPath, "--wav", wavPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "SPEAKER call 1 "), out)

	turns, err := rttm.Parse(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.InDelta(t, 1.0, turns[0].Start, 0.05)

	rttmPath := filepath.Join(dir, "call.rttm")
	maskPath := filepath.Join(dir, "mask.wav")
	_, err = run(t, "detect", "--config", cfgPath, "--wav", wavPath,
		"--rttm-out", rttmPath, "--mask-out", maskPath, "--file-id", "x1")
	require.NoError(t, err)

	data, err := os.ReadFile(rttmPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "SPEAKER x1 1 "))

	mask, err := audio.ReadWAV(maskPath)
	require.NoError(t, err)
	require.Len(t, mask.Samples, 2*testSampleRate)
	assert.InDelta(t, 0, mask.Samples[0], 1e-9)
	assert.InDelta(t, 1, mask.Samples[len(mask.Samples)-1], 1e-3)
}

func TestDetectCommandErrors(t *testing.T) {
	_, wavPath, cfgPath := fixture(t)

	_, err := run(t, "detect", "--config", cfgPath)
	assert.Error(t, err, "missing --wav")

	_, err = run(t, "detect", "--config", cfgPath, "--wav", wavPath, "--threshold", "3")
	assert.Error(t, err)

	_, err = run(t, "detect", "--config", "/nonexistent.yaml", "--wav", wavPath)
	assert.ErrorContains(t, err, "failed to load configuration")
}

func TestEvaluateCommand(t *testing.T) {
	dir, wavPath, cfgPath := fixture(t)

	ref := filepath.Join(dir, "ref.rttm")
	require.NoError(t, os.WriteFile(ref, []byte("SPEAKER call 1 1.000 1.000 <NA> <NA> speech <NA> <NA>\n"), 0644))

	out, err := run(t, "evaluate", "--config", cfgPath, "--wav", wavPath, "--rttm", ref)
	require.NoError(t, err)

	var report eval.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2*testSampleRate, report.Samples)
	assert.Greater(t, report.Accuracy, 0.95)
	assert.Greater(t, report.F1, 0.95)
}

func TestAugmentCommand(t *testing.T) {
	dir, wavPath, cfgPath := fixture(t)

	irPath := filepath.Join(dir, "ir.wav")
	require.NoError(t, audio.WriteWAV(irPath, audio.Signal{Samples: []float64{0.5, 0.25}, SampleRate: testSampleRate}))

	outA := filepath.Join(dir, "a.wav")
	outB := filepath.Join(dir, "b.wav")
	for _, out := range []string{outA, outB} {
		_, err := run(t, "augment", "--config", cfgPath, "--wav", wavPath, "--out", out,
			"--ir", irPath, "--noise-sigma", "0.05", "--seed", "7")
		require.NoError(t, err)
	}

	a, err := audio.ReadWAV(outA)
	require.NoError(t, err)
	b, err := audio.ReadWAV(outB)
	require.NoError(t, err)
	require.Len(t, a.Samples, 2*testSampleRate)
	assert.Equal(t, a.Samples, b.Samples)

	src, err := audio.ReadWAV(wavPath)
	require.NoError(t, err)
	assert.NotEqual(t, src.Samples, a.Samples)
}

func TestAugmentRejectsRateMismatch(t *testing.T) {
	dir, wavPath, cfgPath := fixture(t)

	irPath := filepath.Join(dir, "ir.wav")
	require.NoError(t, audio.WriteWAV(irPath, audio.Signal{Samples: []float64{1}, SampleRate: 16000}))

	_, err := run(t, "augment", "--config", cfgPath, "--wav", wavPath, "--out", filepath.Join(dir, "o.wav"), "--ir", irPath)
	assert.ErrorContains(t, err, "does not match")
}

func TestBatchCommand(t *testing.T) {
	dir, wavPath, cfgPath := fixture(t)
	outDir := filepath.Join(dir, "out")

	data, err := os.ReadFile(wavPath)
	require.NoError(t, err)
	second := filepath.Join(dir, "call2.wav")
	require.NoError(t, os.WriteFile(second, data, 0644))

	out, err := run(t, "batch", "--config", cfgPath, "--out-dir", outDir, "-j", "2", wavPath, second)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, wavPath, first["path"])
	assert.FileExists(t, filepath.Join(outDir, "call.rttm"))
	assert.FileExists(t, filepath.Join(outDir, "call2.rttm"))

	_, err = run(t, "batch", "--config", cfgPath, filepath.Join(dir, "missing.wav"))
	assert.ErrorContains(t, err, "1 of 1 files failed")
}
