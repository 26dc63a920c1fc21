package commands

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("%v in %s", err, data)
	}
}

func TestDecideCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "decision.json")
	if _, err := run(t, "decide",
		"--labels", "khaen,pin,sing",
		"--output", "0.98,0.01,0.01",
		"--format", "json", "--out", out,
	); err != nil {
		t.Fatal(err)
	}

	var result struct {
		ID       string `json:"id"`
		Decision struct {
			Label      string  `json:"label"`
			IsUnknown  bool    `json:"is_unknown"`
			Confidence float64 `json:"confidence"`
		} `json:"decision"`
	}
	readJSON(t, out, &result)
	if result.Decision.Label != "khaen" || result.Decision.IsUnknown || result.Decision.Confidence != 0.98 {
		t.Errorf("decision = %+v", result.Decision)
	}
	if result.ID == "" {
		t.Error("result has no id")
	}
}

func TestDecideCommandRequiresLabels(t *testing.T) {
	decideFlags.labels = nil
	if _, err := run(t, "decide", "--labels", "", "--output", "0.5,0.5"); err == nil {
		t.Error("expected error without labels")
	}
}

func TestPresetsShow(t *testing.T) {
	out, err := run(t, "presets", "--show", "image_minmax")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"preset: image_minmax", "layout: mel_major", "normalization: min_max"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	presetsFlags.show = ""

	if _, err := run(t, "presets", "--show", "nope"); err == nil {
		t.Error("expected unknown preset error")
	}
	presetsFlags.show = ""
}

func TestFeaturesCommand(t *testing.T) {
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "tone.wav")
	f, err := os.Create(wavPath)
	if err != nil {
		t.Fatal(err)
	}
	data := make([]int, 44100)
	for i := range data {
		data[i] = int(10000 * math.Sin(2*math.Pi*440*float64(i)/44100))
	}
	enc := wav.NewEncoder(f, 44100, 16, 1, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 44100},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out := filepath.Join(dir, "summary.json")
	if _, err := run(t, "features", wavPath, "--preset", "image_minmax", "--summary", "--self-check", "--format", "json", "--output", out); err != nil {
		t.Fatal(err)
	}

	var summary tensorSummary
	readJSON(t, out, &summary)
	want := []int64{1, 128, 83, 1}
	if len(summary.Shape) != len(want) {
		t.Fatalf("shape = %v, want %v", summary.Shape, want)
	}
	for i := range want {
		if summary.Shape[i] != want[i] {
			t.Fatalf("shape = %v, want %v", summary.Shape, want)
		}
	}
	if summary.Min < 0 || summary.Max > 1 {
		t.Errorf("min-max range [%g, %g] outside [0,1]", summary.Min, summary.Max)
	}
}
