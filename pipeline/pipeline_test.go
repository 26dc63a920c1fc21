package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-instrument/classify"
	"github.com/RyanBlaney/sonido-instrument/config"
	"github.com/RyanBlaney/sonido-instrument/features"
	"github.com/RyanBlaney/sonido-instrument/logging"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Features.Engine = features.EngineConfig{
		SampleRate: 8000,
		FFTSize:    256,
		HopLength:  128,
		NumMels:    16,
	}
	cfg.Features.Segments = features.SegmentConfig{
		DurationSeconds: 0.25,
		OverlapFraction: 0.5,
		MaxSegments:     4,
	}
	cfg.Labels = []string{"khaen", "pin", "sing"}
	return cfg
}

func tone(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.3 * math.Sin(2*math.Pi*440*float64(i)/8000)
	}
	return out
}

func staticModel(out ...float64) classify.Model {
	return classify.ModelFunc(func(ctx context.Context, in *features.Tensor) ([]float64, error) {
		return out, nil
	})
}

func quiet() Option {
	return WithLogger(&logging.NoOpLogger{})
}

func TestClassifyKnown(t *testing.T) {
	stamp := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	history := classify.NewHistory(4)
	p, err := New(testConfig(), staticModel(0.98, 0.01, 0.01),
		quiet(),
		WithHistory(history),
		WithModelName("test-model"),
		WithAggregator(classify.NewAggregator(
			classify.WithClock(func() time.Time { return stamp }),
			classify.WithIDGenerator(func() string { return "fixed" }),
		)),
	)
	if err != nil {
		t.Fatal(err)
	}

	r, err := p.Classify(context.Background(), tone(4000))
	if err != nil {
		t.Fatal(err)
	}
	if r.Decision.Label != "khaen" || r.Decision.IsUnknown || r.Fallback {
		t.Fatalf("decision = %+v", r.Decision)
	}
	if r.ID != "fixed" || !r.Timestamp.Equal(stamp) {
		t.Errorf("id=%q timestamp=%v", r.ID, r.Timestamp)
	}
	if r.Metadata.Model != "test-model" || r.Metadata.Samples != 4000 {
		t.Errorf("metadata = %+v", r.Metadata)
	}
	// (4000-256)/128+1 = 30 frames of 16 mels
	if !features.SameShape(r.Metadata.InputShape, []int64{1, 30 * 16}) {
		t.Errorf("input shape = %v", r.Metadata.InputShape)
	}
	if history.Len() != 1 || history.Recent()[0] != r {
		t.Error("result not recorded in history")
	}
}

func TestClassifyModelFailureFallsBack(t *testing.T) {
	var buf bytes.Buffer
	failing := classify.ModelFunc(func(ctx context.Context, in *features.Tensor) ([]float64, error) {
		return nil, errors.New("session not loaded")
	})
	p, err := New(testConfig(), failing, WithLogger(logging.NewWriterLogger(&buf, logging.WarnLevel)))
	if err != nil {
		t.Fatal(err)
	}

	r, err := p.Classify(context.Background(), tone(2000))
	if err != nil {
		t.Fatalf("model failure surfaced as error: %v", err)
	}
	if !r.Fallback || !r.Decision.IsUnknown || r.Decision.Confidence != 0 {
		t.Fatalf("result = %+v", r)
	}
	for label, prob := range r.Decision.Probabilities {
		if prob != 0 {
			t.Errorf("%q = %g, want 0", label, prob)
		}
	}
	if !strings.Contains(buf.String(), "inference failed") {
		t.Errorf("warning not logged: %q", buf.String())
	}
}

func TestFallbackCarriesConfiguredThresholds(t *testing.T) {
	cfg := testConfig()
	cfg.Decision = classify.Thresholds{Confidence: 0.9, Entropy: 0.1}
	failing := classify.ModelFunc(func(ctx context.Context, in *features.Tensor) ([]float64, error) {
		return nil, errors.New("session not loaded")
	})
	p, err := New(cfg, failing, quiet())
	if err != nil {
		t.Fatal(err)
	}

	r, err := p.Classify(context.Background(), tone(2000))
	if err != nil {
		t.Fatal(err)
	}
	if r.Decision.Thresholds != cfg.Decision {
		t.Errorf("thresholds = %+v, want %+v", r.Decision.Thresholds, cfg.Decision)
	}
	if r.Decision.Predicted != "" {
		t.Errorf("predicted = %q, want empty", r.Decision.Predicted)
	}
}

func TestEngineLogsUnderOwnComponent(t *testing.T) {
	var buf bytes.Buffer
	if _, err := New(testConfig(), nil, WithLogger(logging.NewWriterLogger(&buf, logging.DebugLevel))); err != nil {
		t.Fatal(err)
	}

	var line string
	for l := range strings.SplitSeq(buf.String(), "\n") {
		if strings.Contains(l, "engine initialized") {
			line = l
		}
	}
	if line == "" {
		t.Fatalf("no engine line logged: %q", buf.String())
	}
	if !strings.Contains(line, "component=spectrogram_engine") {
		t.Errorf("engine line = %q, want component=spectrogram_engine", line)
	}
}

func TestClassifyPreconditions(t *testing.T) {
	p, err := New(testConfig(), staticModel(1, 0, 0), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Classify(context.Background(), nil); !errors.Is(err, features.ErrEmptyBuffer) {
		t.Errorf("empty buffer: err = %v", err)
	}

	noLabels := testConfig()
	noLabels.Labels = nil
	p, err = New(noLabels, staticModel(1), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Classify(context.Background(), tone(2000)); !errors.Is(err, classify.ErrNoLabels) {
		t.Errorf("no labels: err = %v", err)
	}

	shaped := testConfig()
	shaped.Model.InputShape = []int64{1, 16, 30, 1}
	p, err = New(shaped, staticModel(1, 0, 0), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Classify(context.Background(), tone(4000)); !errors.Is(err, features.ErrShapeMismatch) {
		t.Errorf("shape mismatch: err = %v", err)
	}

	p, err = New(testConfig(), nil, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Classify(context.Background(), tone(2000)); err == nil {
		t.Error("expected error without a model")
	}
}

func TestClassifyAbandoned(t *testing.T) {
	blocking := classify.ModelFunc(func(ctx context.Context, in *features.Tensor) ([]float64, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	p, err := New(testConfig(), blocking, quiet())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Classify(ctx, tone(2000)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestSegmentedMode(t *testing.T) {
	cfg := testConfig()
	cfg.Features.Mode = config.ModeSegmented

	var seen []int64
	model := classify.ModelFunc(func(ctx context.Context, in *features.Tensor) ([]float64, error) {
		seen = in.Shape
		return []float64{0.01, 0.98, 0.01}, nil
	})
	p, err := New(cfg, model, quiet())
	if err != nil {
		t.Fatal(err)
	}

	r, err := p.Classify(context.Background(), tone(5000))
	if err != nil {
		t.Fatal(err)
	}
	// 2000-sample segments: (2000-256)/128+1 = 14 frames of 16 mels
	if !features.SameShape(seen, []int64{1, 4, 14 * 16}) {
		t.Errorf("model saw shape %v", seen)
	}
	if r.Decision.Label != "pin" {
		t.Errorf("label = %q, want pin", r.Decision.Label)
	}
}

func TestFeaturesMatchesEngine(t *testing.T) {
	p, err := New(testConfig(), nil, quiet())
	if err != nil {
		t.Fatal(err)
	}
	buf := tone(3000)
	a, err := p.Features(buf)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Engine().ComputeMelSpectrogram(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Data) != len(b.Data) {
		t.Fatalf("len %d vs %d", len(a.Data), len(b.Data))
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("element %d differs", i)
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("nil config accepted")
	}
	cfg := testConfig()
	cfg.Features.Engine.FFTSize = 300
	if _, err := New(cfg, nil); !errors.Is(err, features.ErrNonPowerOfTwoFFTSize) {
		t.Errorf("err = %v", err)
	}
}
