package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/metrics"
	"github.com/MeKo-Tech/qrscan/internal/normalize"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig keeps normalized images small so tests stay fast.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OutputDir = filepath.Join(testutil.CreateTempDir(t), "result")
	cfg.Normalize.ResizeTarget = 0
	return cfg
}

func newTestRunner(t *testing.T, cfg Config, det barcode.Detector, opts ...Option) *Runner {
	t.Helper()
	r, err := NewRunner(cfg, det, opts...)
	require.NoError(t, err)
	return r
}

func constantDetector(value string, err error) barcode.Detector {
	return barcode.DetectorFunc(func(context.Context, image.Image) (string, error) {
		return value, err
	})
}

func writeInkFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		testutil.SaveImage(t, testutil.InkImage(20, 20, 100), filepath.Join(dir, name))
	}
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(DefaultConfig(), nil)
	require.Error(t, err)

	cfg := DefaultConfig()
	cfg.Workers = 0
	_, err = NewRunner(cfg, constantDetector("x", nil))
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Format = "xml"
	_, err = NewRunner(cfg, constantDetector("x", nil))
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Normalize.Border = -1
	_, err = NewRunner(cfg, constantDetector("x", nil))
	require.Error(t, err)
}

func TestRun_CleanCodeAndZeroByteFile(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WriteQRCode(t, filepath.Join(dir, "a.png"), "HELLO", 232)
	testutil.WriteCorruptFile(t, filepath.Join(dir, "b.png"))

	r := newTestRunner(t, testConfig(t), barcode.NewGozxingDetector(barcode.DefaultOptions()))

	var emitted []Outcome
	res, err := r.Run(context.Background(), dir, []string{".png"}, func(o Outcome) {
		emitted = append(emitted, o)
	})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, res.Outcomes, emitted)

	a, b := res.Outcomes[0], res.Outcomes[1]
	assert.Equal(t, filepath.Join(dir, "a.png"), a.Path)
	assert.True(t, a.Decoded)
	assert.Equal(t, "HELLO", a.Value)
	assert.Empty(t, a.Cause)
	assert.Equal(t, filepath.Join(dir, "a.png")+": HELLO", a.String())

	assert.Equal(t, filepath.Join(dir, "b.png"), b.Path)
	assert.False(t, b.Decoded)
	assert.Equal(t, CauseLoadError, b.Cause)
	assert.Error(t, b.Err)
	assert.Contains(t, b.String(), "<not decoded> (LoadError")
}

func TestRun_IsolatesCorruptFile(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	names := []string{"f0.png", "f1.png", "f2.png", "f3.png", "f4.png"}
	for i, name := range names {
		if i == 2 {
			testutil.WriteCorruptFile(t, filepath.Join(dir, name))
			continue
		}
		writeInkFiles(t, dir, name)
	}

	r := newTestRunner(t, testConfig(t), constantDetector("CODE", nil))
	res, err := r.Run(context.Background(), dir, nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, len(names))

	for i, o := range res.Outcomes {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, filepath.Join(dir, names[i]), o.Path)
		if i == 2 {
			assert.Equal(t, CauseLoadError, o.Cause)
			assert.False(t, o.Normalized)
			continue
		}
		assert.True(t, o.Decoded, "file %s", o.Path)
		assert.Equal(t, "CODE", o.Value)
	}

	stats := res.Stats()
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 4, stats.Decoded)
	assert.Equal(t, 1, stats.ByCause[CauseLoadError])
}

type normalizerFunc func(image.Image) (*normalize.Result, error)

func (f normalizerFunc) Normalize(img image.Image) (*normalize.Result, error) { return f(img) }

func TestRun_IsolatesNormalizationFailures(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	writeInkFiles(t, dir, "f0.png", "f3.png")
	testutil.SaveImage(t, testutil.InkImage(13, 13, 50), filepath.Join(dir, "f1.png"))
	testutil.SaveImage(t, testutil.InkImage(17, 17, 50), filepath.Join(dir, "f2.png"))

	base, err := normalize.New(testConfig(t).Normalize)
	require.NoError(t, err)
	failing := normalizerFunc(func(img image.Image) (*normalize.Result, error) {
		switch img.Bounds().Dx() {
		case 13:
			return nil, &normalize.Error{Step: "binarize", Err: normalize.ErrInvalidImage}
		case 17:
			panic("corrupt buffer")
		}
		return base.Normalize(img)
	})

	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Workers = workers
			r := newTestRunner(t, cfg, constantDetector("CODE", nil), WithNormalizer(failing))

			res, err := r.Run(context.Background(), dir, nil, nil)
			require.NoError(t, err)
			require.Len(t, res.Outcomes, 4)

			f0, f1, f2, f3 := res.Outcomes[0], res.Outcomes[1], res.Outcomes[2], res.Outcomes[3]
			assert.True(t, f0.Decoded)
			assert.True(t, f3.Decoded)

			assert.Equal(t, CauseNormalizationError, f1.Cause)
			assert.ErrorIs(t, f1.Err, normalize.ErrInvalidImage)
			assert.False(t, f1.Normalized)
			assert.Contains(t, f1.String(), "<not decoded> (NormalizationError")

			assert.Equal(t, CauseNormalizationError, f2.Cause)
			assert.ErrorContains(t, f2.Err, "corrupt buffer")
			assert.Empty(t, f2.DebugPath)

			assert.Equal(t, 2, res.Stats().ByCause[CauseNormalizationError])
		})
	}
}

func TestRun_NonZeroInkDecodesWithoutInvertRetry(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WriteQRCode(t, filepath.Join(dir, "a.png"), "HELLO", 232)
	testutil.WriteCorruptFile(t, filepath.Join(dir, "b.png"))

	cfg := testConfig(t)
	cfg.Normalize.InkClass = normalize.InkNonZero
	detOpts := barcode.DefaultOptions()
	detOpts.AlsoInverted = false
	r := newTestRunner(t, cfg, barcode.NewGozxingDetector(detOpts))

	res, err := r.Run(context.Background(), dir, nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)

	a, b := res.Outcomes[0], res.Outcomes[1]
	assert.False(t, a.Inverted)
	assert.Equal(t, filepath.Join(dir, "a.png")+": HELLO", a.String())
	assert.Equal(t, CauseLoadError, b.Cause)
}

func TestRun_CancelAfterLastFileCompletes(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	writeInkFiles(t, dir, "a.png", "b.png", "c.png")

	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var calls atomic.Int32
			det := barcode.DetectorFunc(func(context.Context, image.Image) (string, error) {
				if calls.Add(1) == 3 {
					cancel()
				}
				return "X", nil
			})

			cfg := testConfig(t)
			cfg.Workers = workers
			res, err := newTestRunner(t, cfg, det).Run(ctx, dir, nil, nil)
			require.NoError(t, err)
			assert.Len(t, res.Outcomes, 3)
		})
	}
}

func TestRun_DetectorResultsMapToCauses(t *testing.T) {
	boom := errors.New("reader exploded")
	tests := []struct {
		name      string
		detector  barcode.Detector
		wantCause Cause
		wantErr   error
	}{
		{"empty value", constantDetector("", nil), CauseNoCodeFound, barcode.ErrNotFound},
		{"not found", constantDetector("", barcode.ErrNotFound), CauseNoCodeFound, barcode.ErrNotFound},
		{"wrapped not found", constantDetector("", fmt.Errorf("pass 2: %w", barcode.ErrNotFound)), CauseNoCodeFound, barcode.ErrNotFound},
		{"other failure", constantDetector("", boom), CauseDecodeError, boom},
		{"panic", barcode.DetectorFunc(func(context.Context, image.Image) (string, error) {
			panic("bad bitmap")
		}), CauseDecodeError, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testutil.CreateTempDir(t)
			writeInkFiles(t, dir, "code.png")

			r := newTestRunner(t, testConfig(t), tt.detector)
			res, err := r.Run(context.Background(), dir, nil, nil)
			require.NoError(t, err)
			require.Len(t, res.Outcomes, 1)

			o := res.Outcomes[0]
			assert.False(t, o.Decoded)
			assert.Equal(t, tt.wantCause, o.Cause)
			require.Error(t, o.Err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, o.Err, tt.wantErr)
			}
		})
	}
}

func TestRun_DetectorSeesNormalizedImage(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.SaveImage(t, testutil.InkImage(10, 10, 10), filepath.Join(dir, "sparse.png"))

	cfg := testConfig(t)
	var got image.Image
	det := barcode.DetectorFunc(func(_ context.Context, img image.Image) (string, error) {
		got = img
		return "ok", nil
	})

	r := newTestRunner(t, cfg, det)
	res, err := r.Run(context.Background(), dir, nil, nil)
	require.NoError(t, err)

	o := res.Outcomes[0]
	assert.True(t, o.Normalized)
	assert.InDelta(t, 10.0, o.Coverage, 1e-9)
	assert.True(t, o.Inverted)

	gray, ok := got.(*image.Gray)
	require.True(t, ok, "detector should receive *image.Gray")
	border := cfg.Normalize.Border
	assert.Equal(t, 10+2*border, gray.Bounds().Dx())
	assert.Equal(t, uint8(255), gray.GrayAt(0, 0).Y)
}

func TestRun_WritesDebugImage(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	writeInkFiles(t, dir, "photo.png")

	cfg := testConfig(t)
	r := newTestRunner(t, cfg, constantDetector("X", nil))
	res, err := r.Run(context.Background(), dir, nil, nil)
	require.NoError(t, err)

	want := filepath.Join(cfg.OutputDir, "photo.png")
	assert.Equal(t, want, res.Outcomes[0].DebugPath)
	assert.True(t, testutil.FileExists(want))
}

func TestRun_RecursiveDebugImagesKeepSubdirectories(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			dir := testutil.CreateTempDir(t)
			writeInkFiles(t, dir, filepath.Join("a", "x.png"), filepath.Join("b", "x.png"), "x.png")

			cfg := testConfig(t)
			cfg.Recursive = true
			cfg.Workers = workers
			r := newTestRunner(t, cfg, constantDetector("X", nil))
			res, err := r.Run(context.Background(), dir, nil, nil)
			require.NoError(t, err)
			require.Len(t, res.Outcomes, 3)

			seen := make(map[string]bool)
			for _, o := range res.Outcomes {
				rel, relErr := filepath.Rel(dir, o.Path)
				require.NoError(t, relErr)
				assert.Equal(t, filepath.Join(cfg.OutputDir, rel), o.DebugPath)
				assert.True(t, testutil.FileExists(o.DebugPath))
				assert.False(t, seen[o.DebugPath], "duplicate debug path %s", o.DebugPath)
				seen[o.DebugPath] = true
			}
		})
	}
}

func TestRun_DebugWriteFailureDoesNotChangeOutcome(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	writeInkFiles(t, dir, "photo.png")

	blocker := filepath.Join(testutil.CreateTempDir(t), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	cfg := testConfig(t)
	cfg.OutputDir = blocker
	r := newTestRunner(t, cfg, constantDetector("STILL DECODED", nil))

	res, err := r.Run(context.Background(), dir, nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.True(t, res.Outcomes[0].Decoded)
	assert.Equal(t, "STILL DECODED", res.Outcomes[0].Value)
	assert.Empty(t, res.Outcomes[0].DebugPath)
}

func TestRun_NoDebugWrite(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	writeInkFiles(t, dir, "photo.png")

	cfg := testConfig(t)
	cfg.WriteDebug = false
	r := newTestRunner(t, cfg, constantDetector("X", nil))

	_, err := r.Run(context.Background(), dir, nil, nil)
	require.NoError(t, err)
	assert.False(t, testutil.DirExists(cfg.OutputDir))
}

func TestRun_ParallelKeepsEnumerationOrder(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	var names []string
	for i := 0; i < 12; i++ {
		names = append(names, fmt.Sprintf("img%02d.png", i))
	}
	writeInkFiles(t, dir, names...)

	// Earlier files take longer so completion order is roughly reversed.
	var calls atomic.Int32
	det := barcode.DetectorFunc(func(ctx context.Context, _ image.Image) (string, error) {
		n := calls.Add(1)
		time.Sleep(time.Duration(13-n) * time.Millisecond)
		return "v", ctx.Err()
	})

	cfg := testConfig(t)
	cfg.Workers = 4
	cfg.WriteDebug = false
	r := newTestRunner(t, cfg, det)

	var emitted []string
	res, err := r.Run(context.Background(), dir, nil, func(o Outcome) {
		emitted = append(emitted, filepath.Base(o.Path))
	})
	require.NoError(t, err)
	assert.Equal(t, names, emitted)
	assert.Equal(t, 4, res.Workers)
	for i, o := range res.Outcomes {
		assert.Equal(t, i, o.Index)
		assert.True(t, o.Decoded)
	}
}

func TestRun_MissingDirectory(t *testing.T) {
	r := newTestRunner(t, testConfig(t), constantDetector("X", nil))
	_, err := r.Run(context.Background(), filepath.Join(testutil.CreateTempDir(t), "nope"), nil, nil)
	require.Error(t, err)
}

func TestRun_EmptyDirectory(t *testing.T) {
	r := newTestRunner(t, testConfig(t), constantDetector("X", nil))
	res, err := r.Run(context.Background(), testutil.CreateTempDir(t), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Outcomes)
	assert.NotEmpty(t, res.RunID)
}

func TestRun_CancelledContext(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	writeInkFiles(t, dir, "a.png", "b.png", "c.png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 3} {
		cfg := testConfig(t)
		cfg.Workers = workers
		r := newTestRunner(t, cfg, constantDetector("X", nil))

		res, err := r.Run(ctx, dir, nil, nil)
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, res.Outcomes)
	}
}

func TestRun_RecordsMetrics(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	writeInkFiles(t, dir, "a.png")
	testutil.WriteCorruptFile(t, filepath.Join(dir, "b.png"))

	reg := prometheus.NewRegistry()
	r := newTestRunner(t, testConfig(t), constantDetector("X", nil), WithMetrics(metrics.New(reg)))

	_, err := r.Run(context.Background(), dir, nil, nil)
	require.NoError(t, err)

	count, err := prom.GatherAndCount(reg, "qrscan_files_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestProcessFile_UseResized(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := filepath.Join(dir, "a.png")
	writeInkFiles(t, dir, "a.png")

	cfg := testConfig(t)
	cfg.Normalize.UseResized = true
	cfg.Normalize.ResizeTarget = 48
	var bounds image.Rectangle
	det := barcode.DetectorFunc(func(_ context.Context, img image.Image) (string, error) {
		bounds = img.Bounds()
		return "X", nil
	})

	r := newTestRunner(t, cfg, det)
	o := r.ProcessFile(context.Background(), path)
	require.True(t, o.Decoded)
	assert.Equal(t, image.Rect(0, 0, 48, 48), bounds)
}
