package support

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

const qrSize = 232

// RegisterImageSteps registers steps that build input directories and check decode results.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an empty image directory$`, testCtx.anEmptyImageDirectory)
	sc.Step(`^a QR image "([^"]*)" encoding "([^"]*)"$`, testCtx.aQRImageEncoding)
	sc.Step(`^an inverted QR image "([^"]*)" encoding "([^"]*)"$`, testCtx.anInvertedQRImageEncoding)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a zero-byte file "([^"]*)"$`, testCtx.aZeroByteFile)
	sc.Step(`^the sample set is generated$`, testCtx.theSampleSetIsGenerated)
	sc.Step(`^the output line for "([^"]*)" should be "([^"]*)"$`, testCtx.theOutputLineForShouldBe)
	sc.Step(`^the output line for "([^"]*)" should contain "([^"]*)"$`, testCtx.theOutputLineForShouldContain)
	sc.Step(`^the output lines should be in the order "([^"]*)"$`, testCtx.theOutputLinesShouldBeInTheOrder)
	sc.Step(`^every sample should have its expected outcome$`, testCtx.everySampleShouldHaveItsExpectedOutcome)
	sc.Step(`^the debug image "([^"]*)" should exist$`, testCtx.theDebugImageShouldExist)
	sc.Step(`^no debug images should exist$`, testCtx.noDebugImagesShouldExist)
}

func (testCtx *TestContext) anEmptyImageDirectory() error {
	return testutil.EnsureDir(testCtx.InputDir)
}

func (testCtx *TestContext) writeImage(name string, invert bool, text string) error {
	if err := testutil.EnsureDir(filepath.Dir(filepath.Join(testCtx.InputDir, name))); err != nil {
		return err
	}
	img, err := testutil.GenerateQRImage(text, qrSize)
	if err != nil {
		return fmt.Errorf("failed to render QR for %q: %w", text, err)
	}
	if invert {
		img = imaging.Invert(img)
	}
	if err := imaging.Save(img, filepath.Join(testCtx.InputDir, name)); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) aQRImageEncoding(name, text string) error {
	return testCtx.writeImage(name, false, text)
}

func (testCtx *TestContext) anInvertedQRImageEncoding(name, text string) error {
	return testCtx.writeImage(name, true, text)
}

func (testCtx *TestContext) aBlankImage(name string) error {
	if err := testutil.EnsureDir(testCtx.InputDir); err != nil {
		return err
	}
	img := testutil.SolidImage(qrSize, qrSize, color.White)
	return imaging.Save(img, filepath.Join(testCtx.InputDir, name))
}

func (testCtx *TestContext) aZeroByteFile(name string) error {
	if err := testutil.EnsureDir(testCtx.InputDir); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(testCtx.InputDir, name), nil, 0o600)
}

func (testCtx *TestContext) theSampleSetIsGenerated() error {
	return testutil.WriteSampleSet(testCtx.InputDir, testutil.DefaultSamples(), 296)
}

// lineFor returns the result line whose file part ends with name.
func (testCtx *TestContext) lineFor(name string) (string, error) {
	for _, line := range outputLines(testCtx.LastStdout) {
		file, _, ok := strings.Cut(line, ": ")
		if ok && filepath.Base(file) == name {
			return line, nil
		}
	}
	return "", fmt.Errorf("no output line for %s\noutput: %s", name, testCtx.LastStdout)
}

func (testCtx *TestContext) theOutputLineForShouldBe(name, expected string) error {
	line, err := testCtx.lineFor(name)
	if err != nil {
		return err
	}
	_, rest, _ := strings.Cut(line, ": ")
	if rest != expected {
		return fmt.Errorf("line for %s is %q, expected %q", name, rest, expected)
	}
	return nil
}

func (testCtx *TestContext) theOutputLineForShouldContain(name, expected string) error {
	line, err := testCtx.lineFor(name)
	if err != nil {
		return err
	}
	if !strings.Contains(line, expected) {
		return fmt.Errorf("line for %s is %q, expected it to contain %q", name, line, expected)
	}
	return nil
}

func (testCtx *TestContext) theOutputLinesShouldBeInTheOrder(names string) error {
	var got []string
	for _, line := range outputLines(testCtx.LastStdout) {
		if file, _, ok := strings.Cut(line, ": "); ok {
			got = append(got, filepath.Base(file))
		}
	}
	if order := strings.Join(got, ","); order != names {
		return fmt.Errorf("output order is %q, expected %q", order, names)
	}
	return nil
}

func (testCtx *TestContext) everySampleShouldHaveItsExpectedOutcome() error {
	samples, err := testutil.LoadManifest(testCtx.InputDir)
	if err != nil {
		return err
	}
	for _, s := range samples {
		want := s.Text
		if s.Cause != "" {
			want = "<not decoded> (" + s.Cause
		}
		if err := testCtx.theOutputLineForShouldContain(s.Name, want); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) theDebugImageShouldExist(name string) error {
	path := filepath.Join(testCtx.DebugDir, name)
	if _, err := imaging.Open(path); err != nil {
		return fmt.Errorf("debug image %s is not readable: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) noDebugImagesShouldExist() error {
	entries, err := os.ReadDir(testCtx.DebugDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("expected no debug images, found %d in %s", len(entries), testCtx.DebugDir)
	}
	return nil
}
