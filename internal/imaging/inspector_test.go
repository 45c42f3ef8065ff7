package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	var ins StdInspector

	info, err := ins.Inspect(encodePNG(t, 640, 480))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if info.Width != 640 || info.Height != 480 || info.Format != "png" {
		t.Errorf("Inspect() = %+v", info)
	}
}

func TestInspectRejectsGarbage(t *testing.T) {
	var ins StdInspector

	if _, err := ins.Inspect([]byte("definitely not an image")); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Inspect(garbage) error = %v, want ErrInvalidImage", err)
	}
	if _, err := ins.Inspect(nil); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Inspect(nil) error = %v, want ErrInvalidImage", err)
	}
}

func TestInspectRejectsOversized(t *testing.T) {
	var ins StdInspector

	if _, err := ins.Inspect(encodePNG(t, MaxDimension+1, 10)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Inspect(wide) error = %v, want ErrTooLarge", err)
	}
	if _, err := ins.Inspect(encodePNG(t, 10, MaxDimension+1)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Inspect(tall) error = %v, want ErrTooLarge", err)
	}
}
