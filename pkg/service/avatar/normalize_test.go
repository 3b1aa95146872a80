package avatar_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/proteus/pkg/service/avatar"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, x%h, color.RGBA{R: 200, G: 10, B: 10, A: 255})
	}
	var buf bytes.Buffer
	gt.NoError(t, png.Encode(&buf, img)).Required()
	return buf.Bytes()
}

func decodedSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	gt.NoError(t, err).Required()
	gt.Value(t, format).Equal("png")
	return cfg.Width, cfg.Height
}

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name       string
		w, h       int
		opts       []avatar.NormalizeOption
		wantW      int
		wantH      int
		wantCropSd int
	}{
		{name: "small square is scaled up", w: 256, h: 256, wantW: 512, wantH: 512, wantCropSd: 512},
		{name: "within bounds is unchanged", w: 800, h: 600, wantW: 800, wantH: 600, wantCropSd: 600},
		{name: "wide image is scaled down", w: 2048, h: 1024, wantW: 1024, wantH: 512, wantCropSd: 512},
		{name: "tall image is scaled down", w: 1000, h: 3000, wantW: 341, wantH: 1024, wantCropSd: 341},
		{name: "small image uses the smaller factor", w: 256, h: 400, wantW: 328, wantH: 512, wantCropSd: 328},
		{
			name: "legacy downscale leaves 2048x1024 untouched",
			w:    2048, h: 1024,
			opts:  []avatar.NormalizeOption{avatar.WithLegacyDownscale()},
			wantW: 2048, wantH: 1024, wantCropSd: 1024,
		},
		{
			name: "legacy downscale of 2048x2048",
			w:    2048, h: 2048,
			opts:  []avatar.NormalizeOption{avatar.WithLegacyDownscale()},
			wantW: 1024, wantH: 1024, wantCropSd: 1024,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := avatar.Normalize(encodePNG(t, tc.w, tc.h), tc.opts...)
			gt.NoError(t, err).Required()

			gt.Value(t, got.Width).Equal(tc.wantW)
			gt.Value(t, got.Height).Equal(tc.wantH)
			gt.Value(t, got.Crop).Equal(avatar.Crop{X: 0, Y: 0, Side: tc.wantCropSd})

			w, h := decodedSize(t, got.PNG)
			gt.Value(t, w).Equal(tc.wantW)
			gt.Value(t, h).Equal(tc.wantH)
		})
	}
}

func TestNormalizeBounds(t *testing.T) {
	t.Run("256x256 reaches the minimum", func(t *testing.T) {
		got, err := avatar.Normalize(encodePNG(t, 256, 256))
		gt.NoError(t, err).Required()
		gt.Number(t, got.Width).GreaterOrEqual(avatar.MinX)
		gt.Number(t, got.Height).GreaterOrEqual(avatar.MinY)
	})

	t.Run("2048x1024 larger edge within maximum", func(t *testing.T) {
		got, err := avatar.Normalize(encodePNG(t, 2048, 1024))
		gt.NoError(t, err).Required()
		gt.Number(t, max(got.Width, got.Height)).LessOrEqual(avatar.MaxX)
	})
}

func TestNormalizeDecodesJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 600, 600))
	var buf bytes.Buffer
	gt.NoError(t, jpeg.Encode(&buf, img, nil)).Required()

	got, err := avatar.Normalize(buf.Bytes())
	gt.NoError(t, err).Required()
	gt.Value(t, got.Width).Equal(600)
	_, _ = decodedSize(t, got.PNG)
}

func TestNormalizeInvalidImage(t *testing.T) {
	t.Run("garbage bytes", func(t *testing.T) {
		_, err := avatar.Normalize([]byte("definitely not an image"))
		gt.Error(t, err).Is(avatar.ErrInvalidImage)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := avatar.Normalize(nil)
		gt.Error(t, err).Is(avatar.ErrInvalidImage)
	})

	t.Run("huge declared size is rejected before decoding", func(t *testing.T) {
		data := withDeclaredSize(t, encodePNG(t, 8, 8), 100_000, 100_000)
		_, err := avatar.Normalize(data)
		gt.Error(t, err).Is(avatar.ErrInvalidImage)
	})
}

// withDeclaredSize rewrites the IHDR dimensions of a PNG and fixes up the chunk CRC
func withDeclaredSize(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := bytes.Clone(data)
	gt.Value(t, string(out[12:16])).Equal("IHDR")
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}
