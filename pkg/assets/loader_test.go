package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.Black)
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestLoaderFetchesRemoteImage(t *testing.T) {
	data := samplePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	loader := NewLoader(Options{Timeout: time.Second})
	img, err := loader.Load(context.Background(), srv.URL+"/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "PNG", img.Type)
	assert.Equal(t, data, img.Data)

	_, err = loader.Load(context.Background(), srv.URL+"/missing.png")
	require.Error(t, err)
}

func TestLoaderReadsLocalAndDataURI(t *testing.T) {
	dir := t.TempDir()
	data := samplePNG(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.png"), data, 0o644))
	loader := NewLoader(Options{BaseDir: dir})

	img, err := loader.Load(context.Background(), "logo.png")
	require.NoError(t, err)
	assert.Equal(t, "PNG", img.Type)

	img, err = loader.Load(context.Background(), "data:image/png;base64,"+base64.StdEncoding.EncodeToString(data))
	require.NoError(t, err)
	assert.Equal(t, data, img.Data)

	_, err = loader.Load(context.Background(), "../secret.png")
	require.Error(t, err)
}

func TestLoaderRejectsNonImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello world"), 0o644))
	loader := NewLoader(Options{BaseDir: dir})

	_, err := loader.Load(context.Background(), "notes.txt")
	require.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestLoaderStopsReadingOversizedBody(t *testing.T) {
	const total = 8 * MaxAssetBytes
	var written atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		chunk := bytes.Repeat([]byte{0xAB}, 32<<10)
		flusher, _ := w.(http.Flusher)
		for written.Load() < total {
			n, err := w.Write(chunk)
			written.Add(int64(n))
			if err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))

	loader := NewLoader(Options{Timeout: 10 * time.Second})
	_, err := loader.Load(context.Background(), srv.URL+"/huge.png")
	srv.Close()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
	assert.Less(t, written.Load(), int64(total))
}

func TestLoaderRejectsOversizedDataURI(t *testing.T) {
	loader := NewLoader(Options{})
	payload := strings.Repeat("A", base64.StdEncoding.EncodedLen(MaxAssetBytes)+4)

	_, err := loader.Load(context.Background(), "data:image/png;base64,"+payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}
