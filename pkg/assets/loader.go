package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// MaxAssetBytes bounds any single downloaded or read asset.
const MaxAssetBytes = 10 << 20

// ErrUnsupportedImage is returned for content that is not PNG, JPEG or GIF.
var ErrUnsupportedImage = errors.New("unsupported image type")

// Image is a loaded raster asset ready for PDF embedding.
type Image struct {
	Source string
	Data   []byte
	// Type is PNG, JPG or GIF.
	Type string
}

// Loader resolves image references used by certificate templates. Sources may
// be http(s) URLs, base64 data URIs, or paths relative to the assets directory.
type Loader struct {
	client  *resty.Client
	baseDir string
	logger  *zap.Logger
}

// Options configure a Loader.
type Options struct {
	BaseDir string
	Timeout time.Duration
	Logger  *zap.Logger
	// Transport overrides the HTTP transport, used by tests.
	Transport http.RoundTripper
}

// NewLoader builds a Loader.
func NewLoader(opts Options) *Loader {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(1).
		SetHeader("Accept", "image/png, image/jpeg, image/gif")
	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	}
	return &Loader{client: client, baseDir: opts.BaseDir, logger: opts.Logger}
}

// Load fetches and classifies the image at source.
func (l *Loader) Load(ctx context.Context, source string) (*Image, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("empty asset source")
	}

	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		data, err = l.fetch(ctx, source)
	case strings.HasPrefix(source, "data:"):
		data, err = decodeDataURI(source)
	default:
		data, err = l.readLocal(source)
	}
	if err != nil {
		return nil, err
	}

	kind, err := Classify(data)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", describe(source), err)
	}
	return &Image{Source: source, Data: data, Type: kind}, nil
}

// Classify sniffs data and returns the PDF image type for it.
func Classify(data []byte) (string, error) {
	mime := mimetype.Detect(data)
	switch {
	case mime.Is("image/png"):
		return "PNG", nil
	case mime.Is("image/jpeg"):
		return "JPG", nil
	case mime.Is("image/gif"):
		return "GIF", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mime.String())
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := l.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch asset %s: %w", url, err)
	}
	raw := resp.RawBody()
	defer raw.Close()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch asset %s: unexpected status %d", url, resp.StatusCode())
	}
	if resp.RawResponse.ContentLength > MaxAssetBytes {
		return nil, fmt.Errorf("fetch asset %s: %d bytes exceeds limit", url, resp.RawResponse.ContentLength)
	}
	body, err := io.ReadAll(io.LimitReader(raw, MaxAssetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch asset %s: %w", url, err)
	}
	if len(body) > MaxAssetBytes {
		return nil, fmt.Errorf("fetch asset %s: body exceeds %d byte limit", url, MaxAssetBytes)
	}
	l.logger.Debug("asset fetched", zap.String("url", url), zap.Int("bytes", len(body)), zap.Duration("elapsed", resp.Time()))
	return body, nil
}

func (l *Loader) readLocal(name string) ([]byte, error) {
	if l.baseDir == "" {
		return nil, fmt.Errorf("asset %s: no assets directory configured", name)
	}
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(name, "/")))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("asset %s: path escapes assets directory", name)
	}
	path := filepath.Join(l.baseDir, clean)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", name, err)
	}
	if info.Size() > MaxAssetBytes {
		return nil, fmt.Errorf("asset %s: %d bytes exceeds limit", name, info.Size())
	}
	return os.ReadFile(path)
}

func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data uri")
	}
	meta, payload := uri[len("data:"):comma], uri[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data uri must be base64 encoded")
	}
	if len(payload) > base64.StdEncoding.EncodedLen(MaxAssetBytes) {
		return nil, fmt.Errorf("data uri exceeds %d byte limit", MaxAssetBytes)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return data, nil
}

func describe(source string) string {
	if strings.HasPrefix(source, "data:") {
		return "data-uri"
	}
	return source
}
