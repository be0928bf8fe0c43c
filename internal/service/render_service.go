package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"go.uber.org/zap"

	"github.com/noah-isme/sigce-api/internal/models"
	"github.com/noah-isme/sigce-api/pkg/assets"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
	"github.com/noah-isme/sigce-api/pkg/export"
)

const (
	// pixelUnitThreshold separates millimetre templates from pixel templates.
	pixelUnitThreshold = 500.0
	defaultPageWidth   = 297.0
	defaultPageHeight  = 210.0
	defaultQRSize      = 30.0
	defaultImageSize   = 40.0
	pdfContentType     = "application/pdf"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

type assetLoader interface {
	Load(ctx context.Context, source string) (*assets.Image, error)
}

// RenderConfig tunes the rendering engine.
type RenderConfig struct {
	LogoPath     string
	AssetTimeout time.Duration
	Compress     bool
}

// Document is a rendered certificate. Texts lists every text run drawn, in
// order; SkippedAssets lists images that could not be loaded.
type Document struct {
	Content       []byte
	Filename      string
	ContentType   string
	Texts         []string
	SkippedAssets []string
	Unit          string
	Width         float64
	Height        float64
}

// RenderService lays certificates out onto PDF pages.
type RenderService struct {
	assets   assetLoader
	cfg      RenderConfig
	metrics  *MetricsService
	logger   *zap.Logger
	encodeQR func(content string) ([]byte, error)
}

// NewRenderService constructs the rendering engine.
func NewRenderService(loader assetLoader, cfg RenderConfig, metrics *MetricsService, logger *zap.Logger) *RenderService {
	if cfg.AssetTimeout <= 0 {
		cfg.AssetTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderService{assets: loader, cfg: cfg, metrics: metrics, logger: logger, encodeQR: export.QRCodePNG}
}

// DocumentFilename is the download name for a certificate PDF.
func DocumentFilename(folio string) string {
	return "Certificado_" + folio + ".pdf"
}

type renderJob struct {
	ctx     context.Context
	cert    *models.Certificate
	canvas  *export.Canvas
	skipped []string
}

// Render draws cert using tpl, or the built-in layout when tpl is nil.
func (s *RenderService) Render(ctx context.Context, cert *models.Certificate, tpl *models.Template) (*Document, error) {
	if cert == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "certificate is required")
	}
	start := time.Now()

	width, height, unit := defaultPageWidth, defaultPageHeight, export.UnitMillimetre
	if tpl != nil {
		width, height, unit = tpl.Width, tpl.Height, templateUnit(tpl.Width)
	}
	canvas, err := export.NewCanvas(export.CanvasOptions{
		Width:    width,
		Height:   height,
		Unit:     unit,
		Compress: s.cfg.Compress,
		Title:    "Certificado " + cert.Folio,
	})
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrRender, "")
	}

	job := &renderJob{ctx: ctx, cert: cert, canvas: canvas}
	if tpl != nil {
		err = s.drawTemplate(job, tpl)
	} else {
		err = s.drawDefault(job)
	}
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrRender, "")
	}

	content, err := canvas.Bytes()
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrRender, "")
	}
	s.metrics.ObserveRender(time.Since(start), len(job.skipped))

	return &Document{
		Content:       content,
		Filename:      DocumentFilename(cert.Folio),
		ContentType:   pdfContentType,
		Texts:         canvas.Texts(),
		SkippedAssets: job.skipped,
		Unit:          unit,
		Width:         width,
		Height:        height,
	}, nil
}

func templateUnit(width float64) string {
	if width > pixelUnitThreshold {
		return export.UnitPixel
	}
	return export.UnitMillimetre
}

func (s *RenderService) drawTemplate(job *renderJob, tpl *models.Template) error {
	if tpl.BackgroundImageURL != "" {
		s.drawImage(job, "background", tpl.BackgroundImageURL, 0, 0, tpl.Width, tpl.Height, 0)
	}
	for _, el := range tpl.Elements {
		if err := s.drawElement(job, el); err != nil {
			return err
		}
	}
	return nil
}

func (s *RenderService) drawElement(job *renderJob, el models.Element) error {
	base := el.Base()
	switch e := el.(type) {
	case models.TextElement:
		return s.drawText(job, base, ResolvePlaceholders(e.Content, job.cert))
	case models.VariableElement:
		content := e.Content
		if !strings.Contains(content, "{{") {
			content = "{{" + strings.TrimSpace(content) + "}}"
		}
		return s.drawText(job, base, ResolvePlaceholders(content, job.cert))
	case models.QRElement:
		size := base.Style.Width
		if size <= 0 {
			size = defaultQRSize
		}
		return s.drawQR(job, "qr-"+base.ID, base.Position.X, base.Position.Y, size)
	case models.ImageElement:
		w, h := base.Style.Width, base.Style.Height
		if w <= 0 {
			w = defaultImageSize
		}
		if h <= 0 {
			h = defaultImageSize
		}
		s.drawImage(job, "image-"+base.ID, e.Source, base.Position.X, base.Position.Y, w, h, base.Style.Opacity)
		return nil
	default:
		return fmt.Errorf("unsupported template element %T", el)
	}
}

func (s *RenderService) drawText(job *renderJob, base models.ElementBase, text string) error {
	style := base.Style
	return job.canvas.DrawText(export.TextSpec{
		Text:       text,
		X:          base.Position.X,
		Y:          base.Position.Y,
		FontFamily: style.FontFamily,
		FontSize:   style.FontSize,
		Color:      export.ParseHexColor(style.Color),
		Align:      strings.ToLower(style.Align),
		MaxWidth:   style.Width,
		Opacity:    style.Opacity,
	})
}

func (s *RenderService) drawQR(job *renderJob, name string, x, y, size float64) error {
	png, err := s.encodeQR(job.cert.VerificationURL)
	if err != nil {
		return err
	}
	return job.canvas.DrawImage(export.ImageSpec{Name: name, Data: png, ImageType: "PNG", X: x, Y: y, Width: size, Height: size})
}

// drawImage loads and places an image. Failures are logged and recorded but
// never abort the document.
func (s *RenderService) drawImage(job *renderJob, name, source string, x, y, w, h, opacity float64) {
	if s.assets == nil {
		job.skip(source)
		return
	}
	ctx, cancel := context.WithTimeout(job.ctx, s.cfg.AssetTimeout)
	defer cancel()

	img, err := s.assets.Load(ctx, source)
	if err == nil {
		err = job.canvas.DrawImage(export.ImageSpec{Name: name, Data: img.Data, ImageType: img.Type, X: x, Y: y, Width: w, Height: h, Opacity: opacity})
	}
	if err != nil {
		s.logger.Warn("certificate image skipped",
			zap.String("folio", job.cert.Folio),
			zap.String("element", name),
			zap.Error(err),
		)
		job.skip(source)
	}
}

func (j *renderJob) skip(source string) {
	if strings.HasPrefix(source, "data:") {
		source = "data-uri"
	}
	j.skipped = append(j.skipped, source)
}

func (s *RenderService) drawDefault(job *renderJob) error {
	cert := job.cert
	w, h := job.canvas.Size()
	center := w / 2

	if s.cfg.LogoPath != "" {
		s.drawImage(job, "logo", s.cfg.LogoPath, center-20, 20, 40, 40, 0)
	}

	lines := []export.TextSpec{
		{Text: "CERTIFICADO DE RECONOCIMIENTO", Y: 70, FontFamily: "helvetica", FontStyle: "bold", FontSize: 30},
		{Text: "Se otorga el presente a:", Y: 90, FontFamily: "helvetica", FontSize: 16},
		{Text: cert.StudentName, Y: 105, FontFamily: "times", FontStyle: "bolditalic", FontSize: 40},
		{Text: "Por haber concluido satisfactoriamente el programa:", Y: 122, FontFamily: "helvetica", FontSize: 16},
		{Text: cert.AcademicProgram, Y: 135, FontFamily: "helvetica", FontStyle: "bold", FontSize: 22, MaxWidth: w - 40},
		{Text: "Fecha de emisión: " + FormatSpanishDate(cert.IssueDate), Y: 160, FontFamily: "helvetica", FontSize: 12},
		{Text: "Folio: " + cert.Folio, Y: 166, FontFamily: "helvetica", FontSize: 12},
	}
	for _, line := range lines {
		line.X = center
		line.Align = export.AlignCenter
		if err := job.canvas.DrawText(line); err != nil {
			return err
		}
	}

	return s.drawQR(job, "qr", w-40, h-40, defaultQRSize)
}

// ResolvePlaceholders replaces {{name}} tokens with certificate values.
// Unknown names are replaced by the bare name.
func ResolvePlaceholders(content string, cert *models.Certificate) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		if value, ok := placeholderValue(name, cert); ok {
			return value
		}
		return name
	})
}

func placeholderValue(name string, cert *models.Certificate) (string, bool) {
	if cert == nil {
		return "", false
	}
	switch name {
	case "studentName":
		return cert.StudentName, true
	case "studentId":
		return cert.StudentID, true
	case "folio":
		return cert.Folio, true
	case "academicProgram":
		return cert.AcademicProgram, true
	case "type":
		return string(cert.Type), true
	case "status":
		return string(cert.Status), true
	case "verificationUrl":
		return cert.VerificationURL, true
	case "issueDate":
		return FormatSpanishDate(cert.IssueDate), true
	case "expirationDate":
		if cert.ExpirationDate == nil {
			return "", true
		}
		return FormatSpanishDate(*cert.ExpirationDate), true
	}
	if key, ok := strings.CutPrefix(name, "metadata."); ok {
		return cert.Metadata.String(key)
	}
	return "", false
}

// FormatSpanishDate renders t as a Spanish long date, e.g. "18 de octubre de 2026".
func FormatSpanishDate(t time.Time) string {
	return monday.Format(t, "2 de January de 2006", monday.LocaleEsES)
}
