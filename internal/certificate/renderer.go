// Package certificate renders pass certificates as PNG images and wraps them
// in a single-page PDF.
package certificate

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"wastequiz/internal/quiz"
)

const (
	imageWidth  = 1600
	imageHeight = 1131 // A4 landscape ratio
	borderWidth = 24
	dpi         = 72
	dateLayout  = "2 January 2006"
)

var (
	paper  = color.RGBA{R: 0xfb, G: 0xf8, B: 0xef, A: 0xff}
	accent = color.RGBA{R: 0x2e, G: 0x7d, B: 0x32, A: 0xff}
	ink    = color.RGBA{R: 0x21, G: 0x21, B: 0x21, A: 0xff}
)

var _ quiz.CertificateIssuer = (*Renderer)(nil)

// Renderer is safe for concurrent use; font faces are created per render.
type Renderer struct {
	issuer  string
	regular *opentype.Font
	bold    *opentype.Font
}

func NewRenderer(issuer string) (*Renderer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &Renderer{
		issuer:  strings.TrimSpace(issuer),
		regular: regular,
		bold:    bold,
	}, nil
}

type line struct {
	text string
	font *opentype.Font
	size float64
	ink  color.Color
	y    int
}

func (r *Renderer) Render(displayName string, score int, totalScore float64, at time.Time) ([]byte, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, errors.New("display name is required")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, imageWidth, imageHeight))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: accent}, image.Point{}, draw.Src)
	inner := image.Rect(borderWidth, borderWidth, imageWidth-borderWidth, imageHeight-borderWidth)
	draw.Draw(canvas, inner, &image.Uniform{C: paper}, image.Point{}, draw.Src)

	lines := []line{
		{text: "Certificate of Completion", font: r.bold, size: 72, ink: accent, y: 260},
		{text: "Waste Management Knowledge Test", font: r.regular, size: 36, ink: ink, y: 350},
		{text: "This certifies that", font: r.regular, size: 32, ink: ink, y: 480},
		{text: displayName, font: r.bold, size: 64, ink: ink, y: 580},
		{text: fmt.Sprintf("passed with a score of %d / %s", score, formatTotal(totalScore)), font: r.regular, size: 36, ink: ink, y: 690},
		{text: at.UTC().Format(dateLayout), font: r.regular, size: 28, ink: ink, y: 800},
	}
	if r.issuer != "" {
		lines = append(lines, line{text: r.issuer, font: r.bold, size: 30, ink: accent, y: 960})
	}

	for _, l := range lines {
		if err := drawCentered(canvas, l); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ToPortableDocument places the PNG on a single A4 landscape page.
func (r *Renderer) ToPortableDocument(imageBytes []byte) ([]byte, error) {
	if len(imageBytes) == 0 {
		return nil, errors.New("certificate image is empty")
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Certificate of Completion", true)
	if r.issuer != "" {
		pdf.SetAuthor(r.issuer, true)
	}
	pdf.AddPage()

	options := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("certificate", options, bytes.NewReader(imageBytes))
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("register certificate image: %w", err)
	}

	pageWidth, pageHeight := pdf.GetPageSize()
	pdf.ImageOptions("certificate", 0, 0, pageWidth, pageHeight, false, options, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawCentered(dst draw.Image, l line) error {
	face, err := opentype.NewFace(l.font, &opentype.FaceOptions{
		Size:    l.size,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(l.ink),
		Face: face,
	}
	width := drawer.MeasureString(l.text).Ceil()
	x := (imageWidth - width) / 2
	if x < borderWidth {
		x = borderWidth
	}
	drawer.Dot = fixed.P(x, l.y)
	drawer.DrawString(l.text)
	return nil
}

func formatTotal(total float64) string {
	if total == float64(int64(total)) {
		return fmt.Sprintf("%d", int64(total))
	}
	return fmt.Sprintf("%.2f", total)
}
