package thumbnail

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strings"

	_ "image/jpeg"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

var palette = []color.NRGBA{
	{R: 0x1F, G: 0x3A, B: 0x5F, A: 0xFF},
	{R: 0x2E, G: 0x6B, B: 0x4F, A: 0xFF},
	{R: 0x6B, G: 0x2E, B: 0x5F, A: 0xFF},
	{R: 0x8C, G: 0x4A, B: 0x1E, A: 0xFF},
	{R: 0x34, G: 0x34, B: 0x6E, A: 0xFF},
	{R: 0x5A, G: 0x1E, B: 0x1E, A: 0xFF},
}

// Renderer draws title cards used as placeholder thumbnails for media
// modules while the real asset is generated.
type Renderer struct {
	Width  int
	Height int

	titleFace    font.Face
	subtitleFace font.Face
}

func NewRenderer(width, height int) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}
	titleFace, err := loadFace(gobold.TTF, float64(height)/11)
	if err != nil {
		return nil, fmt.Errorf("load title font: %w", err)
	}
	subtitleFace, err := loadFace(goregular.TTF, float64(height)/24)
	if err != nil {
		return nil, fmt.Errorf("load subtitle font: %w", err)
	}
	return &Renderer{Width: width, Height: height, titleFace: titleFace, subtitleFace: subtitleFace}, nil
}

func loadFace(ttf []byte, size float64) (font.Face, error) {
	parsed, err := truetype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(parsed, &truetype.Options{Size: size, Hinting: font.HintingFull}), nil
}

// ColorFor picks a stable background color for title.
func ColorFor(title string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(title))))
	return palette[int(h.Sum32()%uint32(len(palette)))]
}

// TitleCard renders a PNG with title centered and an optional caption
// (e.g. "Generating video…") underneath.
func (r *Renderer) TitleCard(title, caption string) ([]byte, error) {
	w, h := float64(r.Width), float64(r.Height)
	dc := gg.NewContext(r.Width, r.Height)

	bg := ColorFor(title)
	grad := gg.NewLinearGradient(0, 0, w, h)
	grad.AddColorStop(0, bg)
	grad.AddColorStop(1, darken(bg, 0.55))
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	// play glyph
	dc.SetColor(color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0x40})
	cx, cy, rad := w/2, h*0.28, h*0.09
	dc.DrawCircle(cx, cy, rad)
	dc.Fill()
	dc.SetColor(color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xD0})
	dc.MoveTo(cx-rad*0.35, cy-rad*0.5)
	dc.LineTo(cx+rad*0.55, cy)
	dc.LineTo(cx-rad*0.35, cy+rad*0.5)
	dc.ClosePath()
	dc.Fill()

	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}
	dc.SetFontFace(r.titleFace)
	dc.SetColor(color.White)
	dc.DrawStringWrapped(title, w/2, h*0.58, 0.5, 0.5, w*0.8, 1.3, gg.AlignCenter)

	if caption = strings.TrimSpace(caption); caption != "" {
		dc.SetFontFace(r.subtitleFace)
		dc.SetColor(color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xB0})
		dc.DrawStringAnchored(caption, w/2, h*0.85, 0.5, 0.5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Downscale decodes raw (png/jpeg) and fits it inside maxW x maxH keeping
// aspect ratio. Images already small enough are re-encoded unchanged.
func Downscale(raw []byte, maxW, maxH int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == 0 || sh == 0 {
		return nil, fmt.Errorf("empty image")
	}
	scale := 1.0
	if maxW > 0 && sw > maxW {
		scale = float64(maxW) / float64(sw)
	}
	if maxH > 0 && float64(sh)*scale > float64(maxH) {
		scale = float64(maxH) / float64(sh)
	}
	dw, dh := int(float64(sw)*scale), int(float64(sh)*scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func darken(c color.NRGBA, f float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(float64(c.R) * f),
		G: uint8(float64(c.G) * f),
		B: uint8(float64(c.B) * f),
		A: c.A,
	}
}
