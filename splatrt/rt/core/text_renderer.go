package core

import (
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	atlasSize    = 512
	atlasPadding = 2
	firstGlyph   = ' '
	lastGlyph    = '~'
)

type TextVertex struct {
	Pos   [2]float32
	UV    [2]float32
	Color [4]float32
}

type TextItem struct {
	Text     string
	Position [2]float32 // Pixels from the top-left corner
	Scale    float32
	Color    [4]float32
}

// GlyphInfo locates one rune in the atlas. Size and Off are in face pixels.
type GlyphInfo struct {
	UVMin [2]float32
	UVMax [2]float32
	Size  [2]float32
	Off   [2]float32
	Adv   float32
}

// TextRenderer lays out HUD text as textured quads over a single alpha atlas.
type TextRenderer struct {
	AtlasImage *image.Alpha
	Glyphs     map[rune]GlyphInfo
	Face       font.Face

	ascent     float32
	lineHeight float32
}

// NewDefaultTextRenderer uses the built-in 7x13 bitmap face, so the HUD works
// without any font file on disk.
func NewDefaultTextRenderer() *TextRenderer {
	return NewTextRenderer(basicfont.Face7x13)
}

// NewTextRenderer packs printable ASCII of face into the atlas.
func NewTextRenderer(face font.Face) *TextRenderer {
	m := face.Metrics()
	tr := &TextRenderer{
		AtlasImage: image.NewAlpha(image.Rect(0, 0, atlasSize, atlasSize)),
		Glyphs:     make(map[rune]GlyphInfo, lastGlyph-firstGlyph+1),
		Face:       face,
		ascent:     float32(m.Ascent.Ceil()),
		lineHeight: float32(m.Height.Ceil()),
	}
	tr.packAtlas()
	return tr
}

func (tr *TextRenderer) packAtlas() {
	cursor := image.Pt(atlasPadding, atlasPadding)
	shelf := 0
	for r := rune(firstGlyph); r <= lastGlyph; r++ {
		dr, mask, maskp, adv, ok := tr.Face.Glyph(fixed.Point26_6{}, r)
		if !ok {
			continue
		}
		size := dr.Size()
		if cursor.X+size.X+atlasPadding > atlasSize {
			cursor = image.Pt(atlasPadding, cursor.Y+shelf+2*atlasPadding)
			shelf = 0
		}
		if cursor.Y+size.Y+atlasPadding > atlasSize {
			return
		}
		cell := image.Rectangle{Min: cursor, Max: cursor.Add(size)}
		// maskp locates the glyph inside a shared mask image for bitmap faces.
		draw.Draw(tr.AtlasImage, cell, mask, maskp, draw.Src)

		tr.Glyphs[r] = GlyphInfo{
			UVMin: atlasUV(cell.Min),
			UVMax: atlasUV(cell.Max),
			Size:  [2]float32{float32(size.X), float32(size.Y)},
			Off:   [2]float32{float32(dr.Min.X), float32(dr.Min.Y)},
			Adv:   float32(adv) / 64,
		}
		cursor.X += size.X + 2*atlasPadding
		shelf = max(shelf, size.Y)
	}
}

func atlasUV(p image.Point) [2]float32 {
	return [2]float32{float32(p.X) / atlasSize, float32(p.Y) / atlasSize}
}

// walk calls fn for every known glyph of text with its pen position relative
// to the item origin, in unscaled pixels. It returns the widest line and the
// line count.
func (tr *TextRenderer) walk(text string, fn func(g GlyphInfo, penX, penY float32)) (float32, int) {
	var penX, widest float32
	lines := 1
	for _, r := range text {
		if r == '\n' {
			widest = max(widest, penX)
			penX = 0
			lines++
			continue
		}
		g, ok := tr.Glyphs[r]
		if !ok {
			continue
		}
		if fn != nil {
			fn(g, penX, tr.ascent+float32(lines-1)*tr.lineHeight)
		}
		penX += g.Adv
	}
	return max(widest, penX), lines
}

// BuildVertices emits six vertices per glyph in NDC for a screenW x screenH
// viewport.
func (tr *TextRenderer) BuildVertices(items []TextItem, screenW, screenH int) []TextVertex {
	vertices := make([]TextVertex, 0, len(items)*6)
	if screenW <= 0 || screenH <= 0 {
		return vertices
	}
	toNDC := func(x, y float32) [2]float32 {
		return [2]float32{x/float32(screenW)*2 - 1, 1 - y/float32(screenH)*2}
	}
	for _, item := range items {
		s := item.Scale
		tr.walk(item.Text, func(g GlyphInfo, penX, penY float32) {
			left := item.Position[0] + (penX+g.Off[0])*s
			top := item.Position[1] + (penY+g.Off[1])*s
			vertices = appendQuad(vertices,
				toNDC(left, top), toNDC(left+g.Size[0]*s, top+g.Size[1]*s),
				g.UVMin, g.UVMax, item.Color)
		})
	}
	return vertices
}

// appendQuad adds two triangles covering the rectangle from p0 (top-left) to
// p1 (bottom-right).
func appendQuad(dst []TextVertex, p0, p1, uv0, uv1 [2]float32, color [4]float32) []TextVertex {
	corner := func(px, py int) TextVertex {
		pos := [2]float32{p0[0], p0[1]}
		uv := [2]float32{uv0[0], uv0[1]}
		if px == 1 {
			pos[0], uv[0] = p1[0], uv1[0]
		}
		if py == 1 {
			pos[1], uv[1] = p1[1], uv1[1]
		}
		return TextVertex{Pos: pos, UV: uv, Color: color}
	}
	return append(dst,
		corner(0, 0), corner(1, 0), corner(0, 1),
		corner(1, 0), corner(1, 1), corner(0, 1),
	)
}

// MeasureText returns the pixel extent of text drawn at scale.
func (tr *TextRenderer) MeasureText(text string, scale float32) (float32, float32) {
	if tr == nil {
		return 0, 0
	}
	w, lines := tr.walk(text, nil)
	return w * scale, tr.lineHeight * scale * float32(lines)
}
