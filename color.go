package vterm

import "image/color"

// ColorKind tags the variant held by a Color value.
type ColorKind uint8

const (
	// ColorDefault means "use the pen's default foreground/background",
	// resolved by the renderer rather than fixed at write time.
	ColorDefault ColorKind = iota
	// ColorPalette selects one of the 256 palette entries.
	ColorPalette
	// ColorRGB is a direct 24-bit color (SGR 38/48;2;r;g;b).
	ColorRGB
)

// Color is a small, comparable tagged union so that Cell stays a flat,
// copyable value instead of holding interface pointers. This mirrors the
// tagged-union color model the spec requires cells to use internally, in
// place of the teacher's image/color.Color + *IndexedColor/*NamedColor
// pointer types.
type Color struct {
	Kind  ColorKind
	Index uint8 // valid when Kind == ColorPalette
	R, G, B uint8 // valid when Kind == ColorRGB
}

// DefaultColor is the zero value: "use the pen default".
var DefaultColor = Color{Kind: ColorDefault}

// Palette returns a Color selecting the given 256-color palette index.
func Palette(index uint8) Color {
	return Color{Kind: ColorPalette, Index: index}
}

// RGB returns a direct 24-bit Color.
func RGB(r, g, b uint8) Color {
	return Color{Kind: ColorRGB, R: r, G: g, B: b}
}

// DefaultPalette is the standard 256-color palette: 16 named colors (0-15),
// a 6x6x6 color cube (16-231), and a 24-step grayscale ramp (232-255).
var DefaultPalette = [256]color.RGBA{
	{0, 0, 0, 255},       // Black
	{205, 49, 49, 255},   // Red
	{13, 188, 121, 255},  // Green
	{229, 229, 16, 255},  // Yellow
	{36, 114, 200, 255},  // Blue
	{188, 63, 188, 255},  // Magenta
	{17, 168, 205, 255},  // Cyan
	{229, 229, 229, 255}, // White

	{102, 102, 102, 255}, // Bright Black
	{241, 76, 76, 255},   // Bright Red
	{35, 209, 139, 255},  // Bright Green
	{245, 245, 67, 255},  // Bright Yellow
	{59, 142, 234, 255},  // Bright Blue
	{214, 112, 214, 255}, // Bright Magenta
	{41, 184, 219, 255},  // Bright Cyan
	{255, 255, 255, 255}, // Bright White
}

func init() {
	i := 16
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				DefaultPalette[i] = color.RGBA{
					R: uint8(r * 51),
					G: uint8(g * 51),
					B: uint8(b * 51),
					A: 255,
				}
				i++
			}
		}
	}

	for j := 0; j < 24; j++ {
		gray := uint8(8 + j*10)
		DefaultPalette[232+j] = color.RGBA{gray, gray, gray, 255}
	}
}

// DefaultForeground is the default text color (light gray).
var DefaultForeground = color.RGBA{229, 229, 229, 255}

// DefaultBackground is the default background color (black).
var DefaultBackground = color.RGBA{0, 0, 0, 255}

// DefaultCursorColor is the default cursor rendering color.
var DefaultCursorColor = color.RGBA{229, 229, 229, 255}

// Resolve converts c to a concrete RGBA using DefaultPalette. fg selects
// whether ColorDefault resolves to the default foreground or background.
func (c Color) Resolve(fg bool) color.RGBA {
	switch c.Kind {
	case ColorPalette:
		return DefaultPalette[c.Index]
	case ColorRGB:
		return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
	default:
		if fg {
			return DefaultForeground
		}
		return DefaultBackground
	}
}

// IsDefault reports whether c is the unset/default color.
func (c Color) IsDefault() bool {
	return c.Kind == ColorDefault
}
