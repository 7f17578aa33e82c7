package excel

import (
	"strconv"
	"strings"
)

// ColorKey identifies a fill color: "theme:<n>" for theme swatches, otherwise
// a six digit upper-case RGB hex string.
type ColorKey string

const themePrefix = "theme:"

func ThemeKey(index int) ColorKey {
	return ColorKey(themePrefix + strconv.Itoa(index))
}

func (k ColorKey) IsTheme() bool {
	return strings.HasPrefix(string(k), themePrefix)
}

// Color mirrors a <fgColor>/<bgColor> element of a pattern fill.
type Color struct {
	Theme   *int
	Tint    float64
	RGB     string
	Indexed *int
	Auto    bool
}

func (c Color) empty() bool {
	return c.Theme == nil && c.RGB == "" && c.Indexed == nil
}

type Fill struct {
	Pattern string
	Fg      Color
	Bg      Color
}

// SolidFill is a convenience for literal RGB solid fills.
func SolidFill(rgb string) Fill {
	return Fill{Pattern: "solid", Fg: Color{RGB: rgb}}
}

// ThemeFill is a solid fill using a theme swatch.
func ThemeFill(index int) Fill {
	return Fill{Pattern: "solid", Fg: Color{Theme: &index}}
}

const (
	indexedSystemForeground = 64
	indexedSystemBackground = 65
)

// ResolveColor returns the canonical color key of a fill, or false when the
// cell has no meaningful fill. Theme colors win over literal RGB, and the
// foreground color wins over the background color.
func ResolveColor(f Fill) (ColorKey, bool) {
	switch strings.ToLower(f.Pattern) {
	case "", "none":
		return "", false
	}

	c := f.Fg
	if c.empty() {
		c = f.Bg
	}
	if c.Auto && c.empty() {
		return "", false
	}

	if c.Theme != nil {
		return ThemeKey(*c.Theme), true
	}

	if c.RGB != "" {
		return rgbKey(c.RGB)
	}

	if c.Indexed != nil {
		idx := *c.Indexed
		if idx == indexedSystemForeground || idx == indexedSystemBackground {
			return "", false
		}
		if idx >= 0 && idx < len(legacyPalette) {
			return rgbKey(legacyPalette[idx])
		}
	}

	return "", false
}

func rgbKey(raw string) (ColorKey, bool) {
	rgb, ok := NormalizeRGB(raw)
	if !ok {
		return "", false
	}
	if rgb == "FFFFFF" || rgb == "000000" {
		return "", false
	}
	return ColorKey(rgb), true
}

// NormalizeRGB accepts "#RRGGBB", "RRGGBB" or "AARRGGBB" and returns RRGGBB.
func NormalizeRGB(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
	if len(s) == 8 {
		s = s[2:]
	}
	if len(s) != 6 {
		return "", false
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return "", false
	}
	return s, true
}

// legacyPalette is the default 56-color indexed palette of SpreadsheetML.
var legacyPalette = [64]string{
	"000000", "FFFFFF", "FF0000", "00FF00", "0000FF", "FFFF00", "FF00FF", "00FFFF",
	"000000", "FFFFFF", "FF0000", "00FF00", "0000FF", "FFFF00", "FF00FF", "00FFFF",
	"800000", "008000", "000080", "808000", "800080", "008080", "C0C0C0", "808080",
	"9999FF", "993366", "FFFFCC", "CCFFFF", "660066", "FF8080", "0066CC", "CCCCFF",
	"000080", "FF00FF", "FFFF00", "00FFFF", "800080", "800000", "008080", "0000FF",
	"00CCFF", "CCFFFF", "CCFFCC", "FFFF99", "99CCFF", "FF99CC", "CC99FF", "FFCC99",
	"3366FF", "33CCCC", "99CC00", "FFCC00", "FF9900", "FF6600", "666699", "969696",
	"003366", "339966", "003300", "333300", "993300", "993366", "333399", "333333",
}
