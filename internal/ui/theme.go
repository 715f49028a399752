// Package ui provides the SlabCut Remote desktop front end.
//
// This file defines the compact Fyne theme used by the editors and the
// results panel.

package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// Theme names accepted in AppConfig.Theme.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// SlabCutTheme wraps the default Fyne theme with compact sizing so that
// long stock and piece lists fit on screen.
type SlabCutTheme struct {
	base    fyne.Theme
	variant fyne.ThemeVariant
	system  bool // follow the variant Fyne asks for
}

// NewSlabCutTheme creates a theme that follows the system light/dark setting.
func NewSlabCutTheme() *SlabCutTheme {
	return &SlabCutTheme{base: theme.DefaultTheme(), system: true}
}

// NewSlabCutThemeWithVariant creates a theme pinned to one variant.
func NewSlabCutThemeWithVariant(variant fyne.ThemeVariant) *SlabCutTheme {
	return &SlabCutTheme{base: theme.DefaultTheme(), variant: variant}
}

// ThemeFromName maps a configured theme name to a theme. Unknown names
// follow the system.
func ThemeFromName(name string) *SlabCutTheme {
	switch name {
	case ThemeLight:
		return NewSlabCutThemeWithVariant(theme.VariantLight)
	case ThemeDark:
		return NewSlabCutThemeWithVariant(theme.VariantDark)
	default:
		return NewSlabCutTheme()
	}
}

// Color delegates to the base theme, substituting the pinned variant.
func (t *SlabCutTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	if !t.system {
		variant = t.variant
	}
	return t.base.Color(name, variant)
}

func (t *SlabCutTheme) Font(style fyne.TextStyle) fyne.Resource {
	return t.base.Font(style)
}

func (t *SlabCutTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return t.base.Icon(name)
}

// Size shrinks text and padding for dense editor rows.
func (t *SlabCutTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return 12
	case theme.SizeNameCaptionText:
		return 9
	case theme.SizeNameHeadingText:
		return 20
	case theme.SizeNameSubHeadingText:
		return 15
	case theme.SizeNamePadding:
		return 3
	case theme.SizeNameInnerPadding:
		return 6
	case theme.SizeNameInlineIcon:
		return 16
	default:
		return t.base.Size(name)
	}
}
