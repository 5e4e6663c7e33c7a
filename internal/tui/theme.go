package tui

import (
	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette of the meal table. All colors use lipgloss
// ANSI 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// PendingAccent marks rows whose content has not been stored yet.
	PendingAccent lipgloss.Color
	ErrorText     lipgloss.Color

	TypeColors map[meals.MealType]lipgloss.Color
}

// TypeColor returns the color of a meal type, or FaintText for unknown types.
func (theme Theme) TypeColor(mealType meals.MealType) lipgloss.Color {
	if color, ok := theme.TypeColors[mealType]; ok {
		return color
	}
	return theme.FaintText
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("243"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	PendingAccent: lipgloss.Color("220"),
	ErrorText:     lipgloss.Color("196"),

	TypeColors: map[meals.MealType]lipgloss.Color{
		meals.MealTypeBreakfast: lipgloss.Color("221"), // amber
		meals.MealTypeLunch:     lipgloss.Color("114"), // green
		meals.MealTypeDinner:    lipgloss.Color("75"),  // blue
		meals.MealTypeSnack:     lipgloss.Color("141"), // purple
		meals.MealTypeHealthy:   lipgloss.Color("42"),  // teal
		meals.MealTypeCheat:     lipgloss.Color("203"), // salmon
	},
}
