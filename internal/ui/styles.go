// Package ui holds the lipgloss palette shared by the voiceclone views.
package ui

import "github.com/charmbracelet/lipgloss"

// Palette. Accent and Rose match the ends of the waveform gradient.
var (
	ColorAccent = lipgloss.Color("#00D7FF")
	ColorRose   = lipgloss.Color("#FF00AF")
	ColorRec    = lipgloss.Color("#FF3B30")
	ColorHeld   = lipgloss.Color("#FFAF00")
	ColorOK     = lipgloss.Color("#5FD75F")
	ColorWarn   = lipgloss.Color("#FFD75F")
	ColorMuted  = lipgloss.Color("#6C6C6C")
	ColorRule   = lipgloss.Color("#3A3A3A")
	ColorText   = lipgloss.Color("#EEEEEE")
)

var (
	bold = lipgloss.NewStyle().Bold(true)

	// DimStyle is the default for secondary text.
	DimStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	TitleStyle      = bold.Foreground(ColorAccent)
	PanelTitleStyle = bold.Foreground(ColorText)
	DividerStyle    = lipgloss.NewStyle().Foreground(ColorRule)

	StatusStyle     = DimStyle
	TimestampStyle  = DimStyle
	FooterDescStyle = DimStyle
	FooterKeyStyle  = bold.Foreground(ColorWarn)

	// Recorder state dots.
	RecordingDotStyle = bold.Foreground(ColorRec)
	StoppedDotStyle   = lipgloss.NewStyle().Foreground(ColorHeld)
	IdleDotStyle      = DimStyle

	MicLabelStyle    = lipgloss.NewStyle().Foreground(ColorAccent)
	LevelGreenStyle  = lipgloss.NewStyle().Foreground(ColorOK)
	LevelYellowStyle = lipgloss.NewStyle().Foreground(ColorWarn)
	LevelGrayStyle   = lipgloss.NewStyle().Foreground(ColorRule)

	JobActiveStyle = lipgloss.NewStyle().Foreground(ColorWarn)
	JobDoneStyle   = lipgloss.NewStyle().Foreground(ColorOK)
	SpinnerStyle   = lipgloss.NewStyle().Foreground(ColorRose)

	SelectedStyle = bold.Foreground(ColorAccent)
	PlayingStyle  = bold.Foreground(ColorOK)

	ErrorStyle     = bold.Foreground(ColorRec)
	ErrorTextStyle = lipgloss.NewStyle().Foreground(ColorRec)
)
