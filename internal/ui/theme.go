// Package ui renders the interactive status screen of strata with tview.
package ui

import "github.com/gdamore/tcell/v2"

// Theme defines the color scheme of the status screen.
var Theme = struct {
	Primary   tcell.Color
	Success   tcell.Color
	Warning   tcell.Color
	Error     tcell.Color
	Accent    tcell.Color
	Text      tcell.Color
	TextDim   tcell.Color
	Highlight tcell.Color

	Background tcell.Color
	Border     tcell.Color
	Header     tcell.Color
	Selection  tcell.Color
}{
	Primary:   tcell.ColorBlue,
	Success:   tcell.ColorGreen,
	Warning:   tcell.ColorYellow,
	Error:     tcell.ColorRed,
	Accent:    tcell.ColorAqua, // tcell v2 uses ColorAqua for cyan
	Text:      tcell.ColorWhite,
	TextDim:   tcell.ColorGray,
	Highlight: tcell.ColorBlack,

	Background: tcell.ColorBlack,
	Border:     tcell.ColorGray,
	Header:     tcell.ColorYellow,
	Selection:  tcell.ColorTeal,
}

// Layout holds fixed sizes and flex ratios.
var Layout = struct {
	HeaderHeight    int
	TabBarHeight    int
	StatusBarHeight int
	ListRatio       int
	DetailsRatio    int
	ExpandMain      int
	ExpandOther     int
}{
	HeaderHeight:    1,
	TabBarHeight:    1,
	StatusBarHeight: 1,
	ListRatio:       3,
	DetailsRatio:    2,
	ExpandMain:      3,
	ExpandOther:     1,
}

// TView color tags
const (
	TagLabel   = "[yellow]"
	TagValue   = "[white]"
	TagSuccess = "[green]"
	TagError   = "[red]"
	TagMuted   = "[gray]"
	TagReset   = "[-]"

	TagSelected = "[black:white]"
	TagEnd      = "[-:-]"
)

// Tab identifiers
const (
	TabUnits  = "units"
	TabVerify = "verify"
	TabDrift  = "drift"
)

var tabs = []struct{ id, label string }{
	{TabUnits, "1 Units"},
	{TabVerify, "2 Verify"},
	{TabDrift, "3 Drift"},
}

// HintsStatus is shown in the bottom bar.
const HintsStatus = " q quit  1/2/3 tabs  j/k navigate  g/G top/bottom "
