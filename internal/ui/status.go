package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// UnitRow is one registered or recorded migration unit.
type UnitRow struct {
	Version     int64
	Name        string
	Description string
	State       string
	AppliedAt   time.Time
	Reversible  bool
}

// TableRow is one table of the schema fingerprint.
type TableRow struct {
	Name    string
	Hash    string
	Columns int
}

// StatusData is everything the status screen shows.
type StatusData struct {
	Database    string
	Units       []UnitRow
	Fingerprint string
	Tables      []TableRow
	Violations  []string
	LockedBy    string
}

// Counts returns the number of applied and pending units.
func (d StatusData) Counts() (applied, pending int) {
	for _, u := range d.Units {
		switch u.State {
		case "applied":
			applied++
		case "pending":
			pending++
		}
	}
	return applied, pending
}

// ShowStatus runs the status screen until the user quits.
// initialTab is one of TabUnits, TabVerify or TabDrift.
func ShowStatus(initialTab string, data StatusData) error {
	app := tview.NewApplication()
	root := newStatusView(app, initialTab, data)
	return app.SetRoot(root, true).EnableMouse(true).Run()
}

// newStatusView builds the layout and installs key bindings on app.
func newStatusView(app *tview.Application, initialTab string, data StatusData) tview.Primitive {
	current := initialTab
	if current == "" {
		current = TabUnits
	}

	pages := tview.NewPages()
	pages.AddPage(TabUnits, newUnitsTab(data), true, current == TabUnits)
	pages.AddPage(TabVerify, newVerifyTab(data), true, current == TabVerify)
	pages.AddPage(TabDrift, newDriftTab(data), true, current == TabDrift)

	tabBar := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tabBar.SetBackgroundColor(Theme.Background)
	tabBar.SetText(tabBarText(current))

	header := tview.NewTextView().
		SetText(headerText(data)).
		SetTextColor(Theme.Text).
		SetTextAlign(tview.AlignLeft)
	header.SetBackgroundColor(Theme.Primary)

	statusBar := tview.NewTextView().
		SetText(HintsStatus).
		SetTextColor(Theme.TextDim).
		SetTextAlign(tview.AlignCenter)
	statusBar.SetBackgroundColor(Theme.Background)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, Layout.HeaderHeight, 0, false).
		AddItem(tabBar, Layout.TabBarHeight, 0, false).
		AddItem(pages, 0, 1, true).
		AddItem(statusBar, Layout.StatusBarHeight, 0, false)
	layout.SetBackgroundColor(Theme.Background)

	switchTo := func(tab string) {
		current = tab
		pages.SwitchToPage(tab)
		tabBar.SetText(tabBarText(tab))
	}

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q':
			app.Stop()
			return nil
		case '1':
			switchTo(TabUnits)
			return nil
		case '2':
			switchTo(TabVerify)
			return nil
		case '3':
			switchTo(TabDrift)
			return nil
		// Vim-style navigation
		case 'j':
			return tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)
		case 'k':
			return tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)
		case 'g':
			return tcell.NewEventKey(tcell.KeyHome, 0, tcell.ModNone)
		case 'G':
			return tcell.NewEventKey(tcell.KeyEnd, 0, tcell.ModNone)
		}
		if event.Key() == tcell.KeyEscape {
			app.Stop()
			return nil
		}
		return event
	})

	return layout
}

func headerText(data StatusData) string {
	applied, pending := data.Counts()
	text := fmt.Sprintf(" strata  %s  applied %d  pending %d", data.Database, applied, pending)
	if data.LockedBy != "" {
		text += "  locked by " + data.LockedBy
	}
	return text
}

func tabBarText(active string) string {
	var b strings.Builder
	for _, tab := range tabs {
		b.WriteString(" ")
		if tab.id == active {
			b.WriteString(TagSelected + " " + tab.label + " " + TagEnd)
		} else {
			b.WriteString(TagMuted + " " + tab.label + " " + TagReset)
		}
	}
	return b.String()
}

// newSelectableTable returns a bordered table with a bold header row.
func newSelectableTable(headers []string, expansions []int) *tview.Table {
	table := tview.NewTable().
		SetBorders(true).
		SetFixed(1, 0).
		SetSelectable(true, false).
		SetSelectedStyle(tcell.StyleDefault.
			Foreground(Theme.Highlight).
			Background(Theme.Selection))
	table.SetBackgroundColor(Theme.Background)

	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).
			SetTextColor(Theme.Header).
			SetAlign(tview.AlignCenter).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold).
			SetExpansion(expansions[i]))
	}
	return table
}

func newDetails(title string) *tview.TextView {
	details := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	details.SetBackgroundColor(Theme.Background).
		SetBorder(true).
		SetBorderColor(Theme.Border).
		SetTitle(title).
		SetTitleColor(Theme.Accent)
	return details
}

func listWithDetails(list *tview.Table, details *tview.TextView) *tview.Flex {
	grid := tview.NewFlex().
		AddItem(list, 0, Layout.ListRatio, true).
		AddItem(details, 0, Layout.DetailsRatio, false)
	grid.SetBackgroundColor(Theme.Background)
	return grid
}

func stateColor(state string) tcell.Color {
	switch state {
	case "applied":
		return Theme.Success
	case "pending":
		return Theme.Warning
	case "missing":
		return Theme.Error
	default:
		return Theme.TextDim
	}
}

// newUnitsTab lists every unit with its state; the details panel follows the selection.
func newUnitsTab(data StatusData) *tview.Flex {
	ex := []int{Layout.ExpandOther, Layout.ExpandMain, Layout.ExpandOther}
	list := newSelectableTable([]string{"VERSION", "NAME", "STATE"}, ex)
	details := newDetails(" Details ")

	for i, u := range data.Units {
		row := i + 1
		list.SetCell(row, 0, tview.NewTableCell(strconv.FormatInt(u.Version, 10)).
			SetTextColor(Theme.Accent).
			SetAlign(tview.AlignCenter).
			SetExpansion(ex[0]))
		list.SetCell(row, 1, tview.NewTableCell(u.Name).
			SetTextColor(Theme.Text).
			SetExpansion(ex[1]))
		list.SetCell(row, 2, tview.NewTableCell(u.State).
			SetTextColor(stateColor(u.State)).
			SetAlign(tview.AlignCenter).
			SetExpansion(ex[2]))
	}

	if len(data.Units) == 0 {
		details.SetText(TagMuted + "No migration units registered." + TagReset)
	} else {
		list.Select(1, 0)
		details.SetText(unitDetails(data.Units[0]))
		list.SetSelectionChangedFunc(func(row, _ int) {
			if row > 0 && row <= len(data.Units) {
				details.SetText(unitDetails(data.Units[row-1]))
			}
		})
	}
	return listWithDetails(list, details)
}

// newVerifyTab shows the invariant violations found by the verifier.
func newVerifyTab(data StatusData) *tview.TextView {
	view := newDetails(" Role / Profile Invariants ")
	view.SetText(verifyText(data.Violations))
	return view
}

// newDriftTab lists per-table hashes under the schema fingerprint.
func newDriftTab(data StatusData) *tview.Flex {
	ex := []int{Layout.ExpandMain, Layout.ExpandOther, Layout.ExpandOther}
	list := newSelectableTable([]string{"TABLE", "COLUMNS", "HASH"}, ex)
	details := newDetails(" Fingerprint ")

	for i, t := range data.Tables {
		row := i + 1
		list.SetCell(row, 0, tview.NewTableCell(t.Name).
			SetTextColor(Theme.Text).
			SetExpansion(ex[0]))
		list.SetCell(row, 1, tview.NewTableCell(strconv.Itoa(t.Columns)).
			SetTextColor(Theme.TextDim).
			SetAlign(tview.AlignCenter).
			SetExpansion(ex[1]))
		list.SetCell(row, 2, tview.NewTableCell(shortHash(t.Hash)).
			SetTextColor(Theme.Accent).
			SetAlign(tview.AlignCenter).
			SetExpansion(ex[2]))
	}
	if len(data.Tables) > 0 {
		list.Select(1, 0)
	}
	details.SetText(TagLabel + "Root:" + TagValue + "\n" + data.Fingerprint + "\n\n" +
		TagMuted + "Compare with `strata fingerprint` on another database." + TagReset)
	return listWithDetails(list, details)
}
