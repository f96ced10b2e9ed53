// Package layout turns a split request into the Lua script that creates the
// target window. Planning is pure: no I/O, and identical requests produce
// byte-identical scripts, so the editor-side effect is fully determined by
// the request.
package layout

import (
	"fmt"
	"strings"

	"github.com/nvopen/nvopen/internal/errors"
)

// Request describes the window to create before any file is opened.
//
// The four ratio fields size the window as if that many same-direction
// splits had already happened; the four cell fields size it in absolute
// columns or rows. Exactly one of the eight must be set. Popup switches
// from a real split to a floating window.
type Request struct {
	Right int
	Left  int
	Below int
	Above int

	RightCols int
	LeftCols  int
	BelowRows int
	AboveRows int

	Popup    bool
	Winblend int
}

// SizeFieldCount returns how many of the eight size fields are set.
func (r Request) SizeFieldCount() int {
	n := 0
	for _, v := range []int{r.Right, r.Left, r.Below, r.Above, r.RightCols, r.LeftCols, r.BelowRows, r.AboveRows} {
		if v > 0 {
			n++
		}
	}
	return n
}

// Implied reports whether any size field is set. The popup flag alone does
// not imply a split; it only changes how a sized request renders.
func (r Request) Implied() bool {
	return r.SizeFieldCount() > 0
}

// Plan generates the Lua script for the request.
//
// Exactly one size field must be set; zero or several is a contract
// violation surfaced as a SplitSpecError, since the options layer only
// constructs coherent requests.
func Plan(r Request) (string, error) {
	switch n := r.SizeFieldCount(); {
	case n == 0:
		return "", errors.NewSplitSpecError("exactly one size field required", errors.ErrNoSplitSize).
			WithFieldCount(0)
	case n > 1:
		return "", errors.NewSplitSpecError("exactly one size field required", errors.ErrAmbiguousSplitSize).
			WithFieldCount(n)
	}

	if r.Popup {
		return planPopup(r), nil
	}
	return planSplit(r), nil
}

// planPopup emits a floating window anchored to the relevant screen edge.
// The sized axis carries the ratio expression or the literal cell count; the
// other axis spans the full editor dimension. Right and below placements
// anchor at the far edge so the popup hugs it.
func planPopup(r Request) string {
	wRatio := func(count int) string {
		return fmt.Sprintf("math.floor(((w / 2) * 3) / %d)", count+1)
	}
	hRatio := func(count int) string {
		return fmt.Sprintf("math.floor(((h / 2) * 3) / %d)", count+1)
	}

	var width, height, row, col string
	switch {
	case r.Right > 0:
		width, height, row, col = wRatio(r.Right), "h", "0", "w"
	case r.Left > 0:
		width, height, row, col = wRatio(r.Left), "h", "0", "0"
	case r.Below > 0:
		width, height, row, col = "w", hRatio(r.Below), "h", "0"
	case r.Above > 0:
		width, height, row, col = "w", hRatio(r.Above), "0", "0"
	case r.RightCols > 0:
		width, height, row, col = fmt.Sprint(r.RightCols), "h", "0", "w"
	case r.LeftCols > 0:
		width, height, row, col = fmt.Sprint(r.LeftCols), "h", "0", "0"
	case r.BelowRows > 0:
		width, height, row, col = "w", fmt.Sprint(r.BelowRows), "h", "0"
	case r.AboveRows > 0:
		width, height, row, col = "w", fmt.Sprint(r.AboveRows), "0", "0"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "local w = vim.api.nvim_win_get_width(0)\n")
	fmt.Fprintf(&b, "local h = vim.api.nvim_win_get_height(0)\n")
	fmt.Fprintf(&b, "local buf = vim.api.nvim_create_buf(true, false)\n")
	fmt.Fprintf(&b, "local win = vim.api.nvim_open_win(buf, true, {\n")
	fmt.Fprintf(&b, "    relative = 'editor',\n")
	fmt.Fprintf(&b, "    width = %s,\n", width)
	fmt.Fprintf(&b, "    height = %s,\n", height)
	fmt.Fprintf(&b, "    row = %s,\n", row)
	fmt.Fprintf(&b, "    col = %s\n", col)
	fmt.Fprintf(&b, "})\n")
	fmt.Fprintf(&b, "vim.api.nvim_set_current_win(win)\n")
	fmt.Fprintf(&b, "vim.api.nvim_win_set_option(win, 'winblend', %d)\n", r.Winblend)
	return b.String()
}

// planSplit emits a real split. A split divides existing space, so a ratio
// size is spliced into the command string as a Lua expression over the
// pre-split dimension and evaluated editor-side. The new window gets a
// win-fix option on its sized axis so later rebalancing leaves it alone.
func planSplit(r Request) string {
	wRatio := func(count int) string {
		return fmt.Sprintf("' .. tostring(math.floor(((w / 2) * 3) / %d)) .. '", count+1)
	}
	hRatio := func(count int) string {
		return fmt.Sprintf("' .. tostring(math.floor(((h / 2) * 3) / %d)) .. '", count+1)
	}

	const (
		aboveleft  = "aboveleft"
		belowright = "belowright"
		fixWidth   = "winfixwidth"
		fixHeight  = "winfixheight"
		vsplit     = "vsplit"
		hsplit     = "split"
	)

	var direction, size, split, fix string
	switch {
	case r.Right > 0:
		direction, size, split, fix = belowright, wRatio(r.Right), vsplit, fixWidth
	case r.Left > 0:
		direction, size, split, fix = aboveleft, wRatio(r.Left), vsplit, fixWidth
	case r.Below > 0:
		direction, size, split, fix = belowright, hRatio(r.Below), hsplit, fixHeight
	case r.Above > 0:
		direction, size, split, fix = aboveleft, hRatio(r.Above), hsplit, fixHeight
	case r.RightCols > 0:
		direction, size, split, fix = belowright, fmt.Sprint(r.RightCols), vsplit, fixWidth
	case r.LeftCols > 0:
		direction, size, split, fix = aboveleft, fmt.Sprint(r.LeftCols), vsplit, fixWidth
	case r.BelowRows > 0:
		direction, size, split, fix = belowright, fmt.Sprint(r.BelowRows), hsplit, fixHeight
	case r.AboveRows > 0:
		direction, size, split, fix = aboveleft, fmt.Sprint(r.AboveRows), hsplit, fixHeight
	}

	var b strings.Builder
	fmt.Fprintf(&b, "local prev_win = vim.api.nvim_get_current_win()\n")
	fmt.Fprintf(&b, "local w = vim.api.nvim_win_get_width(prev_win)\n")
	fmt.Fprintf(&b, "local h = vim.api.nvim_win_get_height(prev_win)\n")
	fmt.Fprintf(&b, "vim.cmd('%s %s%s')\n", direction, size, split)
	fmt.Fprintf(&b, "local buf = vim.api.nvim_create_buf(true, false)\n")
	fmt.Fprintf(&b, "vim.api.nvim_set_current_buf(buf)\n")
	fmt.Fprintf(&b, "local win = vim.api.nvim_get_current_win()\n")
	fmt.Fprintf(&b, "vim.api.nvim_win_set_option(win, '%s', true)\n", fix)
	return b.String()
}
