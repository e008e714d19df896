package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// checkState classifies a status or preflight line for rendering.
type checkState int

const (
	stateInfo checkState = iota
	stateOK
	stateWarn
	stateFail
)

const ansiReset = "\x1b[0m"

var stateNames = map[checkState]string{
	stateInfo: "info",
	stateOK:   "ok",
	stateWarn: "warn",
	stateFail: "fail",
}

var stateColors = map[checkState]string{
	stateInfo: "\x1b[36m",
	stateOK:   "\x1b[32m",
	stateWarn: "\x1b[33m",
	stateFail: "\x1b[31m",
}

const statusLabelWidth = 22

// renderStatusLine formats one aligned "label  state  detail" row. Only the
// state word is colorized so paths and messages stay copy-paste friendly.
func renderStatusLine(label string, state checkState, detail string, colorize bool) string {
	name := stateNames[state]
	padding := strings.Repeat(" ", 4-len(name))
	if colorize {
		name = stateColors[state] + name + ansiReset
	}
	line := fmt.Sprintf("  %-*s %s%s  %s", statusLabelWidth, label, name, padding, detail)
	return strings.TrimRight(line, " ")
}

// sectionHeader renders an underlined section title.
func sectionHeader(title string, colorize bool) string {
	title = strings.TrimSpace(title)
	rule := strings.Repeat("-", len(title))
	if colorize {
		return "\x1b[1m" + title + ansiReset + "\n" + rule
	}
	return title + "\n" + rule
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
