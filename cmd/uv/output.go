package main

import (
	"os"

	"github.com/aquasecurity/table"
	"github.com/fatih/color"
)

var (
	colorOK   = color.New(color.FgGreen)
	colorErr  = color.New(color.FgRed)
	colorWarn = color.New(color.FgYellow)
)

// newTable builds a table writer for stdout with the given headers.
func newTable(headers ...string) *table.Table {
	t := table.New(os.Stdout)
	t.SetHeaders(headers...)
	return t
}

func printOK(format string, args ...any) {
	colorOK.Fprintf(os.Stdout, format+"\n", args...)
}

func printErr(format string, args ...any) {
	colorErr.Fprintf(os.Stderr, format+"\n", args...)
}

func printWarn(format string, args ...any) {
	colorWarn.Fprintf(os.Stdout, format+"\n", args...)
}

func statusGlyph(ok bool) string {
	if ok {
		return colorOK.Sprint("ok")
	}
	return colorErr.Sprint("error")
}
