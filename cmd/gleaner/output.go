package main

import (
	"fmt"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printMark(color, mark, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) {
	printMark(colorGreen, "✓", format, args...)
}

func printError(format string, args ...any) {
	printMark(colorRed, "✗", format, args...)
}

func printWarning(format string, args ...any) {
	printMark(colorYellow, "⚠", format, args...)
}

func printStep(format string, args ...any) {
	printMark(colorCyan, "→", format, args...)
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), val)
}

// levelColor maps a quality level to a display color for search and job
// listings.
func levelColor(level string) string {
	switch level {
	case "excellent", "good":
		return colorGreen
	case "acceptable":
		return colorYellow
	case "poor", "rejected":
		return colorRed
	default:
		return colorReset
	}
}
