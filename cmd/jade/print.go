package main

import (
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"

	"github.com/Talesoft/tale-jade-sub000/pkg/jade"
)

var (
	errorStyle   = color.New(color.FgRed, color.Bold)
	messageStyle = color.New(color.Bold)
	fileStyle    = color.New(color.FgCyan, color.Bold)
	lineStyle    = color.New(color.FgBlue, color.Bold)
)

const tabWidth = 4

// formatError renders err with the offending source line when the error
// carries a position and the file can be read.
func formatError(fs afero.Fs, err error) string {
	var b strings.Builder
	b.WriteString(errorStyle.Sprint("error: ") + messageStyle.Sprint(err.Error()) + "\n")

	line, offset, ok := jade.Position(err)
	file := jade.ErrorFile(err)
	if !ok || file == "" {
		return b.String()
	}
	b.WriteString(lineStyle.Sprint("  --> ") + fileStyle.Sprintf("%s:%d:%d", file, line, offset+1) + "\n")

	src, rerr := afero.ReadFile(fs, file)
	if rerr != nil {
		return b.String()
	}
	lines := strings.Split(string(src), "\n")
	if line < 1 || line > len(lines) {
		return b.String()
	}
	text := lines[line-1]
	num := strconv.Itoa(line)
	pad := strings.Repeat(" ", len(num))
	col := len(expandTabs(text[:min(offset, len(text))]))

	b.WriteString(lineStyle.Sprintf("%s |", pad) + "\n")
	b.WriteString(lineStyle.Sprintf("%s | ", num) + expandTabs(text) + "\n")
	b.WriteString(lineStyle.Sprintf("%s | ", pad) + errorStyle.Sprint(strings.Repeat(" ", col)+"^") + "\n")
	return b.String()
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}
