package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// Status is what the info banner reports about a store.
type Status struct {
	Backend    string
	DefaultTTL string
	Err        error
}

// PrintBanner writes the sessionstore banner followed by the backend status.
// Colors degrade to plain text when w is not a terminal.
func PrintBanner(w io.Writer, st Status) {
	out := termenv.NewOutput(w)

	lines := []struct{ text, color string }{
		{"  ___ ___ ___ ___ ___ ___  _  _ ", "#818cf8"},
		{" / __| __/ __/ __|_ _/ _ \\| \\| |", "#a78bfa"},
		{" \\__ \\ _|\\__ \\__ \\| | (_) | .` |", "#c084fc"},
		{" |___/___|___/___/___\\___/|_|\\_|  store", "#e879f9"},
	}

	fmt.Fprintln(out)
	for _, l := range lines {
		fmt.Fprintln(out, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(out)

	label := func(s string) termenv.Style { return out.String(s).Bold() }
	fmt.Fprintf(out, "%s %s\n", label("Backend:    "), st.Backend)
	fmt.Fprintf(out, "%s %s\n", label("Default TTL:"), st.DefaultTTL)

	if st.Err != nil {
		fmt.Fprintf(out, "%s %s (%v)\n", label("Status:     "), out.String("unreachable").Foreground(out.Color("1")), st.Err)
		return
	}
	fmt.Fprintf(out, "%s %s\n", label("Status:     "), out.String("ok").Foreground(out.Color("2")))
}
