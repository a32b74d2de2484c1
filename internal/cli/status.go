package cli

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"agegate/internal/session"
)

// StatusView is what `agegate status` shows.
type StatusView struct {
	ClientID string
	Backend  string
	Location string
	Session  *session.Record
	Now      time.Time
}

// PrintStatus renders v as a table.
func PrintStatus(w io.Writer, v StatusView) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("KEY"),
		text.FgHiCyan.Sprint("VALUE"),
	})
	t.AppendRow(table.Row{"Client", v.ClientID})
	t.AppendRow(table.Row{"Backend", v.Backend})
	if v.Location != "" {
		t.AppendRow(table.Row{"Location", v.Location})
	}

	if v.Session == nil {
		t.AppendRow(table.Row{"Session", text.FgYellow.Sprint("Not verified")})
	} else {
		expires := v.Session.ExpiresAt()
		t.AppendRow(table.Row{"Session", text.FgGreen.Sprint("Verified")})
		t.AppendRow(table.Row{"Expires", expires.Local().Format(time.RFC1123)})
		t.AppendRow(table.Row{"Remaining", expires.Sub(v.Now).Truncate(time.Minute).String()})
	}

	t.Render()
}
