// Package render turns operation results into terminal tables or JSON.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"

	journal "github.com/gaiakodi/gaiasource/internal/log"
	"github.com/gaiakodi/gaiasource/internal/media"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

const titleWidth = 48

// Renderer writes results in one format.
type Renderer struct {
	w      io.Writer
	format string
	theme  Theme
}

// New returns a renderer writing to w. Tables are styled unless plain.
func New(w io.Writer, format string, plain bool) *Renderer {
	if format == "" {
		format = FormatTable
	}
	return &Renderer{w: w, format: format, theme: NewTheme(plain || format != FormatTable)}
}

// JSON writes v indented.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Result writes the outcome of one operation.
func (r *Renderer) Result(res media.Result) error {
	if r.format == FormatJSON {
		return r.JSON(res)
	}
	if res.Error != nil {
		fmt.Fprintf(r.w, "%s %s\n", r.theme.Badge(BadgeError, string(res.Error.Code)), res.Error.Message)
		if res.Error.RetryAfter > 0 {
			fmt.Fprintln(r.w, r.theme.Muted(fmt.Sprintf("retry after %ds", res.Error.RetryAfter)))
		}
		return nil
	}
	switch {
	case res.Page != nil:
		r.page(res.Page)
	case res.Record != nil:
		r.record(res.Record)
		if res.Record.Pack != nil {
			r.pack(res.Record.Pack)
		}
	case res.Pack != nil:
		r.pack(res.Pack)
	case res.IDs != nil:
		r.ids(res.IDs)
	}
	r.status(res.Complete)
	return nil
}

func (r *Renderer) status(complete bool) {
	if complete {
		return
	}
	fmt.Fprintln(r.w, r.theme.Badge(BadgeWarning, "incomplete")+" "+r.theme.Muted("some providers failed; results may be partial"))
}

func (r *Renderer) table(headers []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(r.w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	return tw
}

func (r *Renderer) page(p *media.PageResult) {
	tw := r.table([]string{"#", "", "TITLE", "YEAR", "RATING", "VOTES", "IDS"})
	for i, rec := range p.Items {
		title := rec.Title
		if rec.Media == media.Episode || rec.Media == media.Season {
			title = numbered(rec) + " " + title
		}
		tw.Append([]string{
			strconv.Itoa(i + 1),
			r.theme.Icon(string(rec.Media)),
			Truncate(title, titleWidth),
			optional(rec.Year),
			rating(rec.Rating),
			optional(rec.Votes),
			rec.IDs.String(),
		})
	}
	tw.Render()
	more := ""
	if p.More {
		more = ", more available"
	}
	fmt.Fprintln(r.w, r.theme.Muted(fmt.Sprintf("page %d: %d of %d items%s", p.Page, p.Count.Final, p.Count.Initial, more)))
}

func (r *Renderer) record(rec *media.Record) {
	fmt.Fprintln(r.w, r.theme.Header(r.theme.Icon(string(rec.Media))+" "+rec.Title))
	tw := r.table([]string{"FIELD", "VALUE"})
	tw.SetColWidth(80)
	tw.SetAutoWrapText(true)
	rows := [][]string{
		{"Media", string(rec.Media)},
		{"IDs", rec.IDs.String()},
		{"Year", optional(rec.Year)},
		{"Premiered", date(rec.Premiered)},
		{"Status", string(rec.Status)},
		{"Genres", strings.Join(rec.Genres, ", ")},
		{"Duration", duration(rec.Duration)},
		{"Rating", rating(rec.Rating)},
		{"Votes", optional(rec.Votes)},
		{"Certificate", rec.Certificate},
		{"Studios", strings.Join(rec.Studios, ", ")},
		{"Networks", strings.Join(rec.Networks, ", ")},
		{"Director", strings.Join(rec.Director, ", ")},
	}
	if rec.Media == media.Episode || rec.Media == media.Season {
		rows = append(rows, []string{"Number", numbered(*rec)})
	}
	if len(rec.Cast) > 0 {
		names := make([]string, 0, min(len(rec.Cast), 5))
		for _, c := range rec.Cast[:min(len(rec.Cast), 5)] {
			names = append(names, c.Name)
		}
		rows = append(rows, []string{"Cast", strings.Join(names, ", ")})
	}
	if rec.Plot != "" {
		rows = append(rows, []string{"Plot", Truncate(rec.Plot, 200)})
	}
	for _, row := range rows {
		if row[1] != "" {
			tw.Append(row)
		}
	}
	tw.Render()
}

func (r *Renderer) pack(p *media.Pack) {
	fmt.Fprintln(r.w, r.theme.Header("pack "+p.IDs.String()))
	tw := r.table([]string{"SEASON", "TITLE", "EPISODES", "RUNTIME", "AIRED", "STATUS"})
	for _, s := range p.Seasons {
		tw.Append([]string{
			strconv.Itoa(s.Number.Standard.Season),
			Truncate(s.Title, titleWidth),
			strconv.Itoa(s.Count),
			duration(s.Duration.Mean),
			years(s.Year),
			string(s.Status),
		})
	}
	tw.Render()
	c := p.Count
	fmt.Fprintln(r.w, r.theme.Muted(fmt.Sprintf("%d seasons (%d main), %d episodes (%d main, %d specials), %s, %s",
		c.Season.Total, c.Season.Main, c.Episode.Total, c.Episode.Main, c.Special, years(p.Year), p.Status)))
}

func (r *Renderer) ids(ids media.IDs) {
	tw := r.table([]string{"ID", "VALUE"})
	for _, kind := range media.IDKinds {
		if v := ids.Get(kind); v != "" {
			tw.Append([]string{kind, v})
		}
	}
	tw.Render()
}

// Provider is one row of the provider listing.
type Provider struct {
	Name       string   `json:"name"`
	Enabled    bool     `json:"enabled"`
	Priority   int      `json:"priority"`
	Operations []string `json:"operations"`
	Usage      float64  `json:"usage"`
}

// Providers writes the provider listing.
func (r *Renderer) Providers(rows []Provider) error {
	if r.format == FormatJSON {
		return r.JSON(rows)
	}
	tw := r.table([]string{"PROVIDER", "ENABLED", "PRIORITY", "OPERATIONS", "BUDGET USED"})
	for _, p := range rows {
		enabled := r.theme.Badge(BadgeError, "off")
		if p.Enabled {
			enabled = r.theme.Badge(BadgeSuccess, "on")
		}
		tw.Append([]string{p.Name, enabled, strconv.Itoa(p.Priority), strings.Join(p.Operations, ", "), fmt.Sprintf("%.0f%%", p.Usage*100)})
	}
	tw.Render()
	return nil
}

// Sessions writes the journal history, newest first.
func (r *Renderer) Sessions(sessions []*journal.Session) error {
	if r.format == FormatJSON {
		return r.JSON(sessions)
	}
	tw := r.table([]string{"WHEN", "COMMAND", "OPS", "COMPLETE", "INCOMPLETE", "FAILED"})
	for _, s := range sessions {
		m := s.Metadata
		tw.Append([]string{
			m.Timestamp.Local().Format("2006-01-02 15:04"),
			Truncate(strings.Join(m.CommandArgs, " "), titleWidth),
			strconv.Itoa(m.TotalOps),
			strconv.Itoa(m.CompleteOps),
			strconv.Itoa(m.IncompleteOps),
			strconv.Itoa(m.FailedOps),
		})
	}
	tw.Render()
	return nil
}

// Truncate shortens s to width terminal cells.
func Truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

func numbered(rec media.Record) string {
	if rec.Media == media.Season {
		return fmt.Sprintf("S%02d", rec.Season)
	}
	return fmt.Sprintf("S%02dE%02d", rec.Season, rec.Episode)
}

func optional(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func rating(r float64) string {
	if r == 0 {
		return ""
	}
	return strconv.FormatFloat(r, 'f', 1, 64)
}

func duration(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return (time.Duration(seconds) * time.Second).Round(time.Minute).String()
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func years(s media.Span) string {
	switch {
	case s.Start == 0:
		return ""
	case s.End == 0 || s.End == s.Start:
		return strconv.FormatInt(s.Start, 10)
	}
	return fmt.Sprintf("%d-%d", s.Start, s.End)
}
