// Package render turns catalog and build data into HTML fragments for the
// site's pages.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/kathRex/kartbuilds/internal/catalog"
	"github.com/kathRex/kartbuilds/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// ChartMax is the stat value drawn as a full-width bar.
const ChartMax = 20.0

// Missing is shown in a stat table cell the entity has no value for.
const Missing = "--"

type Renderer struct {
	tmpl *template.Template
}

func New() (*Renderer, error) {
	tmpl, err := template.New("fragments").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// --- Stat table ---

type statTableView struct {
	Category store.Category
	Columns  []string
	Rows     []statRowView
}

type statRowView struct {
	URI   string
	Name  string
	Cells []string
}

func (r *Renderer) StatTable(w io.Writer, t *catalog.StatTable) error {
	view := statTableView{Category: t.Category, Columns: t.Columns}
	for _, row := range t.Rows {
		cells := make([]string, len(row.Values))
		for i, v := range row.Values {
			if v == nil {
				cells[i] = Missing
				continue
			}
			cells[i] = strconv.FormatFloat(*v, 'f', -1, 64)
		}
		view.Rows = append(view.Rows, statRowView{URI: row.URI, Name: row.Name, Cells: cells})
	}
	return r.tmpl.ExecuteTemplate(w, "stat_table", view)
}

// --- Build card ---

// BuildCard is the view of one build: its parts and a bar per chart stat.
type BuildCard struct {
	ID          string
	Title       string
	Description string
	Driver      string
	Body        string
	Tire        string
	Glider      string
	Stats       []StatBar
	Grip        *StatBar
}

type StatBar struct {
	Stat  string
	Label string
	Value string
	Width string
}

// NewBuildCard lays out rec for display. Stats follow store.ChartStats and
// missing totals show as 0.00.
func NewBuildCard(rec *store.BuildRecord, title, description string) BuildCard {
	card := BuildCard{
		Title:       title,
		Description: description,
		Driver:      rec.Driver.Name,
		Body:        rec.Body.Name,
		Tire:        rec.Tire.Name,
		Glider:      rec.Glider.Name,
	}
	if rec.ID != uuid.Nil {
		card.ID = rec.ID.String()
	}
	for _, stat := range store.ChartStats {
		v := rec.Totals.Get(stat)
		card.Stats = append(card.Stats, StatBar{
			Stat:  stat,
			Label: Label(stat),
			Value: strconv.FormatFloat(v, 'f', 2, 64),
			Width: BarWidth(v),
		})
	}
	if rec.Grip != nil {
		card.Grip = &StatBar{
			Stat:  "GripOnSlipperyTerrain",
			Label: "Grip on Slippery Terrain",
			Value: strconv.FormatFloat(*rec.Grip, 'f', 3, 64),
			Width: BarWidth(*rec.Grip),
		}
	}
	return card
}

func (r *Renderer) BuildCard(w io.Writer, card BuildCard) error {
	return r.tmpl.ExecuteTemplate(w, "build_card", card)
}

// BarWidth is v as a CSS percentage of ChartMax, capped at 100%.
func BarWidth(v float64) string {
	pct := math.Min(v/ChartMax*100, 100)
	if pct < 0 || math.IsNaN(pct) {
		pct = 0
	}
	return strconv.FormatFloat(pct, 'f', 2, 64) + "%"
}

// Label spaces out a stat name: "AntiGravitySpeed" becomes
// "Anti Gravity Speed".
func Label(stat string) string {
	var b strings.Builder
	for i, r := range stat {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// --- Slippery tracks ---

// SlipperyRows pads the columns to equal length so each row has a light,
// medium and heavy cell.
func SlipperyRows(cols *store.SlipColumns) [][3]string {
	n := cols.Rows()
	rows := make([][3]string, n)
	for i := 0; i < n; i++ {
		rows[i] = [3]string{at(cols.Light, i), at(cols.Medium, i), at(cols.Heavy, i)}
	}
	return rows
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

func (r *Renderer) SlipperyTable(w io.Writer, cols *store.SlipColumns) error {
	return r.tmpl.ExecuteTemplate(w, "slippery_table", SlipperyRows(cols))
}

// --- Lists ---

type listView struct {
	Class string
	Items []store.NamedRef
	Empty string
}

// List writes refs as a <ul>. empty is shown as the only item when refs is
// empty.
func (r *Renderer) List(w io.Writer, class string, refs []store.NamedRef, empty string) error {
	return r.tmpl.ExecuteTemplate(w, "list", listView{Class: class, Items: refs, Empty: empty})
}

// SlipperyList writes the slippery tracks with their class.
func (r *Renderer) SlipperyList(w io.Writer, tracks []store.SlipperyTrack) error {
	refs := make([]store.NamedRef, len(tracks))
	for i, t := range tracks {
		name := t.Name
		if t.ClassName != "" {
			name += " (" + t.ClassName + ")"
		}
		refs[i] = store.NamedRef{URI: t.URI, Name: name}
	}
	return r.List(w, "slippery-tracks", refs, "No slippery tracks found.")
}
