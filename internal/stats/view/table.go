package view

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
	"github.com/esnet/esnet-smartnic-fw/internal/stats"
)

// Column identifies one port and direction pair.
type Column struct {
	Port      string
	Direction string
}

// Cell holds the counts of one component for one column.
type Cell struct {
	Packets uint64
	Bytes   uint64
}

type Row struct {
	Name  string
	Cells map[Column]*Cell
}

// View is one named view with its rows in natural order.
type View struct {
	Name   string
	Rows   []Row
	Totals map[Column]*Cell
}

// Table is the pivot of every matched counter of one device.
type Table struct {
	DevID   int32
	Columns []Column
	Views   []View
}

type pivot struct {
	rows   map[string]map[Column]*Cell
	totals map[Column]*Cell
}

// Project pivots the counters matched by filters into a table. Rows are named
// after the counter's block with the port replaced by "*", so the same
// component on different ports shares a row.
func Project(devID int32, st *api.Stats, filters []*Filter) *Table {
	views := make(map[string]*pivot)
	ports := make(map[string]map[string]bool)

	var metrics []*api.StatsMetric
	if st != nil {
		metrics = st.Metrics
	}
	for _, m := range metrics {
		if len(m.Values) == 0 || m.Scope == nil {
			continue
		}
		name := m.Scope.Block
		value := m.Values[0]

		units, ok := value.Label("units")
		if !ok {
			units = "packets"
		}
		specs, ok := value.Label(LabelKey)
		if !ok {
			continue
		}

		for _, spec := range strings.Split(specs, ",") {
			for _, f := range filters {
				if !f.Match(spec) {
					continue
				}
				fields := strings.SplitN(spec, fieldSep, numFields)
				if len(fields) != numFields {
					break
				}
				viewName, port, dir := fields[0], fields[1], fields[2]
				col := Column{Port: port, Direction: dir}
				if ports[port] == nil {
					ports[port] = make(map[string]bool)
				}
				ports[port][dir] = true

				name = strings.ReplaceAll(name, "app"+port, "app*")
				if suffix := "_" + port; strings.HasSuffix(name, suffix) {
					name = strings.TrimSuffix(name, suffix) + "_*"
				}

				v := views[viewName]
				if v == nil {
					v = &pivot{rows: make(map[string]map[Column]*Cell), totals: make(map[Column]*Cell)}
					views[viewName] = v
				}
				if v.rows[name] == nil {
					v.rows[name] = make(map[Column]*Cell)
				}
				c := cellFor(v.rows[name], col)
				t := cellFor(v.totals, col)
				if units == "bytes" {
					c.Bytes = value.U64
					t.Bytes += value.U64
				} else {
					c.Packets = value.U64
					t.Packets += value.U64
				}
				break
			}
		}
	}

	table := &Table{DevID: devID}
	for _, port := range sortedKeys(ports) {
		for _, dir := range sortedKeys(ports[port]) {
			table.Columns = append(table.Columns, Column{Port: port, Direction: dir})
		}
	}
	for _, viewName := range sortedKeys(views) {
		p := views[viewName]
		v := View{Name: viewName, Totals: p.totals}
		for _, name := range sortedKeys(p.rows) {
			v.Rows = append(v.Rows, Row{Name: name, Cells: p.rows[name]})
		}
		table.Views = append(table.Views, v)
	}
	return table
}

func cellFor(cells map[Column]*Cell, col Column) *Cell {
	c := cells[col]
	if c == nil {
		c = &Cell{}
		cells[col] = c
	}
	return c
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	stats.SortNatural(keys)
	return keys
}

var printer = message.NewPrinter(language.English)

func formatPackets(c *Cell) string {
	return printer.Sprintf("%d", c.Packets)
}

func formatBytes(c *Cell) string {
	return printer.Sprintf("[%dB]", c.Bytes)
}

type entry struct {
	text string
	fill string
	left bool
}

type column struct {
	port    *string
	width   int
	entries []entry
}

func (c *column) add(text string, left bool) {
	text = " " + text + " "
	c.width = max(c.width, utf8.RuneCountInString(text))
	c.entries = append(c.entries, entry{text: text, left: left})
}

func (c *column) addBlank(fill string) {
	c.entries = append(c.entries, entry{fill: fill})
}

func (c *column) addCell(cell *Cell, format func(*Cell) string) {
	if cell == nil {
		c.addBlank("")
		return
	}
	c.add(format(cell), false)
}

func (c *column) format(i int) string {
	e := c.entries[i]
	fill := e.fill
	if fill == "" {
		fill = " "
	}
	pad := strings.Repeat(fill, max(0, c.width-utf8.RuneCountInString(e.text)))
	if e.left {
		return e.text + pad
	}
	return pad + e.text
}

// Render draws the table. Columns are separated by "|", or "||" where the
// port changes. With bytes set, every row is followed by a byte count row.
// Returns nil if no view matched.
func (t *Table) Render(bytes bool) []string {
	if len(t.Views) == 0 {
		return nil
	}

	nameCol := &column{}
	nameCol.addBlank("=")
	nameCol.add(fmt.Sprintf("Device ID %d", t.DevID), true)

	title := cases.Title(language.English)
	columns := []*column{nameCol}
	metricCols := make([]*column, 0, len(t.Columns))
	for _, col := range t.Columns {
		c := &column{port: &col.Port}
		c.addBlank("=")
		c.add("Port "+col.Port+" "+title.String(col.Direction), false)
		columns = append(columns, c)
		metricCols = append(metricCols, c)
	}

	addCells := func(cells map[Column]*Cell) {
		for i, col := range t.Columns {
			cell := cells[col]
			metricCols[i].addCell(cell, formatPackets)
			if bytes {
				metricCols[i].addCell(cell, formatBytes)
			}
		}
	}

	for _, v := range t.Views {
		for _, c := range columns {
			c.addBlank("=")
			if c == nameCol {
				c.add(v.Name, true)
			} else {
				c.addBlank("")
			}
			c.addBlank("-")
		}

		for _, row := range v.Rows {
			nameCol.add(row.Name, false)
			if bytes {
				nameCol.addBlank("")
			}
			addCells(row.Cells)
		}

		nameCol.add("totals", false)
		if bytes {
			nameCol.addBlank("")
		}
		addCells(v.Totals)
	}

	for _, c := range columns {
		c.addBlank("=")
	}

	lines := make([]string, 0, len(nameCol.entries))
	for i := range nameCol.entries {
		var sb strings.Builder
		var prev *column
		for _, c := range columns {
			if prev == nil || samePort(prev, c) {
				sb.WriteString("|")
			} else {
				sb.WriteString("||")
			}
			sb.WriteString(c.format(i))
			prev = c
		}
		sb.WriteString("|")
		lines = append(lines, sb.String())
	}
	return lines
}

func samePort(a, b *column) bool {
	if a.port == nil || b.port == nil {
		return a.port == nil && b.port == nil
	}
	return *a.port == *b.port
}
