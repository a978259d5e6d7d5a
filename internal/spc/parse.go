package spc

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// The parsers below are pure functions of raw HTML. They never return an
// error: the tokenizer is tolerant, and a row that doesn't fit the expected
// shape is dropped. Column layouts follow the panel's gridtable pages.

func parseDoc(raw string) *html.Node {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil
	}
	return doc
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrVal(n, "class")) {
		if strings.EqualFold(c, class) {
			return true
		}
	}
	return false
}

// walk visits every element node under root in document order. Returning
// false from fn stops the walk.
func walk(root *html.Node, fn func(*html.Node) bool) {
	var rec func(*html.Node) bool
	rec = func(n *html.Node) bool {
		if n.Type == html.ElementNode && !fn(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !rec(c) {
				return false
			}
		}
		return true
	}
	if root != nil {
		rec(root)
	}
}

// nodeText returns the concatenated text content with whitespace collapsed.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// firstTableWithClass returns the first <table> carrying the given class.
func firstTableWithClass(doc *html.Node, class string) *html.Node {
	var table *html.Node
	walk(doc, func(n *html.Node) bool {
		if n.Data == "table" && hasClass(n, class) {
			table = n
			return false
		}
		return true
	})
	return table
}

// eachRow calls fn for every <tr> under root.
func eachRow(root *html.Node, fn func(tr *html.Node)) {
	walk(root, func(n *html.Node) bool {
		if n.Data == "tr" {
			fn(n)
		}
		return true
	})
}

// rowCells returns the text of the row's direct cells of the given tag.
func rowCells(tr *html.Node, tag string) []string {
	var cells []string
	walk(tr, func(n *html.Node) bool {
		if n == tr {
			return true
		}
		if n.Data == tag {
			cells = append(cells, nodeText(n))
		}
		// Nested tables would double-count cells; gridtable pages don't
		// nest, so descending is safe and keeps decorated cells readable.
		return true
	})
	return cells
}

// ParseZones extracts zone rows from the status_zones page: the first
// gridtable, rows of at least 6 cells laid out as
// name, sector, _, _, entry label, state label.
func ParseZones(raw string) []Zone {
	doc := parseDoc(raw)
	if doc == nil {
		return nil
	}
	table := firstTableWithClass(doc, "gridtable")
	if table == nil {
		return nil
	}
	var zones []Zone
	eachRow(table, func(tr *html.Node) {
		cells := rowCells(tr, "td")
		if len(cells) < 6 {
			return
		}
		name := cells[0]
		if name == "" {
			return
		}
		zones = append(zones, Zone{
			ID:     DeriveID(name),
			Name:   name,
			Sector: cells[1],
			Entree: MapZoneEntree(cells[4]),
			State:  MapZoneState(cells[5]),
		})
	})
	return zones
}

var secteurRe = regexp.MustCompile(`(?i)^Secteur\s+(\d+)\s*:\s*(.+)$`)

// ParseSectors extracts sector rows from the spc_home page. A row qualifies
// when its second cell reads "Secteur <n> : <name>"; the third cell is the
// state label. The global "Tous Secteurs" row is emitted under id "0".
func ParseSectors(raw string) []Sector {
	doc := parseDoc(raw)
	if doc == nil {
		return nil
	}
	var sectors []Sector
	eachRow(doc, func(tr *html.Node) {
		cells := rowCells(tr, "td")
		if len(cells) < 3 {
			return
		}
		label, state := cells[1], cells[2]
		if m := secteurRe.FindStringSubmatch(label); m != nil {
			sectors = append(sectors, Sector{
				ID:    m[1],
				Name:  strings.TrimSpace(m[2]),
				State: MapSectorState(state),
			})
			return
		}
		if strings.HasPrefix(strings.ToLower(label), "tous secteurs") {
			sectors = append(sectors, Sector{
				ID:    "0",
				Name:  "Tous Secteurs",
				State: MapSectorState(state),
			})
		}
	})
	return sectors
}

// ParseDoors extracts door rows from the status_doors page: the first
// gridtable, rows of at least 6 cells laid out as
// name, zone, sector, state label, release button state, contact position.
func ParseDoors(raw string) []Door {
	doc := parseDoc(raw)
	if doc == nil {
		return nil
	}
	table := firstTableWithClass(doc, "gridtable")
	if table == nil {
		return nil
	}
	var doors []Door
	eachRow(table, func(tr *html.Node) {
		cells := rowCells(tr, "td")
		if len(cells) < 6 {
			return
		}
		name := cells[0]
		if name == "" {
			return
		}
		doors = append(doors, Door{
			ID:     DeriveID(name),
			Name:   name,
			Zone:   cells[1],
			Sector: cells[2],
			State:  MapDoorState(cells[3]),
			DRS:    MapDoorDRS(cells[4]),
			DPS:    MapDoorDPS(cells[5]),
		})
	})
	return doors
}

// ParseOutputs extracts output rows from the status_outputs page: the first
// gridtable, rows of at least 2 cells as name, state label. Any further
// cells hold the action buttons and are left to command discovery.
func ParseOutputs(raw string) []Output {
	doc := parseDoc(raw)
	if doc == nil {
		return nil
	}
	table := firstTableWithClass(doc, "gridtable")
	if table == nil {
		return nil
	}
	var outputs []Output
	eachRow(table, func(tr *html.Node) {
		cells := rowCells(tr, "td")
		if len(cells) < 2 {
			return
		}
		name := cells[0]
		if name == "" {
			return
		}
		outputs = append(outputs, Output{
			ID:       DeriveID(name),
			Name:     name,
			State:    MapOutputState(cells[1]),
			StateTxt: cells[1],
		})
	})
	return outputs
}

// ParseControllerStatus extracts (section, label, value) triples from the
// controller status page. Header rows (any <th>, or a lone <td>) open a new
// section; two-cell rows under it are label/value pairs. Rows before the
// first header land in "general".
func ParseControllerStatus(raw string) []StatusEntry {
	doc := parseDoc(raw)
	if doc == nil {
		return nil
	}
	section := "general"
	var entries []StatusEntry
	eachRow(doc, func(tr *html.Node) {
		if ths := rowCells(tr, "th"); len(ths) > 0 {
			if t := strings.TrimSpace(strings.Join(ths, " ")); t != "" {
				section = t
			}
			return
		}
		cells := rowCells(tr, "td")
		switch {
		case len(cells) == 1:
			if cells[0] != "" {
				section = cells[0]
			}
		case len(cells) >= 2:
			if cells[0] == "" {
				return
			}
			entries = append(entries, StatusEntry{
				Section: section,
				Label:   cells[0],
				Value:   cells[1],
			})
		}
	})
	return entries
}
