// Package spc talks to an ACRE SPC42 alarm panel through its authenticated
// HTML web interface: session management, page scraping, and command
// submission.
package spc

import (
	"errors"
	"fmt"
)

// StateUnknown is the sentinel returned by all mappers for labels outside
// their closed set. Values of StateUnknown are never published.
const StateUnknown = -1

// Category identifies a controllable/publishable entity class. The values
// double as MQTT topic segments.
type Category string

const (
	CategoryZones    Category = "zones"
	CategorySecteurs Category = "secteurs"
	CategoryDoors    Category = "doors"
	CategoryOutputs  Category = "outputs"
)

// Categories lists all entity categories in publication order.
var Categories = []Category{CategoryZones, CategorySecteurs, CategoryDoors, CategoryOutputs}

// page returns the secure.htm page id carrying this category's rows.
func (c Category) page() string {
	switch c {
	case CategoryZones:
		return "status_zones"
	case CategorySecteurs:
		return "spc_home"
	case CategoryDoors:
		return "status_doors"
	case CategoryOutputs:
		return "status_outputs"
	}
	return ""
}

// Zone is one intrusion detection input.
// State: 0 normal, 1 active. Entree: 1 closed, 0 open.
type Zone struct {
	ID     string
	Name   string
	Sector string
	Entree int
	State  int
}

// Sector is an armable grouping of zones. ID "0" is the synthetic global
// "Tous Secteurs" row. State: 0 disarmed, 1 armed total, 2 partial A,
// 3 partial B, 4 in alarm.
type Sector struct {
	ID    string
	Name  string
	State int
}

// Door is an access-controlled opening. State: 0 locked/normal,
// 1 unlocked/free access, 4 in alarm. DRS is the release button state,
// DPS the contact position (0..4).
type Door struct {
	ID     string
	Name   string
	Zone   string
	Sector string
	State  int
	DRS    int
	DPS    int
}

// Output is a switchable panel output. State: 1 on, 0 off. StateTxt keeps
// the raw label as shown by the panel.
type Output struct {
	ID       string
	Name     string
	State    int
	StateTxt string
}

// StatusEntry is one (section, label, value) triple from the controller
// status page.
type StatusEntry struct {
	Section string
	Label   string
	Value   string
}

// ErrNoSession indicates that no authenticated session could be obtained
// right now (expired, rate-limited, or the panel is unreachable).
var ErrNoSession = errors.New("spc: no session available")

// HTTPError is returned when the panel answers with a status >= 400.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("spc: panel returned HTTP %d", e.StatusCode)
}
