package spc

import (
	"regexp"
	"strconv"
	"strings"
)

// The panel reports state as free-text French labels. Each category maps its
// labels onto a closed integer set through an ordered rule list; the first
// matching rule wins, anything unmatched is StateUnknown. Adding a locale
// means adding rules, not branches.

type stateRule struct {
	match func(string) bool
	code  int
}

func anyOf(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

func allOf(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if !strings.Contains(s, sub) {
				return false
			}
		}
		return true
	}
}

func applyRules(rules []stateRule, label string) int {
	s := strings.ToLower(strings.TrimSpace(label))
	if s == "" {
		return StateUnknown
	}
	for _, r := range rules {
		if r.match(s) {
			return r.code
		}
	}
	return StateUnknown
}

var zoneEntreeRules = []stateRule{
	{anyOf("ferm"), 1},
	{anyOf("ouvert"), 0},
}

var zoneStateRules = []stateRule{
	{anyOf("normal"), 0},
	{anyOf("activ"), 1},
}

// The "B" rule must precede the plain partial rule: "MES Partielle B"
// contains "mes partiel" too.
var sectorStateRules = []stateRule{
	{anyOf("mes totale"), 1},
	{allOf("mes partiel", "b"), 3},
	{anyOf("mes partiel"), 2},
	{anyOf("mhs", "désarm"), 0},
	{anyOf("alarme"), 4},
}

// "déverrouill" contains "verrouill", so the unlocked rules come first.
var doorStateRules = []stateRule{
	{anyOf("déverrouill", "accès libre"), 1},
	{anyOf("alarme"), 4},
	{anyOf("normal", "verrouill"), 0},
}

var doorDRSRules = []stateRule{
	{anyOf("déverrouill", "ouvert"), 1},
	{anyOf("verrouill", "ferm", "normal"), 0},
}

var doorDPSRules = []stateRule{
	{anyOf("ferm"), 0},
	{anyOf("ouvert"), 1},
}

// MapZoneEntree maps a zone entry label: 1 closed, 0 open.
func MapZoneEntree(label string) int { return applyRules(zoneEntreeRules, label) }

// MapZoneState maps a zone state label: 0 normal, 1 active.
func MapZoneState(label string) int { return applyRules(zoneStateRules, label) }

// MapSectorState maps a sector state label: 0 disarmed, 1 total, 2 partial A,
// 3 partial B, 4 alarm.
func MapSectorState(label string) int { return applyRules(sectorStateRules, label) }

// MapOutputState maps an output state label: 1 on, 0 off. Output labels are
// matched exactly: "on" as a substring would light up in half the French
// vocabulary.
func MapOutputState(label string) int {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "on":
		return 1
	case "off":
		return 0
	}
	return StateUnknown
}

// MapDoorState maps a door state label: 0 locked/normal, 1 unlocked, 4 alarm.
func MapDoorState(label string) int { return applyRules(doorStateRules, label) }

// MapDoorDRS maps the door release button column to 0 or 1. Cells carrying a
// bare digit are taken literally.
func MapDoorDRS(label string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(label)); err == nil {
		if n == 0 || n == 1 {
			return n
		}
		return StateUnknown
	}
	return applyRules(doorDRSRules, label)
}

// MapDoorDPS maps the door contact column to 0..4. A leading integer is taken
// literally and clamped to the documented range; labels fall back to the
// open/closed rules.
func MapDoorDPS(label string) int {
	if m := leadingDigitsRe.FindStringSubmatch(label); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			if n > 4 {
				n = 4
			}
			return n
		}
	}
	return applyRules(doorDPSRules, label)
}

var (
	leadingDigitsRe = regexp.MustCompile(`^\s*(\d+)\b`)
	nonAlnumRe      = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// DeriveID derives a stable entity id from a panel display name: the leading
// numeric run when present, otherwise a lowercase underscore slug.
func DeriveID(name string) string {
	if m := leadingDigitsRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return Slugify(name)
}

// Slugify lowercases a label and collapses runs of non-alphanumerics to a
// single underscore. Empty input yields "unknown". Used for topic segments.
func Slugify(s string) string {
	slug := strings.Trim(nonAlnumRe.ReplaceAllString(s, "_"), "_")
	slug = strings.ToLower(slug)
	if slug == "" {
		return "unknown"
	}
	return slug
}
