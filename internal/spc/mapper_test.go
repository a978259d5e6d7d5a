package spc

import "testing"

func TestDeriveID(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"12 Entrée Hall", "12"},
		{"Porte Garage", "porte_garage"},
		{"", "unknown"},
		{"  7 Salon", "7"},
		{"Détecteur - Couloir", "d_tecteur_couloir"},
		{"01 Hall", "01"},
	}
	for _, tt := range tests {
		if got := DeriveID(tt.name); got != tt.want {
			t.Errorf("DeriveID(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMapSectorState(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"MES Totale", 1},
		{"MES Partielle", 2},
		{"MES Partielle A", 2},
		{"MES Partielle B", 3},
		{"MHS", 0},
		{"Désarmé", 0},
		{"Alarme intrusion", 4},
		{"???", -1},
		{"", -1},
	}
	for _, tt := range tests {
		if got := MapSectorState(tt.label); got != tt.want {
			t.Errorf("MapSectorState(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

func TestMapZoneState(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"Normal", 0},
		{"Activée", 1},
		{"Activation", 1},
		{"n/a", -1},
	}
	for _, tt := range tests {
		if got := MapZoneState(tt.label); got != tt.want {
			t.Errorf("MapZoneState(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

func TestMapZoneEntree(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"Fermée", 1},
		{"Ouverte", 0},
		{"??", -1},
	}
	for _, tt := range tests {
		if got := MapZoneEntree(tt.label); got != tt.want {
			t.Errorf("MapZoneEntree(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

func TestMapOutputState(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"ON", 1},
		{"on", 1},
		{"OFF", 0},
		{"Off", 0},
		{"inconnu", -1},
	}
	for _, tt := range tests {
		if got := MapOutputState(tt.label); got != tt.want {
			t.Errorf("MapOutputState(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

func TestMapDoorState(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"Normal", 0},
		{"Verrouillée", 0},
		// "déverrouillé" contains "verrouillé": rule order matters.
		{"Déverrouillée", 1},
		{"Accès libre", 1},
		{"Alarme", 4},
		{"??", -1},
	}
	for _, tt := range tests {
		if got := MapDoorState(tt.label); got != tt.want {
			t.Errorf("MapDoorState(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

func TestMapDoorDPS(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"0", 0},
		{"3", 3},
		{"9", 4}, // clamped to the documented range
		{"Fermée", 0},
		{"Ouverte", 1},
		{"??", -1},
	}
	for _, tt := range tests {
		if got := MapDoorDPS(tt.label); got != tt.want {
			t.Errorf("MapDoorDPS(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

func TestMapDoorDRS(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"0", 0},
		{"1", 1},
		{"7", -1},
		{"Déverrouillée", 1},
		{"Verrouillée", 0},
	}
	for _, tt := range tests {
		if got := MapDoorDRS(tt.label); got != tt.want {
			t.Errorf("MapDoorDRS(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"État Centrale", "tat_centrale"},
		{"Version  firmware", "version_firmware"},
		{"", "unknown"},
		{"---", "unknown"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
