package spc

import "testing"

const zonesPage = `<html><body>
<table class="gridtable">
  <tr><th>Zone</th><th>Secteur</th><th>Type</th><th>Num</th><th>Entrée</th><th>État</th></tr>
  <tr><td>01 Hall</td><td>1 Maison</td><td>Intrusion</td><td>1</td><td>Fermée</td><td>Normal</td></tr>
  <tr><td>Porte Garage</td><td>2 Garage</td><td>Intrusion</td><td>2</td><td>Ouverte</td><td>Activée</td></tr>
  <tr><td></td><td>1</td><td>x</td><td>3</td><td>Fermée</td><td>Normal</td></tr>
  <tr><td>short row</td><td>only two cells</td></tr>
</table>
</body></html>`

func TestParseZones(t *testing.T) {
	zones := ParseZones(zonesPage)
	if len(zones) != 2 {
		t.Fatalf("got %d zones, want 2", len(zones))
	}

	z := zones[0]
	if z.ID != "01" || z.Name != "01 Hall" || z.Sector != "1 Maison" {
		t.Errorf("unexpected first zone: %+v", z)
	}
	if z.Entree != 1 || z.State != 0 {
		t.Errorf("first zone states = (entree=%d, state=%d), want (1, 0)", z.Entree, z.State)
	}

	z = zones[1]
	if z.ID != "porte_garage" || z.Entree != 0 || z.State != 1 {
		t.Errorf("unexpected second zone: %+v", z)
	}
}

func TestParseZonesMalformed(t *testing.T) {
	for _, raw := range []string{"", "<not html", "<table><tr><td>x</td></tr></table>", "<html><body>no table</body></html>"} {
		if zones := ParseZones(raw); len(zones) != 0 {
			t.Errorf("ParseZones(%q) = %v, want none", raw, zones)
		}
	}
}

const homePage = `<html><body>
<table>
  <tr><td><img src="x.gif"></td><td>Tous Secteurs</td><td>MHS</td></tr>
  <tr><td><img src="x.gif"></td><td>Secteur 1 : Maison</td><td>MES Totale</td></tr>
  <tr><td><img src="x.gif"></td><td>Secteur 2 : Garage</td><td>MES Partielle B</td></tr>
  <tr><td><img src="x.gif"></td><td>Secteur 3 : Cave</td><td>État inconnu</td></tr>
  <tr><td>a</td><td>not a sector</td><td>MES</td></tr>
</table>
<p>spc42</p>
</body></html>`

func TestParseSectors(t *testing.T) {
	sectors := ParseSectors(homePage)
	if len(sectors) != 4 {
		t.Fatalf("got %d sectors, want 4: %+v", len(sectors), sectors)
	}

	global := sectors[0]
	if global.ID != "0" || global.Name != "Tous Secteurs" || global.State != 0 {
		t.Errorf("unexpected global row: %+v", global)
	}
	if s := sectors[1]; s.ID != "1" || s.Name != "Maison" || s.State != 1 {
		t.Errorf("unexpected sector 1: %+v", s)
	}
	if s := sectors[2]; s.ID != "2" || s.State != 3 {
		t.Errorf("unexpected sector 2: %+v", s)
	}
	if s := sectors[3]; s.State != StateUnknown {
		t.Errorf("sector 3 state = %d, want sentinel", s.State)
	}
}

const doorsPage = `<html><body>
<table class="gridtable">
  <tr><th>Porte</th><th>Zone</th><th>Secteur</th><th>État</th><th>DRS</th><th>DPS</th></tr>
  <tr><td>5 Entrée principale</td><td>12</td><td>1</td><td>Verrouillée</td><td>0</td><td>0</td></tr>
  <tr><td>Issue secours</td><td>13</td><td>2</td><td>Déverrouillée</td><td>1</td><td>2 Ouverte</td></tr>
</table>
</body></html>`

func TestParseDoors(t *testing.T) {
	doors := ParseDoors(doorsPage)
	if len(doors) != 2 {
		t.Fatalf("got %d doors, want 2", len(doors))
	}
	if d := doors[0]; d.ID != "5" || d.State != 0 || d.DRS != 0 || d.DPS != 0 {
		t.Errorf("unexpected first door: %+v", d)
	}
	if d := doors[1]; d.ID != "issue_secours" || d.State != 1 || d.DRS != 1 || d.DPS != 2 {
		t.Errorf("unexpected second door: %+v", d)
	}
}

const outputsPage = `<html><body>
<table class="gridtable">
  <tr><th>Sortie</th><th>État</th><th></th></tr>
  <tr><td>3 Sirène</td><td>OFF</td>
      <td><a href="secure.htm?session=abc&amp;page=status_outputs&amp;action=on&amp;id=3">ON</a></td></tr>
  <tr><td>Éclairage jardin</td><td>Inconnu</td><td></td></tr>
</table>
</body></html>`

func TestParseOutputs(t *testing.T) {
	outputs := ParseOutputs(outputsPage)
	if len(outputs) != 2 {
		t.Fatalf("got %d outputs, want 2", len(outputs))
	}
	if o := outputs[0]; o.ID != "3" || o.State != 0 || o.StateTxt != "OFF" {
		t.Errorf("unexpected first output: %+v", o)
	}
	if o := outputs[1]; o.State != StateUnknown || o.StateTxt != "Inconnu" {
		t.Errorf("unexpected second output: %+v", o)
	}
}

const controllerPage = `<html><body>
<table class="gridtable">
  <tr><th colspan="2">Système</th></tr>
  <tr><td>Version</td><td>3.8.5</td></tr>
  <tr><td>Batterie</td><td>13.6V</td></tr>
  <tr><td colspan="2">Alimentation</td></tr>
  <tr><td>Secteur</td><td>Présent</td></tr>
</table>
</body></html>`

func TestParseControllerStatus(t *testing.T) {
	entries := ParseControllerStatus(controllerPage)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3: %+v", len(entries), entries)
	}
	if e := entries[0]; e.Section != "Système" || e.Label != "Version" || e.Value != "3.8.5" {
		t.Errorf("unexpected first entry: %+v", e)
	}
	if e := entries[2]; e.Section != "Alimentation" || e.Label != "Secteur" || e.Value != "Présent" {
		t.Errorf("unexpected third entry: %+v", e)
	}
}

func TestParseControllerStatusNoHeader(t *testing.T) {
	entries := ParseControllerStatus(`<table><tr><td>Heure</td><td>12:00</td></tr></table>`)
	if len(entries) != 1 || entries[0].Section != "general" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
