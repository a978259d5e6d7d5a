package watchdog

import (
	"context"
	"errors"
	"testing"

	"github.com/acre-exp/spc2mqtt/internal/config"
	"github.com/acre-exp/spc2mqtt/internal/spc"
)

// fakePanel returns canned records and counts fetches per category.
type fakePanel struct {
	zones   []spc.Zone
	sectors []spc.Sector
	doors   []spc.Door
	outputs []spc.Output
	status  []spc.StatusEntry

	err     error
	fetches map[string]int
}

func newFakePanel() *fakePanel {
	return &fakePanel{fetches: make(map[string]int)}
}

func (p *fakePanel) FetchZones(context.Context) ([]spc.Zone, error) {
	p.fetches["zones"]++
	return p.zones, p.err
}

func (p *fakePanel) FetchSectors(context.Context) ([]spc.Sector, error) {
	p.fetches["secteurs"]++
	return p.sectors, p.err
}

func (p *fakePanel) FetchDoors(context.Context) ([]spc.Door, error) {
	p.fetches["doors"]++
	return p.doors, p.err
}

func (p *fakePanel) FetchOutputs(context.Context) ([]spc.Output, error) {
	p.fetches["outputs"]++
	return p.outputs, p.err
}

func (p *fakePanel) FetchControllerStatus(context.Context) ([]spc.StatusEntry, error) {
	p.fetches["etat"]++
	return p.status, p.err
}

type pubCall struct {
	topic   string
	payload string
	retain  bool
}

// fakePub records publishes and can be told to fail specific topics.
type fakePub struct {
	calls []pubCall
	fail  map[string]bool
}

func (f *fakePub) Publish(topic, payload string, retain bool) error {
	if f.fail[topic] {
		return errors.New("broker down")
	}
	f.calls = append(f.calls, pubCall{topic, payload, retain})
	return nil
}

func (f *fakePub) payloads() map[string]string {
	m := make(map[string]string, len(f.calls))
	for _, c := range f.calls {
		m[c.topic] = c.payload
	}
	return m
}

func testConfig() *config.Config {
	return &config.Config{
		MQTT: config.MQTT{BaseTopic: "spc", Retain: true},
		Watchdog: config.Watchdog{
			RefreshInterval:           2,
			ControllerRefreshInterval: 60,
			Information:               config.Flags{Zones: true, Secteurs: true, Doors: true, Outputs: true},
		},
	}
}

func TestScanPublishesFullStateOnce(t *testing.T) {
	panel := newFakePanel()
	panel.zones = []spc.Zone{{ID: "1", Name: "01 Hall", Sector: "1 Maison", Entree: 1, State: 0}}
	panel.sectors = []spc.Sector{{ID: "1", Name: "Maison", State: 1}}
	pub := &fakePub{}
	w := New(testConfig(), panel, pub)

	w.scan(context.Background())

	got := pub.payloads()
	want := map[string]string{
		"zones/1/name":     "01 Hall",
		"zones/1/sector":   "1 Maison",
		"zones/1/state":    "0",
		"zones/1/entree":   "1",
		"secteurs/1/name":  "Maison",
		"secteurs/1/state": "1",
	}
	for topic, payload := range want {
		if got[topic] != payload {
			t.Errorf("%s = %q, want %q", topic, got[topic], payload)
		}
	}
	for _, c := range pub.calls {
		if !c.retain {
			t.Errorf("%s published unretained", c.topic)
		}
	}

	// An identical second scan publishes nothing.
	pub.calls = nil
	w.scan(context.Background())
	if len(pub.calls) != 0 {
		t.Fatalf("second scan published %v, want nothing", pub.calls)
	}
}

func TestScanPublishesOnlyChanges(t *testing.T) {
	panel := newFakePanel()
	panel.sectors = []spc.Sector{{ID: "1", Name: "Maison", State: 0}}
	pub := &fakePub{}
	w := New(testConfig(), panel, pub)

	w.scan(context.Background())
	pub.calls = nil

	panel.sectors[0].State = 1
	w.scan(context.Background())

	if len(pub.calls) != 1 {
		t.Fatalf("published %v, want exactly the state change", pub.calls)
	}
	if c := pub.calls[0]; c.topic != "secteurs/1/state" || c.payload != "1" {
		t.Fatalf("published %+v", c)
	}
}

func TestScanSuppressesUnknownStates(t *testing.T) {
	panel := newFakePanel()
	panel.zones = []spc.Zone{{ID: "1", Name: "01 Hall", Sector: "1", Entree: spc.StateUnknown, State: spc.StateUnknown}}
	pub := &fakePub{}
	w := New(testConfig(), panel, pub)

	w.scan(context.Background())

	got := pub.payloads()
	if _, ok := got["zones/1/state"]; ok {
		t.Error("unparseable state was published")
	}
	if _, ok := got["zones/1/entree"]; ok {
		t.Error("unparseable entree was published")
	}
	if got["zones/1/name"] != "01 Hall" {
		t.Error("metadata must still be published")
	}
}

func TestScanHonorsInformationFlags(t *testing.T) {
	cfg := testConfig()
	cfg.Watchdog.Information = config.Flags{Secteurs: true}
	panel := newFakePanel()
	panel.sectors = []spc.Sector{{ID: "1", Name: "Maison", State: 0}}
	w := New(cfg, panel, &fakePub{})

	w.scan(context.Background())

	if panel.fetches["secteurs"] != 1 {
		t.Error("enabled category was not fetched")
	}
	for _, cat := range []string{"zones", "doors", "outputs"} {
		if panel.fetches[cat] != 0 {
			t.Errorf("disabled category %s was fetched", cat)
		}
	}
}

func TestScanRetriesFailedPublish(t *testing.T) {
	panel := newFakePanel()
	panel.outputs = []spc.Output{{ID: "3", Name: "Sirène", State: 0, StateTxt: "OFF"}}
	pub := &fakePub{fail: map[string]bool{"outputs/3/state": true}}
	w := New(testConfig(), panel, pub)

	w.scan(context.Background())
	if _, ok := pub.payloads()["outputs/3/state"]; ok {
		t.Fatal("failed publish reported as delivered")
	}

	// Broker back: the unchanged value must go out because it was never
	// recorded.
	pub.fail = nil
	pub.calls = nil
	w.scan(context.Background())
	if pub.payloads()["outputs/3/state"] != "0" {
		t.Fatalf("state not republished after failure: %v", pub.calls)
	}
}

func TestScanControllerTopics(t *testing.T) {
	panel := newFakePanel()
	panel.status = []spc.StatusEntry{
		{Section: "Système", Label: "Version", Value: "3.8.5"},
		{Section: "Alimentation", Label: "Batterie", Value: "13.6V"},
	}
	pub := &fakePub{}
	w := New(testConfig(), panel, pub)

	w.scanController(context.Background())

	got := pub.payloads()
	if got["etat/syst_me/version"] != "3.8.5" {
		t.Errorf("version topic = %v", got)
	}
	if got["etat/alimentation/batterie"] != "13.6V" {
		t.Errorf("battery topic = %v", got)
	}

	// Identical rescan is silent.
	pub.calls = nil
	w.scanController(context.Background())
	if len(pub.calls) != 0 {
		t.Fatalf("rescan published %v", pub.calls)
	}
}

func TestScanFetchErrorLeavesSnapshot(t *testing.T) {
	panel := newFakePanel()
	panel.sectors = []spc.Sector{{ID: "1", Name: "Maison", State: 0}}
	pub := &fakePub{}
	w := New(testConfig(), panel, pub)

	w.scan(context.Background())
	before := w.snap.Len()

	panel.err = errors.New("panel unreachable")
	pub.calls = nil
	w.scan(context.Background())

	if len(pub.calls) != 0 {
		t.Fatalf("failed scan published %v", pub.calls)
	}
	if w.snap.Len() != before {
		t.Error("failed scan altered the snapshot")
	}
}
