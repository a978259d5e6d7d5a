// Package watchdog drives the bridge: two periodic scan loops that diff the
// panel's state against the last published snapshot, and the command router
// that turns MQTT messages back into panel requests.
package watchdog

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/acre-exp/spc2mqtt/internal/config"
	"github.com/acre-exp/spc2mqtt/internal/spc"
)

// Panel is the read side of the panel client.
type Panel interface {
	FetchZones(ctx context.Context) ([]spc.Zone, error)
	FetchSectors(ctx context.Context) ([]spc.Sector, error)
	FetchDoors(ctx context.Context) ([]spc.Door, error)
	FetchOutputs(ctx context.Context) ([]spc.Output, error)
	FetchControllerStatus(ctx context.Context) ([]spc.StatusEntry, error)
}

// Publisher sends one payload to one topic (relative to the base topic).
type Publisher interface {
	Publish(topic, payload string, retain bool) error
}

// Watchdog owns the fast state scan and the slower controller scan.
type Watchdog struct {
	cfg   *config.Config
	panel Panel
	pub   Publisher

	// snap is owned by the fast-scan loop, ctrl by the controller loop.
	snap *Snapshot
	ctrl *Snapshot
}

// New creates a Watchdog with empty snapshots, so the first scan publishes
// the full state.
func New(cfg *config.Config, panel Panel, pub Publisher) *Watchdog {
	return &Watchdog{
		cfg:   cfg,
		panel: panel,
		pub:   pub,
		snap:  NewSnapshot(),
		ctrl:  NewSnapshot(),
	}
}

// Run starts both loops and blocks until the context is cancelled and any
// in-flight scan has finished.
func (w *Watchdog) Run(ctx context.Context) {
	fast := secondsToDuration(w.cfg.Watchdog.RefreshInterval)
	slow := secondsToDuration(w.cfg.Watchdog.ControllerRefreshInterval)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.loop(ctx, fast, w.scan)
	}()
	go func() {
		defer wg.Done()
		w.loop(ctx, slow, w.scanController)
	}()
	wg.Wait()
}

// loop runs tick immediately, then on every interval until cancellation.
func (w *Watchdog) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			tick(ctx)
		}
	}
}

// scan is the fast tick: fetch every information-enabled category, diff,
// publish. A fetch failure skips that category for this tick and leaves its
// snapshot entries untouched.
func (w *Watchdog) scan(ctx context.Context) {
	info := w.cfg.Watchdog.Information

	if info.Zones {
		if zones, err := w.panel.FetchZones(ctx); err != nil {
			log.Printf("scan: zones: %v", err)
		} else {
			w.publishZones(zones)
		}
	}
	if info.Secteurs {
		if sectors, err := w.panel.FetchSectors(ctx); err != nil {
			log.Printf("scan: secteurs: %v", err)
		} else {
			w.publishSectors(sectors)
		}
	}
	if info.Doors {
		if doors, err := w.panel.FetchDoors(ctx); err != nil {
			log.Printf("scan: doors: %v", err)
		} else {
			w.publishDoors(doors)
		}
	}
	if info.Outputs {
		if outputs, err := w.panel.FetchOutputs(ctx); err != nil {
			log.Printf("scan: outputs: %v", err)
		} else {
			w.publishOutputs(outputs)
		}
	}
}

// scanController is the slow tick for the controller status page.
func (w *Watchdog) scanController(ctx context.Context) {
	entries, err := w.panel.FetchControllerStatus(ctx)
	if err != nil {
		log.Printf("scan: controller status: %v", err)
		return
	}
	for _, e := range entries {
		topic := "etat/" + spc.Slugify(e.Section) + "/" + spc.Slugify(e.Label)
		w.emit(w.ctrl, topic, e.Value)
	}
}

// Metadata is emitted before state for each entity, so a fresh subscriber
// always sees a name before the first state change.

func (w *Watchdog) publishZones(zones []spc.Zone) {
	for _, z := range zones {
		base := "zones/" + z.ID
		w.emit(w.snap, base+"/name", z.Name)
		w.emit(w.snap, base+"/sector", z.Sector)
		w.emitInt(w.snap, base+"/state", z.State)
		w.emitInt(w.snap, base+"/entree", z.Entree)
	}
}

func (w *Watchdog) publishSectors(sectors []spc.Sector) {
	for _, s := range sectors {
		base := "secteurs/" + s.ID
		w.emit(w.snap, base+"/name", s.Name)
		w.emitInt(w.snap, base+"/state", s.State)
	}
}

func (w *Watchdog) publishDoors(doors []spc.Door) {
	for _, d := range doors {
		base := "doors/" + d.ID
		w.emit(w.snap, base+"/name", d.Name)
		w.emit(w.snap, base+"/zone", d.Zone)
		w.emit(w.snap, base+"/sector", d.Sector)
		w.emitInt(w.snap, base+"/state", d.State)
		w.emitInt(w.snap, base+"/drs", d.DRS)
		w.emitInt(w.snap, base+"/dps", d.DPS)
	}
}

func (w *Watchdog) publishOutputs(outputs []spc.Output) {
	for _, o := range outputs {
		base := "outputs/" + o.ID
		w.emit(w.snap, base+"/name", o.Name)
		w.emitInt(w.snap, base+"/state", o.State)
		w.emit(w.snap, base+"/state_txt", o.StateTxt)
	}
}

// emitInt publishes an integer state, suppressing the unparseable sentinel.
func (w *Watchdog) emitInt(snap *Snapshot, topic string, value int) {
	if value == spc.StateUnknown {
		return
	}
	w.emit(snap, topic, strconv.Itoa(value))
}

// emit publishes payload when it differs from the snapshot, recording it
// only on success so failed publishes are retried next scan.
func (w *Watchdog) emit(snap *Snapshot, topic, payload string) {
	if !snap.Changed(topic, payload) {
		return
	}
	if err := w.pub.Publish(topic, payload, w.cfg.MQTT.Retain); err != nil {
		log.Printf("publish %s: %v", topic, err)
		return
	}
	snap.Record(topic, payload)
	if w.cfg.Watchdog.LogChanges {
		log.Printf("%s = %s", topic, payload)
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
