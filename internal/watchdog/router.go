package watchdog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/acre-exp/spc2mqtt/internal/config"
	"github.com/acre-exp/spc2mqtt/internal/spc"
)

// Commander is the write side of the panel client.
type Commander interface {
	Command(ctx context.Context, cat spc.Category, id, verb string) error
}

// Subscriber registers a callback for a topic pattern under the base topic.
type Subscriber interface {
	Subscribe(topic string, cb func(topic string, payload []byte)) error
}

// panelAction pairs the canonical panel verb with the ack payload published
// on success.
type panelAction struct {
	verb string
	ack  string
}

// Accepted payloads per category. Sector acks carry the target state code;
// the others echo the textual action.
var (
	sectorActions = map[string]panelAction{
		"0": {"mhs", "ok:0"}, "mhs": {"mhs", "ok:0"},
		"1": {"mes", "ok:1"}, "mes": {"mes", "ok:1"},
		"2": {"parta", "ok:2"}, "part": {"parta", "ok:2"},
		"3": {"partb", "ok:3"}, "partb": {"partb", "ok:3"},
	}
	doorActions = map[string]panelAction{
		"normal": {"normal", "ok:normal"},
		"lock":   {"lock", "ok:lock"},
		"unlock": {"unlock", "ok:unlock"},
		"pulse":  {"pulse", "ok:pulse"},
	}
	outputActions = map[string]panelAction{
		"1": {"on", "ok:on"}, "on": {"on", "ok:on"},
		"0": {"off", "ok:off"}, "off": {"off", "ok:off"},
	}
	zoneActions = map[string]panelAction{
		"inhibit":   {"inhibit", "ok:inhibit"},
		"uninhibit": {"uninhibit", "ok:uninhibit"},
		"isolate":   {"isolate", "ok:isolate"},
		"unisolate": {"unisolate", "ok:unisolate"},
		"testjdb":   {"testjdb", "ok:testjdb"},
		"restore":   {"restore", "ok:restore"},
	}

	actionTables = map[spc.Category]map[string]panelAction{
		spc.CategorySecteurs: sectorActions,
		spc.CategoryDoors:    doorActions,
		spc.CategoryOutputs:  outputActions,
		spc.CategoryZones:    zoneActions,
	}
)

// commandQueueSize bounds pending commands. Broker callbacks enqueue; the
// single worker drains, so panel mutations stay single-flight.
const commandQueueSize = 16

type command struct {
	category spc.Category
	id       string
	payload  string
}

// Router subscribes to <category>/+/set topics, validates payloads, runs
// them against the panel, and publishes an ack on the sibling
// command_result topic (never retained).
type Router struct {
	cfg   *config.Config
	panel Commander
	pub   Publisher
	queue chan command
}

// NewRouter creates a Router; Subscribe and Run wire it up.
func NewRouter(cfg *config.Config, panel Commander, pub Publisher) *Router {
	return &Router{
		cfg:   cfg,
		panel: panel,
		pub:   pub,
		queue: make(chan command, commandQueueSize),
	}
}

// Subscribe registers the per-category command subscriptions for every
// control-enabled category. Call it from the MQTT on-connect callback so
// subscriptions survive reconnects.
func (r *Router) Subscribe(sub Subscriber) error {
	for _, cat := range spc.Categories {
		if !r.cfg.Watchdog.Controle.Enabled(string(cat)) {
			continue
		}
		if err := sub.Subscribe(string(cat)+"/+/set", r.HandleMessage); err != nil {
			return fmt.Errorf("subscribe %s: %w", cat, err)
		}
	}
	return nil
}

// HandleMessage parses an incoming command topic and enqueues the command.
// It runs on the MQTT client's goroutine and never blocks: when the queue
// is full the oldest pending command is dropped with an overloaded ack.
func (r *Router) HandleMessage(topic string, payload []byte) {
	cat, id, ok := r.parseTopic(topic)
	if !ok {
		log.Printf("router: ignoring malformed command topic %q", topic)
		return
	}
	cmd := command{category: cat, id: id, payload: strings.TrimSpace(string(payload))}
	for {
		select {
		case r.queue <- cmd:
			return
		default:
			select {
			case old := <-r.queue:
				r.ack(old, "error:overloaded")
			default:
			}
		}
	}
}

// parseTopic expects <base>/<category>/<id>/set.
func (r *Router) parseTopic(topic string) (spc.Category, string, bool) {
	base := r.cfg.MQTT.BaseTopic + "/"
	rest, found := strings.CutPrefix(topic, base)
	if !found {
		// Some brokers hand the topic back without the base prefix
		// depending on how the adapter subscribed; accept both.
		rest = topic
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != "set" || parts[1] == "" {
		return "", "", false
	}
	cat := spc.Category(parts[0])
	if _, ok := actionTables[cat]; !ok {
		return "", "", false
	}
	return cat, parts[1], true
}

// Run drains the command queue until the context is cancelled. Commands are
// processed one at a time: the panel session is not safe for parallel
// mutations.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-r.queue:
			r.dispatch(ctx, cmd)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, cmd command) {
	if !r.cfg.Watchdog.Controle.Enabled(string(cmd.category)) {
		r.ack(cmd, "error:control-disabled")
		return
	}

	action, ok := actionTables[cmd.category][strings.ToLower(cmd.payload)]
	if !ok {
		r.ack(cmd, "error:bad-payload")
		return
	}

	err := r.panel.Command(ctx, cmd.category, cmd.id, action.verb)
	switch {
	case err == nil:
		r.ack(cmd, action.ack)
	case errors.Is(err, spc.ErrNoSession):
		r.ack(cmd, "error:no-session")
	default:
		var he *spc.HTTPError
		if errors.As(err, &he) {
			r.ack(cmd, fmt.Sprintf("error:http-%d", he.StatusCode))
		} else {
			r.ack(cmd, "error:network")
		}
	}
}

// ack publishes the command result. Acks are transient, never retained.
func (r *Router) ack(cmd command, code string) {
	topic := fmt.Sprintf("%s/%s/command_result", cmd.category, cmd.id)
	if err := r.pub.Publish(topic, code, false); err != nil {
		log.Printf("router: ack %s=%s: %v", topic, code, err)
	}
}
