package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lolzio5/PiTrainer/internal/backend"
	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/logger"
)

var webLog = logger.New("web")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the dashboard is served on the local network only
	},
}

// DeviceView is the latest known activity of one device.
type DeviceView struct {
	Device  string                  `json:"device"`
	State   string                  `json:"state"`
	Reps    *backend.RepCount       `json:"reps,omitempty"`
	Set     *backend.SetResult      `json:"set,omitempty"`
	Workout *backend.WorkoutSummary `json:"workout,omitempty"`
	Updated time.Time               `json:"updated"`
}

// Event is pushed to dashboard clients over the websocket.
type Event struct {
	Type   string     `json:"type"` // state, reps, set, workout
	Device string     `json:"device"`
	View   DeviceView `json:"view"`
}

type statePublisher interface {
	PublishState(ctx context.Context, device string, s backend.State) error
}

// Dashboard keeps the latest payload of every device and fans updates out
// to websocket clients.
type Dashboard struct {
	mu      sync.RWMutex
	devices map[string]*DeviceView
	clients map[chan Event]struct{}

	states statePublisher
	now    func() time.Time
}

func NewDashboard(states statePublisher) *Dashboard {
	return &Dashboard{
		devices: make(map[string]*DeviceView),
		clients: make(map[chan Event]struct{}),
		states:  states,
		now:     time.Now,
	}
}

// Handlers wires the dashboard to a backend.Listener.
func (d *Dashboard) Handlers() backend.Handlers {
	return backend.Handlers{
		State: func(device string, s backend.State) {
			d.update("state", device, func(v *DeviceView) { v.State = s.String() })
		},
		Reps: func(rc backend.RepCount) {
			d.update("reps", rc.Device, func(v *DeviceView) { v.Reps = &rc })
		},
		Set: func(sr backend.SetResult) {
			d.update("set", sr.Device, func(v *DeviceView) { v.Set = &sr })
		},
		Workout: func(ws backend.WorkoutSummary) {
			d.update("workout", ws.Device, func(v *DeviceView) { v.Workout = &ws })
		},
	}
}

func (d *Dashboard) update(kind, device string, apply func(*DeviceView)) {
	d.mu.Lock()
	v, ok := d.devices[device]
	if !ok {
		v = &DeviceView{Device: device, State: backend.IdleState}
		d.devices[device] = v
	}
	apply(v)
	v.Updated = d.now()
	ev := Event{Type: kind, Device: device, View: *v}
	for ch := range d.clients {
		select {
		case ch <- ev:
		default:
			// Slow client; it catches up from the next event.
		}
	}
	d.mu.Unlock()
}

func (d *Dashboard) subscribe() chan Event {
	ch := make(chan Event, 16)
	d.mu.Lock()
	d.clients[ch] = struct{}{}
	d.mu.Unlock()
	return ch
}

func (d *Dashboard) unsubscribe(ch chan Event) {
	d.mu.Lock()
	delete(d.clients, ch)
	d.mu.Unlock()
}

// Devices returns every device view sorted by device id.
func (d *Dashboard) Devices() []DeviceView {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]DeviceView, 0, len(d.devices))
	for _, v := range d.devices {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Device < out[j].Device })
	return out
}

// Routes returns the API and websocket routes, with static files at /.
func (d *Dashboard) Routes(staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/devices", d.handleDevices)
	mux.HandleFunc("GET /api/devices/{id}", d.handleDevice)
	mux.HandleFunc("POST /api/devices/{id}/state", d.handleSetState)
	mux.HandleFunc("/ws", d.handleWS)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

func (d *Dashboard) handleDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, d.Devices())
}

func (d *Dashboard) handleDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d.mu.RLock()
	v, ok := d.devices[id]
	var view DeviceView
	if ok {
		view = *v
	}
	d.mu.RUnlock()
	if !ok {
		http.Error(w, "no data yet", http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

// handleSetState takes the state as the plain-text request body.
func (d *Dashboard) handleSetState(w http.ResponseWriter, r *http.Request) {
	if d.states == nil {
		http.Error(w, "read-only dashboard", http.StatusNotImplemented)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 256))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s := backend.ParseState(string(body))
	if err := d.states.PublishState(r.Context(), r.PathValue("id"), s); err != nil {
		webLog.Warnf("set state: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (d *Dashboard) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		webLog.Warnf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	events := d.subscribe()
	defer d.unsubscribe(events)

	// The initial snapshot lets a fresh page render before the next event.
	for _, v := range d.Devices() {
		if err := conn.WriteJSON(Event{Type: "snapshot", Device: v.Device, View: v}); err != nil {
			return
		}
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev := <-events:
			if err := conn.WriteJSON(ev); err != nil {
				webLog.Warnf("websocket write error: %v", err)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		webLog.Warnf("json encode error: %v", err)
	}
}

// RunWeb serves the dashboard until ctx is cancelled.
func RunWeb(ctx context.Context, cfg *config.Config) error {
	d := NewDashboard(nil)
	l, err := backend.Listen(cfg.MQTT, cfg.MQTT.ClientIDWeb, d.Handlers())
	if err != nil {
		return err
	}
	defer l.Close()
	d.states = l

	srv := &http.Server{Addr: cfg.Web.Listen, Handler: d.Routes(cfg.Web.StaticDir)}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	webLog.Infof("web server listening on %s", cfg.Web.Listen)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
