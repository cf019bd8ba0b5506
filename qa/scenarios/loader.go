// Package scenarios replays YAML described event lifecycles against an
// EventService driven by a manual clock.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/core/scheduler"
)

// EventDef is an event offered to a VEN before the steps run. Offsets are
// relative to the scenario clock start.
type EventDef struct {
	Ven      string         `yaml:"ven"`
	ID       string         `yaml:"id"`
	Start    time.Duration  `yaml:"start"`
	Duration time.Duration  `yaml:"duration"`
	RampUp   *time.Duration `yaml:"ramp_up,omitempty"`
	Status   string         `yaml:"status,omitempty"`
}

// ToModel builds the event relative to t0.
func (e EventDef) ToModel(t0 time.Time) model.Event {
	return model.Event{
		Descriptor: model.EventDescriptor{EventID: e.ID, EventStatus: model.EventStatus(e.Status)},
		ActivePeriod: model.ActivePeriod{
			DTStart:      t0.Add(e.Start),
			Duration:     e.Duration,
			RampUpPeriod: e.RampUp,
		},
	}
}

// ResponseDef is one oadrCreatedEvent sent by a VEN.
type ResponseDef struct {
	Ven   string `yaml:"ven"`
	Event string `yaml:"event"`
	Opt   string `yaml:"opt"`
}

// Step is a single action. Exactly one field is set.
type Step struct {
	Advance time.Duration `yaml:"advance,omitempty"`
	Request string        `yaml:"request,omitempty"`
	Respond *ResponseDef  `yaml:"respond,omitempty"`
	Cancel  string        `yaml:"cancel,omitempty"`
	// Events is the number of events the request step must return.
	Events *int `yaml:"events,omitempty"`
}

func (s Step) validate() error {
	n := 0
	if s.Advance > 0 {
		n++
	}
	if s.Request != "" {
		n++
	}
	if s.Respond != nil {
		n++
	}
	if s.Cancel != "" {
		n++
	}
	if n != 1 {
		return fmt.Errorf("step must set exactly one action, got %d", n)
	}
	return nil
}

type Expected struct {
	// Pushes lists, per VEN, the statuses in the order they were queued.
	Pushes    map[string][]string `yaml:"pushes"`
	Pending   int                 `yaml:"pending"`
	Running   int                 `yaml:"running"`
	Decisions int                 `yaml:"decisions"`
}

type Scenario struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Policy      scheduler.Config `yaml:"policy"`
	Events      []EventDef       `yaml:"events"`
	Steps       []Step           `yaml:"steps"`
	Expected    Expected         `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i, st := range sc.Steps {
		if err := st.validate(); err != nil {
			return nil, fmt.Errorf("%s: step %d: %w", path, i, err)
		}
	}
	return &sc, nil
}
