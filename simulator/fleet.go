package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/vtn/core/logger"
	"github.com/kilianp07/vtn/infra/mqtt"
)

// FleetConfig holds parameters for bulk VEN generation.
type FleetConfig struct {
	Size         int
	IDPrefix     string
	PollInterval time.Duration
	// ReluctantPct is the share of VENs that opt out of every offer.
	ReluctantPct float64
	// Strategy answers offers for the cooperative VENs.
	Strategy OptStrategy
	QoS      byte
	Log      logger.Logger
}

// GenerateFleet creates Size VENs named <prefix>0001..<prefix>NNNN. VENs are
// put in the "reluctant" segment according to ReluctantPct, otherwise in
// "cooperative".
func GenerateFleet(cfg FleetConfig, topics mqtt.Topics) []*SimulatedVEN {
	if cfg.Size <= 0 {
		return nil
	}
	prefix := cfg.IDPrefix
	if prefix == "" {
		prefix = "ven"
	}
	strat := cfg.Strategy
	if strat == nil {
		strat = AutoOpt{}
	}
	vs := make([]*SimulatedVEN, cfg.Size)
	for i := range vs {
		seg, s := "cooperative", strat
		if cfg.ReluctantPct > 0 && rng.Float64() < cfg.ReluctantPct {
			seg, s = "reluctant", RandomOpt{OptOutRate: 1}
		}
		v := NewSimulatedVEN(fmt.Sprintf("%s%04d", prefix, i+1), topics, s)
		v.Segment = seg
		v.PollInterval = cfg.PollInterval
		v.QoS = cfg.QoS
		v.Log = logger.OrNop(cfg.Log)
		vs[i] = v
	}
	return vs
}

// RunFleet runs every VEN until ctx is done and logs their counters.
func RunFleet(ctx context.Context, vens []*SimulatedVEN, cfg mqtt.Config, log logger.Logger) {
	log = logger.OrNop(log)
	var wg sync.WaitGroup
	for _, v := range vens {
		wg.Add(1)
		go func(v *SimulatedVEN) {
			defer wg.Done()
			if err := v.Run(ctx, cfg); err != nil {
				log.Errorf("%v", err)
			}
		}(v)
	}
	wg.Wait()
	for _, v := range vens {
		log.Infow("ven stats", map[string]any{
			"ven_id":      v.ID,
			"segment":     v.Segment,
			"offers":      v.Stats.Offers.Load(),
			"opt_in":      v.Stats.OptIns.Load(),
			"opt_out":     v.Stats.OptOuts.Load(),
			"silent":      v.Stats.Silent.Load(),
			"transitions": v.Stats.Transitions.Load(),
		})
	}
}
