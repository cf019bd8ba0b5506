package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vtn/infra/logger"
	"github.com/kilianp07/vtn/infra/mqtt"
	"github.com/kilianp07/vtn/simulator"
)

var (
	simMQTT     mqtt.Config
	simFleet    simulator.FleetConfig
	simLatency  time.Duration
	simDropRate float64
	simOptOut   float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a fleet of simulated VENs against a VTN over MQTT",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := simMQTT
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return err
		}
		log := logger.New("simulator")
		fleet := simFleet
		fleet.Strategy = simulator.RandomOpt{Delay: simLatency, DropRate: simDropRate, OptOutRate: simOptOut}
		fleet.QoS = cfg.QoS[mqtt.QoSCreated]
		fleet.Log = log
		vens := simulator.GenerateFleet(fleet, mqtt.Topics{Prefix: cfg.TopicPrefix})
		log.Infof("starting %d simulated VENs against %s", len(vens), cfg.Broker)
		simulator.RunFleet(ctx, vens, cfg, log)
		return nil
	},
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simMQTT.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	f.StringVar(&simMQTT.Username, "username", "", "MQTT username")
	f.StringVar(&simMQTT.Password, "password", "", "MQTT password")
	f.StringVar(&simMQTT.TopicPrefix, "topic-prefix", mqtt.DefaultPrefix, "MQTT topic prefix")
	f.IntVar(&simFleet.Size, "count", 1, "number of VENs")
	f.StringVar(&simFleet.IDPrefix, "id-prefix", "ven", "VEN id prefix")
	f.DurationVar(&simFleet.PollInterval, "poll", 30*time.Second, "oadrRequestEvent interval")
	f.Float64Var(&simFleet.ReluctantPct, "reluctant-pct", 0, "share of VENs opting out of everything")
	f.DurationVar(&simLatency, "ack-latency", 0, "delay before answering an offer")
	f.Float64Var(&simDropRate, "drop-rate", 0, "probability of ignoring an offer")
	f.Float64Var(&simOptOut, "opt-out-rate", 0, "probability of opting out")
	rootCmd.AddCommand(simulateCmd)
}
