package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vtn/app/plugins"
	"github.com/kilianp07/vtn/config"
	coremetrics "github.com/kilianp07/vtn/core/metrics"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and validate the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if _, err := plugins.BuildHooks(cfg.Hooks, &plugins.Deps{}); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "vtn_id:       %s\n", cfg.Service.VTNID)
		fmt.Fprintf(w, "polling_mode: %s\n", cfg.Service.PollingMode)
		if cfg.MQTTEnabled() {
			fmt.Fprintf(w, "transport:    mqtt %s (prefix %s)\n", cfg.MQTT.Broker, cfg.MQTT.TopicPrefix)
		} else {
			fmt.Fprintf(w, "transport:    memory queue\n")
		}
		fmt.Fprintf(w, "hooks:        request_event=%s created_event=%s decision=%s\n",
			cfg.Hooks.RequestEvent.Type, cfg.Hooks.CreatedEvent.Type, cfg.Hooks.Decision.Type)
		fmt.Fprintf(w, "retention:    prune_terminal=%t cancel_timers_on_discard=%t\n",
			cfg.Scheduler.PruneTerminal, cfg.Scheduler.CancelTimersOnDiscard)
		fmt.Fprintf(w, "metrics:      %d sink(s), known types %v\n", len(cfg.Metrics.Sinks), coremetrics.SinkTypes())
		fmt.Fprintln(w, "configuration OK")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}
