package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apievents "github.com/kilianp07/vtn/api/events"
	"github.com/kilianp07/vtn/auth"
	"github.com/kilianp07/vtn/core/eventlog"
	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/pkg/export"
)

var (
	apiURL   string
	apiToken string
	apiOAuth auth.Conf

	addVen      string
	addID       string
	addStart    time.Duration
	addDuration time.Duration
	addRampUp   time.Duration
	addSignal   string
	addPayload  float64
	addPriority uint
	addTest     bool

	listVen string

	logsQuery  eventlog.LogQuery
	logsSince  time.Duration
	logsFormat string
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Manage events on a running VTN",
}

var eventAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Offer a demo event to a VEN",
	RunE:  eventAdd,
}

var eventCancelCmd = &cobra.Command{
	Use:   "cancel <event-id>",
	Short: "Cancel a tracked event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().Cancel(contextOf(cmd), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", args[0])
		return nil
	},
}

var eventListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending and running events",
	RunE: func(cmd *cobra.Command, args []string) error {
		views, err := client().List(contextOf(cmd), listVen)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	},
}

var eventLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Export the audit trail as JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := logsQuery
		if logsSince > 0 {
			q.Start = time.Now().Add(-logsSince)
		}
		recs, err := client().Logs(contextOf(cmd), q)
		if err != nil {
			return err
		}
		return export.Write(cmd.OutOrStdout(), logsFormat, recs)
	},
}

func init() {
	eventCmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8080", "admin API base URL")
	eventCmd.PersistentFlags().StringVar(&apiToken, "token", "", "admin API bearer token")
	eventCmd.PersistentFlags().StringVar(&apiOAuth.TokenURL, "oauth-token-url", "", "OAuth2 token endpoint; enables the client credentials flow")
	eventCmd.PersistentFlags().StringVar(&apiOAuth.ClientID, "oauth-client-id", "", "OAuth2 client id")
	eventCmd.PersistentFlags().StringVar(&apiOAuth.ClientSecret, "oauth-client-secret", "", "OAuth2 client secret")
	eventCmd.PersistentFlags().StringSliceVar(&apiOAuth.Scopes, "oauth-scope", nil, "OAuth2 scopes")

	f := eventAddCmd.Flags()
	f.StringVar(&addVen, "ven", "", "target VEN id")
	f.StringVar(&addID, "id", "", "event id (random when empty)")
	f.DurationVar(&addStart, "start", time.Minute, "delay before the event becomes active")
	f.DurationVar(&addDuration, "duration", 15*time.Minute, "active duration")
	f.DurationVar(&addRampUp, "ramp-up", 0, "near period before the start")
	f.StringVar(&addSignal, "signal", "SIMPLE", "signal name")
	f.Float64Var(&addPayload, "payload", 1, "signal level")
	f.UintVar(&addPriority, "priority", 0, "event priority")
	f.BoolVar(&addTest, "test", false, "mark as test event")
	_ = eventAddCmd.MarkFlagRequired("ven")

	eventListCmd.Flags().StringVar(&listVen, "ven", "", "only list events of this VEN")

	lf := eventLogsCmd.Flags()
	lf.StringVar(&logsQuery.VenID, "ven", "", "only records of this VEN")
	lf.StringVar(&logsQuery.EventID, "event", "", "only records of this event")
	lf.StringVar(&logsQuery.Kind, "kind", "", "only records of this kind (offer, request, decision, transition, queue_drop)")
	lf.DurationVar(&logsSince, "since", 0, "only records newer than this")
	lf.StringVar(&logsFormat, "format", "json", "output format: json or csv")

	eventCmd.AddCommand(eventAddCmd, eventCancelCmd, eventListCmd, eventLogsCmd)
	rootCmd.AddCommand(eventCmd)
}

func client() *apievents.Client {
	c := &apievents.Client{BaseURL: apiURL, Token: apiToken}
	if apiOAuth.Enabled() {
		c.Auth = auth.NewClientCred(apiOAuth)
	}
	return c
}

func demoEvent(now time.Time) model.Event {
	ev := model.Event{
		Descriptor: model.EventDescriptor{
			EventID:   addID,
			Priority:  addPriority,
			TestEvent: addTest,
		},
		ActivePeriod: model.ActivePeriod{
			DTStart:  now.Add(addStart).UTC().Truncate(time.Second),
			Duration: addDuration,
		},
		Signals: []model.EventSignal{{
			SignalName: addSignal,
			SignalType: "level",
			Intervals:  []model.Interval{{Duration: addDuration, Payload: addPayload}},
		}},
		Targets: []model.Target{{VenID: addVen}},
	}
	if addRampUp > 0 {
		r := addRampUp
		ev.ActivePeriod.RampUpPeriod = &r
	}
	return ev
}

func eventAdd(cmd *cobra.Command, args []string) error {
	out, err := client().Add(contextOf(cmd), addVen, demoEvent(time.Now()))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "offered %s to %s\n", out.EventID, addVen)
	if out.Warning != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", out.Warning)
	}
	return nil
}
