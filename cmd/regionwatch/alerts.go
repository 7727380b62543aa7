package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eveapm/regionwatch/internal/config"
	"github.com/eveapm/regionwatch/internal/logging"
	"github.com/eveapm/regionwatch/internal/store"
)

func newAlertsCommand() *cobra.Command {
	var (
		limit     int
		character string
	)

	cmd := &cobra.Command{
		Use:           "alerts",
		Short:         "Show recent alerts from the history database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(configPath)
			if err != nil {
				return err
			}
			db, err := store.Open(settings.Storage.DatabasePath, logging.Nop())
			if err != nil {
				return err
			}
			defer db.Close()

			var alerts []store.Alert
			if character != "" {
				alerts, err = db.AlertsForCharacter(character, limit)
			} else {
				alerts, err = db.RecentAlerts(limit)
			}
			if err != nil {
				return err
			}
			if len(alerts) == 0 {
				fmt.Println("No alerts recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tCHARACTER\tLABEL\tSCORE\tMETHOD")
			for _, alert := range alerts {
				label := alert.Label
				if label == "" {
					label = alert.RuleID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\n",
					alert.TriggeredAt.Local().Format("2006-01-02 15:04:05"),
					alert.Character, label, alert.Score, alert.MethodTag)
			}
			w.Flush()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of alerts to show")
	cmd.Flags().StringVar(&character, "character", "", "Only show alerts for this character")
	return cmd
}
