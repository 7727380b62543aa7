package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eveapm/regionwatch/internal/config"
)

func newRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rules",
		Short:         "Inspect the watch rules file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRulesValidateCommand())
	return cmd
}

func newRulesValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "validate",
		Short:         "Validate the rules file and print each rule's effective key",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := config.LoadRules(rulesPath)
			if err != nil {
				return err
			}
			if len(rules) == 0 {
				fmt.Printf("%s: no rules defined\n", rulesPath)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tCHARACTER\tLABEL\tREGION\tTHRESHOLD\tENABLED")
			for _, rule := range rules {
				fmt.Fprintf(w, "%s\t%s\t%s\t[%.4f %.4f %.4f %.4f]\t%d%%\t%t\n",
					rule.EffectiveKey(), rule.Character, rule.Label,
					rule.Region.X, rule.Region.Y, rule.Region.W, rule.Region.H,
					rule.ClampThreshold(), rule.Enabled)
			}
			w.Flush()

			fmt.Printf("%d rule(s) valid\n", len(rules))
			return nil
		},
	}
}
