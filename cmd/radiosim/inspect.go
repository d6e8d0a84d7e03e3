package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/talgya/rim-radio/internal/engine"
	"github.com/talgya/rim-radio/internal/persistence"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the saved colony state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfg.Database.Path); err != nil {
			return fmt.Errorf("no saved state at %s: %w", cfg.Database.Path, err)
		}
		db, err := persistence.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		return inspect(db)
	},
}

func inspect(db *persistence.DB) error {
	tick, err := db.LastTick()
	if err != nil {
		return err
	}
	fmt.Printf("Saved at tick %d (%s)\n\n", tick, engine.SimTime(tick))

	ag, err := db.LoadAgents()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGEN\tNAME\tJOY\tMOOD\tSTATUSES\tMEMORIES\tALIVE")
	for _, a := range ag {
		kinds := make([]string, 0, len(a.Statuses))
		for k := range a.Statuses {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.2f\t%.1f\t%v\t%d\t%t\n",
			a.ID, a.Gen, a.Name, a.Joy, a.Mood, kinds, len(a.Memories), a.Alive)
	}
	tw.Flush()

	rows, err := db.AllEffectRecords()
	if err != nil {
		return err
	}
	fmt.Printf("\n%d effect records\n", len(rows))
	tw = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCATION\tLISTENER\tKIND\tSEVERITY\tEXPIRES")
	for _, r := range rows {
		listener := "-"
		if r.ListenerID != nil {
			listener = fmt.Sprintf("%d", *r.ListenerID)
			if r.ListenerGen != nil {
				listener += fmt.Sprintf("#%d", *r.ListenerGen)
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%d\n", r.LocationID, listener, r.Kind, r.Severity, r.ExpireAt)
	}
	tw.Flush()

	events, err := db.RecentEvents(10)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		fmt.Println("\nRecent events")
		for _, e := range events {
			fmt.Printf("  [%s] %s: %s\n", engine.SimTime(e.Tick), e.Category, e.Description)
		}
	}
	return nil
}
