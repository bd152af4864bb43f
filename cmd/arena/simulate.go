package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/swarm-arena/internal/engine"
)

var cycles int

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a fixed number of cycles headless and print a summary",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&cycles, "cycles", 100, "number of cycles to run")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if cycles < 1 {
		return fmt.Errorf("--cycles must be >= 1, got %d", cycles)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mirror := openMirror(cfg.Mirror)
	if mirror != nil {
		defer mirror.Close()
	}
	sim := newSimulation(cfg, mirror)
	eng := engine.NewEngine(sim, cfg.Engine.Interval)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var st engine.Stats
	for i := 0; i < cycles; i++ {
		if ctx.Err() != nil {
			break
		}
		st = eng.RunTick(ctx)
		if st.Actors > 0 && st.Active == 0 && st.Critical == 0 {
			break
		}
	}

	writeSummary(os.Stdout, st, sim)
	return nil
}

func summaryLine(st engine.Stats) string {
	return fmt.Sprintf("%s tx, %s scams, %s deaths, gini %.3f, volume %s",
		humanize.Comma(int64(st.Totals.Transactions)),
		humanize.Comma(int64(st.Totals.Scams)),
		humanize.Comma(int64(st.Totals.Deaths)),
		st.Gini,
		humanize.FtoaWithDigits(st.Totals.Volume, 4),
	)
}

func writeSummary(out io.Writer, st engine.Stats, sim *engine.Simulation) {
	fmt.Fprintf(out, "Arena after %s cycles\n", humanize.Comma(int64(st.Cycle)))
	fmt.Fprintf(out, "  actors      %d (active %d, critical %d, exhausted %d)\n",
		st.Actors, st.Active, st.Critical, st.Exhausted)
	fmt.Fprintf(out, "  balance     total %s, average %s\n",
		humanize.FtoaWithDigits(st.TotalBalance, 4), humanize.FtoaWithDigits(st.AverageBalance, 4))
	fmt.Fprintf(out, "  activity    %s\n", summaryLine(st))
	fmt.Fprintf(out, "  social      %d cartels, %d alliances\n", st.Cartels, st.Alliances)
	fmt.Fprintf(out, "  reasoning   enabled=%t breaker_open=%t\n\n", st.ReasoningEnabled, st.BreakerOpen)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tSTATUS\tBALANCE\tREP\tDONE\tSCAMS\tMODE")
	for _, a := range sim.Agents() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f\t%s\t%d\t%s\n",
			a.Name, a.Category, a.Status,
			humanize.FtoaWithDigits(a.Balance, 4), a.Reputation,
			humanize.Comma(int64(a.Completed)), a.Scams, a.Strategy.Pricing)
	}
	tw.Flush()
}
