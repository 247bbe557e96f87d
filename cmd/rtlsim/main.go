// cmd/rtlsim/main.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// rtlsim runs return-to-launch scenarios against the flight mode
// autopilot and reports the resulting mode changes and landing point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/goforj/godump"
	"github.com/mmp/flightmode/log"
	"github.com/mmp/flightmode/nav"
	"github.com/mmp/flightmode/sim"
	"github.com/mmp/flightmode/util"
	"golang.org/x/sync/errgroup"
)

var (
	scenarioFiles    = flag.String("scenario", "", "comma-separated scenario JSON files (default: scenarios/*.json)")
	traceDir         = flag.String("trace", "", "directory to write per-scenario traces to")
	replayFile       = flag.String("replay", "", "print the mode changes recorded in the given trace file and exit")
	logLevel         = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir           = flag.String("logdir", "", "log file directory")
	dumpState        = flag.Bool("dump", false, "dump the final aircraft state of each scenario")
	lint             = flag.Bool("lint", false, "check the validity of the scenarios without running them")
	cpuprofile       = flag.String("cpuprofile", "", "write CPU profile to file")
	memprofile       = flag.String("memprofile", "", "write memory profile to this file")
	navLog           = flag.Bool("navlog", false, "enable navigation logging")
	navLogCategories = flag.String("navlog-categories", "all", "navigation log categories (comma-separated: state,climb,switch,loiter)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: rtlsim [flags]\nwhere [flags] may be:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(1)
	}

	lg := log.New(*logLevel, *logDir)
	defer lg.CatchAndReportCrash()

	nav.InitNavLog(*navLog, *navLogCategories)
	if *navLog && !navLogAvailable() {
		fmt.Fprintf(os.Stderr, "warning: -navlog has no effect unless built with -tags navlog\n")
	}

	if *cpuprofile != "" || *memprofile != "" {
		prof, err := util.CreateProfiler(*cpuprofile, *memprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		defer func() {
			if err := prof.Cleanup(); err != nil {
				lg.Errorf("%v", err)
			}
		}()
	}

	if *replayFile != "" {
		if err := replay(*replayFile); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", *replayFile, err)
			os.Exit(1)
		}
		return
	}

	files, err := scenarioPaths(*scenarioFiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	scenarios, err := loadScenarios(files, lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *lint {
		fmt.Printf("%d scenarios ok\n", len(scenarios))
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := runAll(ctx, scenarios, lg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func navLogAvailable() bool {
	return slices.ContainsFunc([]string{nav.NavLogState, nav.NavLogClimb, nav.NavLogSwitch, nav.NavLogLoiter},
		nav.NavLogEnabled)
}

func scenarioPaths(list string) ([]string, error) {
	if list != "" {
		return strings.Split(list, ","), nil
	}
	files, err := filepath.Glob(filepath.Join("scenarios", "*.json"))
	if err != nil {
		return nil, err
	} else if len(files) == 0 {
		return nil, fmt.Errorf("no scenarios found; use -scenario")
	}
	return files, nil
}

func loadScenarios(files []string, lg *log.Logger) ([]*sim.Scenario, error) {
	var scenarios []*sim.Scenario
	for _, fn := range files {
		f, err := os.Open(fn)
		if err != nil {
			return nil, err
		}

		var e util.ErrorLogger
		e.Push(fn)
		sc, err := sim.LoadScenario(f, &e)
		f.Close()
		e.Report(lg)
		for _, w := range e.Warnings() {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		if err != nil {
			if e.HaveErrors() {
				return nil, fmt.Errorf("%w:\n%s", err, e.String())
			}
			return nil, fmt.Errorf("%s: %w", fn, err)
		}

		if slices.ContainsFunc(scenarios, func(s *sim.Scenario) bool { return s.Name == sc.Name }) {
			return nil, fmt.Errorf("%s: duplicate scenario name %q", fn, sc.Name)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func runAll(ctx context.Context, scenarios []*sim.Scenario, lg *log.Logger) error {
	es := sim.NewEventStream(lg)
	defer es.Destroy()
	sub := es.Subscribe()
	defer sub.Unsubscribe()

	if *traceDir != "" {
		if err := os.MkdirAll(*traceDir, 0o755); err != nil {
			return err
		}
	}

	results := make([]*sim.Result, len(scenarios))
	var traced sync.Map // scenario name -> trace path

	eg, ctx := errgroup.WithContext(ctx)
	for i, sc := range scenarios {
		eg.Go(func() error {
			opts := sim.RunOptions{Events: es}

			if *traceDir != "" {
				fn := filepath.Join(*traceDir, sc.Name+sim.TraceSuffix)
				f, err := os.Create(fn)
				if err != nil {
					return err
				}
				defer f.Close()

				tw, err := sim.NewTraceWriter(f, sc.TraceHeader())
				if err != nil {
					return err
				}
				opts.Trace = tw
				defer func() {
					if err := tw.Close(); err != nil {
						lg.Errorf("%s: %v", fn, err)
					}
				}()
				traced.Store(sc.Name, fn)
			}

			r, err := sc.Run(ctx, opts, lg)
			if err != nil {
				return fmt.Errorf("%s: %w", sc.Name, err)
			}
			results[i] = r
			return nil
		})
	}
	err := eg.Wait()

	for _, ev := range sub.Get() {
		fmt.Println(ev.String())
	}
	if err != nil {
		return err
	}

	fmt.Println()
	for _, r := range results {
		printResult(r)
		if fn, ok := traced.Load(r.Name); ok {
			fmt.Printf("  trace: %s\n", fn)
		}
		if *dumpState {
			godump.Dump(r.Final)
		}
	}
	return nil
}

func printResult(r *sim.Result) {
	status := util.Select(r.Landed, "landed", "airborne")
	fmt.Printf("%s: %s after %.1fs in %s at %s\n", r.Name, status, float32(r.Elapsed)/1000,
		r.FinalMode, r.Final.Location)
	for _, mc := range r.Changes {
		fmt.Printf("  t=%6.1fs %-6s -> %-6s %s\n", float32(mc.Time)/1000, mc.From, mc.To, mc.Reason)
	}
	if r.LandingLookups > 0 {
		fmt.Printf("  landing sequence lookups: %d\n", r.LandingLookups)
	}
}

func replay(fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()

	tr, err := sim.ReadTrace(f)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d records at %d ms, home %s\n", tr.Header.Scenario, len(tr.Records),
		tr.Header.TickMs, tr.Header.Home)
	for _, r := range tr.ModeChanges() {
		fmt.Printf("  t=%6.1fs %-6s at %s hdg %03.0f\n", float32(r.Time)/1000, r.Mode, r.Location, r.Heading)
		if r.RTL != nil {
			fmt.Printf("    target %s climb complete %v\n", r.RTL.Target, r.RTL.ClimbCompleted)
		}
	}
	return nil
}
