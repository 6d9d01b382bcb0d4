// Package main - agentia-journal
// Decodes the compressed tick journal of one or more runs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/MRamiBalles/agentia/internal/events"
	"github.com/MRamiBalles/agentia/internal/infra/journal"
)

func main() {
	dir := flag.String("dir", "journal", "Journal directory")
	run := flag.String("run", "", "Only decode this run id")
	agentName := flag.String("agent", "", "Only show this agent's actions")
	from := flag.Int64("from", 0, "First tick to show")
	to := flag.Int64("to", -1, "Last tick to show (-1 shows all)")
	asJSON := flag.Bool("json", false, "Print raw JSON tick records")
	list := flag.Bool("list", false, "List segments and exit")
	flag.Parse()

	if *list {
		paths, err := journal.Segments(*dir, *run)
		if err != nil {
			fail(err)
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return
	}

	ticks := 0
	err := journal.ReadDir(*dir, *run, func(rec events.TickRecord) error {
		if rec.Tick < *from {
			return nil
		}
		if *to >= 0 && rec.Tick > *to {
			return journal.ErrStop
		}
		ticks++
		if *asJSON {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		printTick(rec, *agentName)
		return nil
	})
	if err != nil {
		fail(err)
	}
	if !*asJSON {
		fmt.Printf("%d ticks decoded\n", ticks)
	}
}

func printTick(rec events.TickRecord, agentName string) {
	fmt.Printf("== tick %d  %s  (%s, run %s)\n", rec.Tick, rec.Label, rec.Duration, rec.RunID)
	for _, a := range rec.Actions {
		if agentName != "" && a.Agent != agentName {
			continue
		}
		switch {
		case a.Busy:
			fmt.Printf("   %-12s busy    %s\n", a.Agent, a.Message)
		case a.Decision != nil:
			status := "ok"
			if !a.Success {
				status = "failed"
			}
			if a.Locked {
				status = "locked"
			}
			fmt.Printf("   %-12s %-7s %s -> %s\n", a.Agent, status, a.Decision, a.Message)
		default:
			fmt.Printf("   %-12s %s\n", a.Agent, a.Message)
		}
	}

	names := make([]string, 0, len(rec.Positions))
	for name := range rec.Positions {
		if agentName == "" || name == agentName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	where := make([]string, 0, len(names))
	for _, name := range names {
		where = append(where, name+"@"+rec.Positions[name])
	}
	if len(where) > 0 {
		fmt.Printf("   positions: %s\n", strings.Join(where, " "))
	}
	fmt.Printf("   objects: %d\n", len(rec.Objects))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "agentia-journal: %v\n", err)
	os.Exit(1)
}
