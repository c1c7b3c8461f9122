package main

import (
	"fmt"
	"io"
	"runtime"
	"slices"
	"text/template"
	"time"

	"github.com/plus3/scripthost/script"
)

type Report struct {
	Duration       time.Duration
	Instances      int
	Coroutines     int
	Interval       time.Duration
	Churn          float64
	ManualStep     time.Duration
	GCPauseMetrics bool

	TotalTime     time.Duration
	TickTime      Stats
	Toggles       int64
	Produced      int64
	Controller    script.ControllerStats
	MemStatsStart runtime.MemStats
	MemStatsEnd   runtime.MemStats
}

type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	P99     time.Duration
	Samples []time.Duration
}

func (s *Stats) Finalize() {
	if len(s.Samples) == 0 {
		return
	}

	sorted := slices.Clone(s.Samples)
	slices.Sort(sorted)

	var total time.Duration
	for _, sample := range sorted {
		total += sample
	}
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Avg = total / time.Duration(len(sorted))
	s.P99 = sorted[(len(sorted)-1)*99/100]
}

// ProducedPerSecond is the coroutine value throughput over the whole run.
func (r *Report) ProducedPerSecond() float64 {
	if r.TotalTime <= 0 {
		return 0
	}
	return float64(r.Produced) / r.TotalTime.Seconds()
}

func (r *Report) Generate(w io.Writer) error {
	const reportTemplate = `
# Script Stress Test Report

## Test Configuration
- **Run Duration:** {{.Duration}}
- **Instances:** {{.Instances}}
- **Coroutines per Instance:** {{.Coroutines}}
- **Throttle Interval:** {{.Interval}}
- **Churn:** {{.Churn}} ({{.Toggles}} toggles)
- **Clock:** {{if .ManualStep}}manual, {{.ManualStep}} per tick{{else}}system{{end}}

## Performance Results
- **Total Ticks:** {{len .TickTime.Samples}}
- **Total Test Time:** {{.TotalTime}}
- **Tick Time:**
  - **Avg:** {{.TickTime.Avg}}
  - **Min:** {{.TickTime.Min}}
  - **P99:** {{.TickTime.P99}}
  - **Max:** {{.TickTime.Max}}

## Scheduler
| Counter | Value |
|---|---|
| Active at end | {{.Controller.Scheduler.Active}} |
| Started | {{.Controller.Scheduler.Started}} |
| Completed | {{.Controller.Scheduler.Completed}} |
| Failed | {{.Controller.Scheduler.Failed}} |
| Cancelled | {{.Controller.Scheduler.Cancelled}} |
| Resumes | {{.Controller.Scheduler.Resumes}} |
| Values produced | {{.Produced}} ({{printf "%.0f" .ProducedPerSecond}}/s) |
| Max pass time | {{.Controller.Scheduler.MaxDuration}} |

## Memory Usage
- Heap Alloc:     {{mb .MemStatsStart.HeapAlloc}} MB (start) -> {{mb .MemStatsEnd.HeapAlloc}} MB (end) -> delta: {{bsub .MemStatsEnd.HeapAlloc .MemStatsStart.HeapAlloc}} bytes
- Total Alloc:    {{mb .MemStatsStart.TotalAlloc}} MB (start) -> {{mb .MemStatsEnd.TotalAlloc}} MB (end)
- Sys Memory:     {{mb .MemStatsStart.Sys}} MB (start) -> {{mb .MemStatsEnd.Sys}} MB (end)
- Num GC:         {{.MemStatsStart.NumGC}} (start) -> {{.MemStatsEnd.NumGC}} (end) -> delta: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}
{{if .GCPauseMetrics}}
## GC Pause Durations
- **Total GC Pause:** {{.MemStatsEnd.PauseTotalNs | ns}}
- **Num GC Cycles:** {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}
{{end}}`

	fm := template.FuncMap{
		"mb": func(v uint64) string {
			return fmt.Sprintf("%.2f", float64(v)/1024/1024)
		},
		"bsub": func(a, b uint64) int64 {
			return int64(a) - int64(b)
		},
		"usub": func(a, b uint32) uint32 {
			return a - b
		},
		"ns": func(ns uint64) string {
			return time.Duration(ns).String()
		},
	}

	tmpl, err := template.New("report").Funcs(fm).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, r)
}
