// Command script-stress runs many behaviours with throttled coroutines and
// prints a markdown report of tick times and scheduler counters.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"runtime"
	"time"

	"github.com/plus3/scripthost/script"
)

// worker runs a fixed number of endless counting coroutines while enabled.
type worker struct {
	coroutines int
	interval   time.Duration
	produced   *int64
}

func (w *worker) OnEnable(ctx *script.Context) error {
	for range w.coroutines {
		n := 0
		seq := script.SequenceFunc(func(time.Time) script.Step {
			n++
			return script.Yield(n)
		})
		_, err := ctx.StartCoroutine(seq, script.Every(w.interval), script.Continuation{
			Produced: func(script.Handle, any) { *w.produced++ },
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *worker) Update(*script.Context) error { return nil }

func main() {
	duration := flag.Duration("duration", 10*time.Second, "The total duration the test should run for.")
	instanceCount := flag.Int("instances", 1000, "The number of behaviour instances to spawn.")
	coroutineCount := flag.Int("coroutines", 4, "Coroutines started by each instance on enable.")
	interval := flag.Duration("interval", 50*time.Millisecond, "Throttle interval of every coroutine.")
	churn := flag.Float64("churn", 0.01, "Fraction of instances toggled between ticks.")
	step := flag.Duration("step", 0, "Advance a manual clock by this much per tick instead of using the system clock.")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	flag.Parse()

	log.Println("Starting script stress test...")

	var clock script.Clock = script.SystemClock{}
	var manual *script.ManualClock
	if *step > 0 {
		manual = script.NewManualClock(time.Now())
		clock = manual
	}
	controller := script.NewController(
		script.WithClock(clock),
		script.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))),
	)

	log.Printf("Spawning %d instances with %d coroutines each...\n", *instanceCount, *coroutineCount)
	var produced int64
	instances := make([]*script.Instance, 0, *instanceCount)
	for i := range *instanceCount {
		b := &worker{coroutines: *coroutineCount, interval: *interval, produced: &produced}
		inst, err := controller.Spawn(script.NewObjectID(0, uint32(i+1)), "worker", b)
		if err != nil {
			log.Fatalf("Failed to spawn instance %d: %v", i, err)
		}
		instances = append(instances, inst)
	}
	log.Println("Spawning complete.")

	report := &Report{
		Duration:       *duration,
		Instances:      *instanceCount,
		Coroutines:     *coroutineCount,
		Interval:       *interval,
		Churn:          *churn,
		ManualStep:     *step,
		GCPauseMetrics: *gcPauseMetrics,
	}

	runtime.ReadMemStats(&report.MemStatsStart)

	log.Printf("Running simulation for %s...\n", *duration)
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	toggles := int(float64(*instanceCount) * *churn)
	startTime := time.Now()

Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		default:
			for range toggles {
				if err := controller.Toggle(instances[rand.IntN(len(instances))]); err != nil {
					log.Fatalf("Toggle failed: %v", err)
				}
				report.Toggles++
			}

			tickStart := time.Now()
			if manual != nil {
				controller.Tick(manual.Advance(*step))
			} else {
				controller.Once()
			}
			report.TickTime.Samples = append(report.TickTime.Samples, time.Since(tickStart))
		}
	}

	report.TotalTime = time.Since(startTime)
	report.TickTime.Finalize()
	report.Controller = controller.Stats()
	report.Produced = produced
	runtime.ReadMemStats(&report.MemStatsEnd)

	log.Println("Simulation finished.")
	controller.DestroyAll()

	fmt.Println("\n\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		log.Fatalf("Failed to generate report: %v", err)
	}
	fmt.Println("--- End of Report ---")

	log.Println("Stress test complete.")
}
