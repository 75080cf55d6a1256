package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aristath/swarm/internal/config"
	"github.com/aristath/swarm/internal/decompose"
	"github.com/aristath/swarm/internal/events"
	"github.com/aristath/swarm/internal/history"
	"github.com/aristath/swarm/internal/metrics"
	"github.com/aristath/swarm/internal/monitor"
	"github.com/aristath/swarm/internal/orchestrator"
	"github.com/aristath/swarm/internal/scaling"
	"github.com/aristath/swarm/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	disciplineFlag := flag.String("discipline", "", "queue discipline (fifo, priority, work-stealing)")
	strategyFlag := flag.String("strategy", "", "decomposition strategy (by-file, by-feature, by-layer, hybrid, auto)")
	workersFlag := flag.Int("workers", 0, "initial worker pool size")
	flag.Parse()

	goal := strings.Join(flag.Args(), " ")
	if goal == "" {
		return fmt.Errorf("usage: swarm [flags] <goal>")
	}

	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	if *disciplineFlag != "" {
		cfg.Scheduler.Discipline = *disciplineFlag
	}
	if *strategyFlag != "" {
		cfg.Decompose.Strategy = *strategyFlag
	}
	if *workersFlag > 0 {
		cfg.Scheduler.Workers = *workersFlag
	}

	discipline, err := cfg.SchedulerDiscipline()
	if err != nil {
		return err
	}
	strategy, err := cfg.DecomposeStrategy()
	if err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()

	collector := metrics.NewCollector()

	if cfg.Monitor.MetricsAddr != "" {
		go serveMetrics(cfg.Monitor.MetricsAddr, collector)
	}

	// Decompose the goal into a dependency-ordered batch
	tasks := decompose.New(strategy).WithMaxSubtasks(cfg.Decompose.MaxSubtasks).Decompose(goal)
	decompose.OptimizeDependencies(tasks)

	log.Printf("Decomposed goal into %d tasks (critical path: %s)",
		len(tasks), strings.Join(decompose.CriticalPath(tasks), " -> "))

	runner := orchestrator.NewParallelRunner(orchestrator.Config{
		Workers:    cfg.Scheduler.Workers,
		Discipline: discipline,
		Bus:        bus,
		Metrics:    collector,
	})

	// Dynamic scaling rides on top of the runner's scheduler
	var cancelMonitor context.CancelFunc
	if cfg.Scaling.Enabled {
		scalingCfg, err := cfg.ScalingConfig()
		if err != nil {
			return err
		}

		controller, err := scaling.New(scalingCfg, scaling.Deps{
			Resizer: runner.Scheduler().ResizePool,
			Bus:     bus,
			Metrics: collector,
		})
		if err != nil {
			return err
		}
		controller.SetWorkerCount(runner.Scheduler().PoolSize())

		sampler := monitor.NewSampler(runner.Scheduler().Snapshot, nil)
		loop := monitor.NewLoop(sampler, controller,
			time.Duration(cfg.Monitor.IntervalSecs)*time.Second)

		var monitorCtx context.Context
		monitorCtx, cancelMonitor = context.WithCancel(ctx)
		go loop.Run(monitorCtx)
	}

	// Capture applied scaling decisions so they can be persisted with the run.
	scalingSub := bus.Subscribe(events.TopicScaling, 64)

	// Demo executor: simulates work proportional to estimated complexity.
	// Replace with a real executor when wiring swarm into a host system.
	executor := orchestrator.NewResilientExecutor(demoExecutor, orchestrator.DefaultRetryConfig())

	started := time.Now()
	results, err := runner.ExecuteParallel(ctx, tasks, executor.Execute)
	if cancelMonitor != nil {
		cancelMonitor()
	}
	if err != nil {
		return err
	}

	completed, failed := 0, 0
	for _, r := range results {
		if r.Success {
			completed++
		} else {
			failed++
		}
	}

	log.Printf("Run finished in %s: %d completed, %d failed", time.Since(started).Round(time.Millisecond), completed, failed)

	if cfg.History.Enabled {
		if err := persistRun(ctx, cfg, goal, discipline, results, drainScalingEvents(scalingSub), completed, failed); err != nil {
			log.Printf("WARNING: failed to persist run history: %v", err)
		}
	}

	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = "FAILED: " + r.Error
		}
		fmt.Printf("  %-24s %6dms  %s\n", r.TaskID, r.ExecutionTimeMS, status)
	}

	return nil
}

// demoExecutor sleeps proportionally to the task's estimated complexity and
// echoes its description.
func demoExecutor(ctx context.Context, task scheduler.SubTask) (scheduler.SubTaskResult, error) {
	delay := time.Duration(20+rand.Intn(30)) * time.Millisecond
	delay += time.Duration(task.EstimatedComplexity * 100 * float64(time.Millisecond))

	select {
	case <-ctx.Done():
		return scheduler.SubTaskResult{}, ctx.Err()
	case <-time.After(delay):
	}

	return scheduler.SubTaskResult{
		Success: true,
		Output:  "done: " + task.Description,
	}, nil
}

// drainScalingEvents empties the buffered subscription without blocking.
func drainScalingEvents(sub <-chan events.Event) []events.ScalingDecidedEvent {
	var decided []events.ScalingDecidedEvent
	for {
		select {
		case ev := <-sub:
			if d, ok := ev.(events.ScalingDecidedEvent); ok {
				decided = append(decided, d)
			}
		default:
			return decided
		}
	}
}

func persistRun(ctx context.Context, cfg *config.SwarmConfig, goal string, discipline scheduler.Discipline, results []scheduler.SubTaskResult, decisions []events.ScalingDecidedEvent, completed, failed int) error {
	path := cfg.History.Path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, ".swarm", "history.db")
	}

	store, err := history.NewSQLiteStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	runID := uuid.NewString()
	if err := store.CreateRun(ctx, runID, goal, discipline.String()); err != nil {
		return err
	}
	for _, r := range results {
		if err := store.SaveResult(ctx, runID, r); err != nil {
			return err
		}
	}
	for _, d := range decisions {
		ev := history.ScalingEvent{RunID: runID, Action: d.Action, Workers: d.Workers, Timestamp: d.Timestamp}
		if err := store.SaveScalingEvent(ctx, ev); err != nil {
			return err
		}
	}
	return store.FinishRun(ctx, runID, completed, failed)
}

func serveMetrics(addr string, collector *metrics.Collector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))

	log.Printf("Serving metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("ERROR: metrics server: %v", err)
	}
}
