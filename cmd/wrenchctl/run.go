package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrenchsim/wrench/internal/config"
	"github.com/wrenchsim/wrench/internal/dashboard"
	"github.com/wrenchsim/wrench/internal/metrics"
	"github.com/wrenchsim/wrench/internal/otelspan"
	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/tracedb"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/action"
	"github.com/wrenchsim/wrench/pkg/compute"
	"github.com/wrenchsim/wrench/pkg/controller"
	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/jobmanager"
	"github.com/wrenchsim/wrench/pkg/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the bundled 3-task linear-chain example (spec.md scenario S1)",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().Float64("flops", 1e9, "flops each demo task performs")
	runCmd.Flags().Float64("host-flops", 1e9, "flop rate of the single demo host")
	runCmd.Flags().Bool("dashboard", false, "serve a live WebSocket dashboard of execution events (overrides config)")
	runCmd.Flags().Bool("tracedb", false, "record execution events to the configured Postgres trace sink (overrides config)")
	runCmd.Flags().Bool("tracing", false, "export job/action spans to the configured OTLP endpoint (overrides config)")
	runCmd.Flags().String("otlp-endpoint", "", "OTLP HTTP endpoint for span export (overrides config, implies --tracing)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flops, _ := cmd.Flags().GetFloat64("flops")
	hostFlops, _ := cmd.Flags().GetFloat64("host-flops")

	log := wlog.Default().With("component", "wrenchctl")

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	sim := simcore.New(ctx)
	host := sim.AddHost(simcore.NewHost("host0", 4, hostFlops, 1<<34, 1e9, sim.Clock()))

	storageSvc := storage.New(sim, "storage0", host, 1<<40, storage.Properties{
		BufferSize: cfg.Scheduler.BufferSize,
	}, log)

	computeSvc := compute.New(sim, "compute0", []*simcore.Host{host}, storageSvc.Mailbox().Name(), compute.Properties{
		TerminateWheneverAllResourcesAreDown:  cfg.Scheduler.TerminateWheneverAllResourcesAreDown,
		ReReadyActionAfterActionExecutorCrash: cfg.Scheduler.ReReadyActionAfterActionExecutorCrash,
		ThreadStartupOverhead:                 cfg.Scheduler.ThreadStartupOverhead,
	}, log)

	jm := jobmanager.New(sim, host, "jobmanager0", log)
	ctrl := controller.New(sim, jm, "controller0")

	if enable, _ := cmd.Flags().GetBool("dashboard"); enable {
		cfg.Observer.EnableWebSocket = true
	}
	if enable, _ := cmd.Flags().GetBool("tracedb"); enable {
		cfg.Observer.EnableDatabase = true
	}

	var hub *dashboard.Hub
	if cfg.Observer.EnableWebSocket {
		hub = dashboard.NewHub(log)
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/", hub)
		srv := &http.Server{Addr: cfg.Observer.WebSocketAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.ErrorErr(err, "dashboard server exited")
			}
		}()
		defer srv.Close()
		log.Info("dashboard listening on " + cfg.Observer.WebSocketAddr)
	}

	var trace tracedb.Sink
	if cfg.Observer.EnableDatabase {
		db, err := tracedb.Open(ctx, tracedb.Config{
			Host:     cfg.Observer.DatabaseHost,
			Port:     cfg.Observer.DatabasePort,
			Database: cfg.Observer.DatabaseName,
			User:     cfg.Observer.DatabaseUser,
			Password: cfg.Observer.DatabasePass,
		}, log)
		if err != nil {
			return fmt.Errorf("open tracedb: %w", err)
		}
		defer db.Close()
		trace = db
	}

	if enable, _ := cmd.Flags().GetBool("tracing"); enable {
		cfg.Tracing.Enabled = true
	}
	if endpoint, _ := cmd.Flags().GetString("otlp-endpoint"); endpoint != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = endpoint
	}

	tracer, err := otelspan.NewProvider(ctx, otelspan.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("start tracing provider: %w", err)
	}
	defer tracer.Shutdown(ctx)

	wf := datamodel.NewWorkflow()
	taskIDs := []string{"t1", "t2", "t3"}
	var prev string
	for _, id := range taskIDs {
		task, err := datamodel.NewWorkflowTask(id, flops, 1, 1, 1<<20, datamodel.Amdahl(0))
		if err != nil {
			return err
		}
		if err := wf.AddTask(task); err != nil {
			return err
		}
		if prev != "" {
			if err := wf.AddControlDependency(prev, id); err != nil {
				return err
			}
		}
		prev = id
	}

	for _, id := range taskIDs {
		task, _ := wf.GetTask(id)
		spec := action.StandardJobSpec{Task: task}
		jobCtx, span := tracer.StartJob(ctx, id+"-job")
		if _, err := jm.CreateStandardJob(id+"-job", wf, spec, computeSvc.Mailbox().Name(), nil, ctrl.Mailbox().Name()); err != nil {
			otelspan.RecordError(jobCtx, err)
			span.End()
			return fmt.Errorf("create standard job %q: %w", id, err)
		}
		span.End()
	}

	for !wf.IsDone() {
		evt, err := ctrl.WaitForNextEvent(ctx, 5*time.Second)
		if err != nil {
			return fmt.Errorf("wait for event: %w", err)
		}
		switch evt.Kind {
		case controller.EventNone, controller.Timer:
			continue
		}

		if hub != nil {
			hub.Publish(evt)
		}
		if trace != nil {
			if err := trace.Record(ctx, evt); err != nil {
				log.ErrorErr(err, "record execution event to tracedb")
			}
		}

		switch evt.Kind {
		case controller.StandardJobCompleted:
			fmt.Printf("[t=%s] job %s completed\n", sim.Clock().Now().Sub(time.Unix(0, 0).UTC()), evt.JobID)
		case controller.StandardJobFailed:
			otelspan.RecordError(ctx, evt.Cause)
			fmt.Printf("[t=%s] job %s failed: %v\n", sim.Clock().Now().Sub(time.Unix(0, 0).UTC()), evt.JobID, evt.Cause)
		default:
			fmt.Printf("[t=%s] event %v\n", sim.Clock().Now().Sub(time.Unix(0, 0).UTC()), evt.Kind)
		}
	}

	fmt.Println("workflow done")
	return nil
}
