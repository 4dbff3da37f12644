package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/markusressel/fan2pwm/internal/api"
	"github.com/markusressel/fan2pwm/internal/configuration"
	"github.com/markusressel/fan2pwm/internal/controller"
	"github.com/markusressel/fan2pwm/internal/events"
	"github.com/markusressel/fan2pwm/internal/hwmon"
	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/persistence"
	"github.com/markusressel/fan2pwm/internal/pwm"
	"github.com/markusressel/fan2pwm/internal/sensors"
	"github.com/markusressel/fan2pwm/internal/settings"
	"github.com/markusressel/fan2pwm/internal/setup"
	"github.com/markusressel/fan2pwm/internal/state"
	"github.com/markusressel/fan2pwm/internal/statistics"
	"github.com/markusressel/fan2pwm/internal/ui"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsEndpoint = "/metrics"

// Daemon holds all long-running components of fan2pwm
type Daemon struct {
	config configuration.Configuration

	store    persistence.Persistence
	state    *state.RuntimeState
	sampler  *sensors.Sampler
	actuator *pwm.Actuator
	sink     *events.AsyncSink
	loop     controller.ControlLoop
	rest     *echo.Echo
	registry *prometheus.Registry

	ready atomic.Bool
}

// RunDaemon starts fan control using CurrentConfig and blocks until a termination signal is received
func RunDaemon() {
	config := configuration.CurrentConfig
	if !config.Pwm.Simulate && getProcessOwner() != "root" {
		ui.Fatal("Fan control requires root permissions to be able to write to %s, please run fan2pwm as root", config.Pwm.SysfsRoot)
	}

	daemon, err := NewDaemon(config, NewWriter(config.Pwm), time.Now)
	if err != nil {
		ui.Fatal("Unable to initialize: %v", err)
	}

	if err := daemon.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ui.Info("Done.")
}

// NewWriter returns the pwm channel described by the given configuration
func NewWriter(config configuration.PwmConfig) pwm.Writer {
	if config.Simulate {
		ui.Warning("Simulating pwm output, no hardware will be touched")
		return pwm.NewMemoryWriter()
	}
	return pwm.NewSysfsWriter(config.SysfsRoot, config.Chip, config.Channel)
}

// NewDaemon opens and seeds the database and wires all components together.
// Nothing is started until Run is called.
func NewDaemon(config configuration.Configuration, writer pwm.Writer, clock func() time.Time) (*Daemon, error) {
	d := &Daemon{
		config:   config,
		store:    persistence.NewPersistence(config.DbPath, clock),
		state:    state.NewRuntimeState(clock),
		sampler:  sensors.NewSampler(),
		actuator: pwm.NewActuator(writer, clock),
		registry: prometheus.NewRegistry(),
	}

	if err := d.store.Init(); err != nil {
		return nil, fmt.Errorf("unable to open database %s: %w", config.DbPath, err)
	}
	if err := d.seed(); err != nil {
		_ = d.store.Close()
		return nil, err
	}

	d.sink = events.NewAsyncSink(d.store, config.Events.BufferSize, config.Events.Retention)
	sink := events.MultiSink{events.LogSink{}, d.sink}
	d.loop = controller.NewControlLoop(d.store, d.state, d.sampler, d.actuator, sink, config.Pwm.FrequencyHz, clock)

	err := statistics.Register(d.registry,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		statistics.NewStateCollector(d.state),
		statistics.NewSensorCollector(d.sampler),
		statistics.NewControllerCollector(d.loop, d.sink),
	)
	if err != nil {
		_ = d.store.Close()
		return nil, err
	}

	probe := setup.NewProbe(config.Pwm.SysfsRoot, config.Pwm.Chip)
	probe.ThermalZonePath = config.Seed.ThermalZonePath

	d.rest, err = api.CreateRestService(api.Dependencies{
		Store:                  d.store,
		State:                  d.state,
		Sampler:                d.sampler,
		Probe:                  probe,
		ThermalRoot:            hwmon.ThermalRootOf(config.Seed.ThermalZonePath),
		DefaultThermalZonePath: config.Seed.ThermalZonePath,
		AllowedOrigins:         config.Api.AllowedOrigins,
		Registerer:             d.registry,
		Ready:                  d.ready.Load,
	})
	if err != nil {
		_ = d.store.Close()
		return nil, err
	}

	return d, nil
}

func (d *Daemon) seed() error {
	if err := d.store.SeedSettings(settings.DefaultValues(d.config.Pwm.FrequencyHz)); err != nil {
		return fmt.Errorf("unable to store default settings: %w", err)
	}
	if !d.config.Seed.Enabled {
		return nil
	}
	created, err := d.store.Seed(d.config.Seed.ThermalZonePath)
	if err != nil {
		return fmt.Errorf("unable to seed default sensor: %w", err)
	}
	for _, sensor := range created {
		ui.Info("Seeded sensor '%s' with a default curve", sensor.Name)
	}
	return nil
}

// Handler returns the REST api handler
func (d *Daemon) Handler() http.Handler {
	return d.rest
}

// MetricsHandler returns the prometheus endpoint handler
func (d *Daemon) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsEndpoint, promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{Registry: d.registry}))
	return mux
}

// Run starts all components and blocks until ctx is cancelled, a termination signal
// is received or one of the components fails. The database is closed afterwards.
func (d *Daemon) Run(parent context.Context) error {
	defer func() {
		if err := d.store.Close(); err != nil {
			ui.Warning("Error closing database: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// the event writer outlives the control loop, so its final events are flushed
	sinkCtx, sinkCancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})

	var g run.Group
	{
		// === event log
		g.Add(func() error {
			return d.sink.Run(sinkCtx)
		}, func(err error) {
			go func() {
				select {
				case <-loopDone:
				case <-time.After(d.config.ShutdownTimeout):
				}
				sinkCancel()
			}()
		})
	}
	{
		// === control loop
		g.Add(func() error {
			defer close(loopDone)
			err := d.loop.Run(ctx)
			ui.Info("Control loop stopped.")
			return err
		}, func(err error) {
			cancel()
		})
	}
	if d.config.Api.Enabled {
		// === REST api
		addr := fmt.Sprintf("%s:%d", d.config.Api.Host, d.config.Api.Port)
		d.addServer(&g, "api", &http.Server{Addr: addr, Handler: d.rest})
	}
	if d.config.Statistics.Enabled {
		// === Prometheus Exporter
		addr := fmt.Sprintf("%s:%d", d.config.Statistics.Host, d.config.Statistics.Port)
		d.addServer(&g, "statistics", &http.Server{Addr: addr, Handler: d.MetricsHandler()})
	}
	{
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

		g.Add(func() error {
			select {
			case s := <-sig:
				ui.Info("Received %s signal, exiting...", s)
			case <-ctx.Done():
			}
			return nil
		}, func(err error) {
			signal.Stop(sig)
			cancel()
		})
	}

	d.ready.Store(true)
	d.sink.Emit(model.EventLevelInfo, "daemon_started", "")
	err := g.Run()
	d.ready.Store(false)
	return err
}

func (d *Daemon) addServer(g *run.Group, name string, server *http.Server) {
	g.Add(func() error {
		ui.Info("Starting %s server on %s", name, server.Addr)
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		if err != nil {
			ui.Error("Cannot start %s server (%v)", name, err)
		}
		return err
	}, func(err error) {
		ui.Info("Stopping %s server...", name)
		timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), d.config.ShutdownTimeout)
		defer timeoutCancel()
		if err := server.Shutdown(timeoutCtx); err != nil {
			ui.Warning("Error stopping %s server: %v", name, err)
		}
	})
}

func getProcessOwner() string {
	stdout, err := exec.Command("ps", "-o", "user=", "-p", strconv.Itoa(os.Getpid())).Output()
	if err != nil {
		ui.Fatal("Error checking process owner: %v", err)
	}
	return strings.TrimSpace(string(stdout))
}
