package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/geto-app/geto/internal/adb"
	"github.com/geto-app/geto/internal/config"
	configstore "github.com/geto-app/geto/internal/config/store"
	"github.com/geto-app/geto/internal/eventbus"
	"github.com/geto-app/geto/internal/observability"
	daemonruntime "github.com/geto-app/geto/internal/runtime"
	"github.com/geto-app/geto/internal/server"
	"github.com/geto-app/geto/internal/usecase"
)

// Options groups dependencies required to construct a Daemon.
type Options struct {
	Store          *configstore.Store
	ADB            *adb.Client
	Listen         string
	AllowedOrigins []string
	Clock          clockwork.Clock
}

// Daemon represents the main daemon process.
type Daemon struct {
	store         *configstore.Store
	adb           *adb.Client
	apiServer     *server.APIServer
	serviceHost   *daemonruntime.ServiceHost
	lifecycle     *daemonruntime.Lifecycle
	instancePaths config.InstancePaths
	eventBus      *eventbus.Bus
	sweep         *usecase.CleanupSweep

	ctx    context.Context
	cancel context.CancelFunc

	errMu  sync.Mutex
	runErr error

	configMu     sync.Mutex
	configCancel func()
	scheduler    *CleanupScheduler
}

const (
	// storeQueryTimeout bounds store lookups made while reacting to changes.
	storeQueryTimeout = 5 * time.Second

	// serviceOpTimeout bounds service restarts and graceful shutdown.
	serviceOpTimeout = 5 * time.Second

	// configWatchInterval is the settings polling period.
	configWatchInterval = 2 * time.Second

	serviceAPI     = "api"
	serviceCleanup = "cleanup"
	serviceResults = "results"
)

// New wires the store, adb client, use cases and HTTP API into a daemon.
func New(opts Options) (*Daemon, error) {
	if opts.Store == nil {
		return nil, errors.New("daemon: configuration store is required")
	}
	if opts.ADB == nil {
		opts.ADB = adb.New(adb.Options{})
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	paths := config.GetInstancePaths(opts.Store.InstanceName())
	bus := eventbus.New()

	registry := observability.NewRegistry(bus)
	metrics := observability.NewMetrics(registry)
	bus.AddObserver(observability.NewEventCounter(registry))

	deps := usecase.Deps{
		Entries:     opts.Store,
		Preferences: opts.Store,
		Writer:      opts.ADB,
		Packages:    opts.ADB,
		Bus:         bus,
		Recorder:    metrics,
		Clock:       clock,
	}
	sweep := usecase.NewCleanupSweep(opts.Store, opts.ADB, bus, metrics)

	apiServer := server.NewAPIServer(server.Deps{
		Apply:       usecase.NewApplySettings(deps),
		Revert:      usecase.NewRevertSettings(deps),
		AutoLaunch:  usecase.NewAutoLaunch(deps),
		Entries:     usecase.NewEntryService(opts.Store, opts.ADB, opts.ADB, bus),
		Preferences: opts.Store,
		Cleanup:     sweep,
		Devices:     opts.ADB,
		Packages:    opts.ADB,
		Permissions: opts.ADB,
		Launcher:    opts.ADB,
		Bus:         bus,
		Clock:       clock,
	}, server.Options{
		Listen:         opts.Listen,
		InstanceName:   opts.Store.InstanceName(),
		AllowedOrigins: opts.AllowedOrigins,
		MetricsHandler: observability.Handler(registry),
		HTTPMetrics:    observability.NewHTTPMetrics(registry),
	})

	d := &Daemon{
		store:         opts.Store,
		adb:           opts.ADB,
		apiServer:     apiServer,
		serviceHost:   daemonruntime.NewServiceHost(),
		lifecycle:     daemonruntime.NewLifecycle(),
		instancePaths: paths,
		eventBus:      bus,
		sweep:         sweep,
	}

	if err := d.serviceHost.Register(serviceResults, func(context.Context) (daemonruntime.Service, error) {
		return newResultLogger(bus), nil
	}); err != nil {
		return nil, err
	}
	if err := d.serviceHost.Register(serviceCleanup, func(context.Context) (daemonruntime.Service, error) {
		sched := NewCleanupScheduler(sweep, opts.Store)
		d.configMu.Lock()
		d.scheduler = sched
		d.configMu.Unlock()
		return sched, nil
	}); err != nil {
		return nil, err
	}
	if err := d.serviceHost.Register(serviceAPI, func(context.Context) (daemonruntime.Service, error) {
		return apiServer, nil
	}); err != nil {
		return nil, err
	}

	return d, nil
}

// Start runs the daemon until Shutdown is called or a service fails.
func (d *Daemon) Start() error {
	if err := daemonruntime.WritePIDFile(d.instancePaths.PIDFile, os.Getpid()); err != nil {
		return fmt.Errorf("daemon: write pid file: %w", err)
	}
	defer daemonruntime.RemovePIDFile(d.instancePaths.PIDFile)

	d.ctx, d.cancel = context.WithCancel(context.Background())

	if err := d.serviceHost.Start(d.ctx); err != nil {
		d.cancel()
		return fmt.Errorf("daemon: start services: %w", err)
	}
	d.watchHostErrors()
	d.recordAddress()
	if err := d.startConfigWatcher(); err != nil {
		log.Printf("[Daemon] config watcher error: %v", err)
	}
	log.Printf("[Daemon] instance %s serving on %s (adb %s)", d.store.InstanceName(), d.apiServer.Addr(), d.adb.Binary())

	<-d.lifecycle.Done()

	d.cancel()

	stopCtx, cancel := context.WithTimeout(context.Background(), serviceOpTimeout)
	if err := d.serviceHost.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[Daemon] service shutdown error: %v", err)
		if d.getRunError() == nil {
			d.setRunError(err)
		}
	}
	cancel()

	d.eventBus.Shutdown()
	if err := d.store.Close(); err != nil {
		log.Printf("[Daemon] store close error: %v", err)
	}

	return d.getRunError()
}

// Shutdown asks a running Start to return.
func (d *Daemon) Shutdown() error {
	d.configMu.Lock()
	cancelConfig := d.configCancel
	d.configCancel = nil
	d.configMu.Unlock()
	if cancelConfig != nil {
		cancelConfig()
	}
	d.lifecycle.Shutdown()
	return nil
}

func (d *Daemon) watchHostErrors() {
	errs := d.serviceHost.Errors()
	go func() {
		select {
		case err := <-errs:
			if err == nil {
				return
			}
			log.Printf("[Daemon] service failure: %v", err)
			d.setRunError(err)
			d.lifecycle.Shutdown()
		case <-d.ctx.Done():
		}
	}()
}

func (d *Daemon) recordAddress() {
	ctx, cancel := context.WithTimeout(d.ctx, storeQueryTimeout)
	defer cancel()
	if err := d.store.SaveDaemonAddress(ctx, d.apiServer.Addr()); err != nil {
		log.Printf("[Daemon] record api address: %v", err)
	}
}

func (d *Daemon) startConfigWatcher() error {
	cancel, err := d.serviceHost.WatchConfig(d.ctx, d.store, configWatchInterval, d.handleConfigEvent)
	if err != nil {
		return err
	}
	d.configMu.Lock()
	d.configCancel = cancel
	d.configMu.Unlock()
	return nil
}

func (d *Daemon) handleConfigEvent(event configstore.ChangeEvent) {
	if !event.SettingsChanged {
		return
	}
	d.rescheduleCleanup()
}

// rescheduleCleanup restarts the cleanup service when the stored schedule
// differs from the running one.
func (d *Daemon) rescheduleCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), storeQueryTimeout)
	defer cancel()

	prefs, err := d.store.Preferences(ctx)
	if err != nil {
		log.Printf("[Daemon] reload preferences: %v", err)
		return
	}

	d.configMu.Lock()
	current := ""
	if d.scheduler != nil {
		current = d.scheduler.Schedule()
	}
	d.configMu.Unlock()

	if prefs.CleanupSchedule == current {
		return
	}
	log.Printf("[Daemon] cleanup schedule changed %q -> %q", current, prefs.CleanupSchedule)
	d.restartService(serviceCleanup)
}

func (d *Daemon) restartService(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), serviceOpTimeout)
	defer cancel()
	if err := d.serviceHost.Restart(ctx, name); err != nil {
		log.Printf("[Daemon] restart %s service: %v", name, err)
	}
}

func (d *Daemon) setRunError(err error) {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	if d.runErr == nil {
		d.runErr = err
	}
}

func (d *Daemon) getRunError() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.runErr
}

// APIServer returns the HTTP server.
func (d *Daemon) APIServer() *server.APIServer {
	return d.apiServer
}

// EventBus returns the daemon's bus.
func (d *Daemon) EventBus() *eventbus.Bus {
	return d.eventBus
}

// CleanupSchedule returns the schedule of the running cleanup service.
func (d *Daemon) CleanupSchedule() string {
	d.configMu.Lock()
	defer d.configMu.Unlock()
	if d.scheduler == nil {
		return ""
	}
	return d.scheduler.Schedule()
}

// IsRunning reports whether a daemon for instanceName holds a live pid file.
func IsRunning(instanceName string) (int, bool) {
	return daemonruntime.RunningPID(config.GetInstancePaths(instanceName).PIDFile)
}
