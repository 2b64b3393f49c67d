package app

import (
	"context"
	"net/http"

	"github.com/spf13/afero"

	"github.com/oneconcern/pacbox/pkg/box"
	"github.com/oneconcern/pacbox/pkg/events"
	"github.com/oneconcern/pacbox/pkg/export"
	"github.com/oneconcern/pacbox/pkg/httpd"
	"github.com/oneconcern/pacbox/pkg/metrics"
	"github.com/oneconcern/pacbox/pkg/service"
	"github.com/oneconcern/pacbox/pkg/store/bdgr"
	"github.com/oneconcern/pacbox/pkg/watcher"
)

// Keys of the components registered by the pacbox modules
const (
	KeyEnv Key = iota
	KeyBus
	KeyBox
	KeyPackages
	KeyLogEntries
	KeyDeployments
	KeyExporter
	KeyScheduler
	KeyWatcher
	KeyMetricsServer
)

// Option for the pacbox application
type Option func(*pacboxOptions)

type pacboxOptions struct {
	offline bool
	fs      afero.Fs
}

// Offline builds an application for one-shot commands: no scheduler, no watcher and no metrics server.
func Offline() Option {
	return func(o *pacboxOptions) {
		o.offline = true
	}
}

// Filesystem used by the box, the exporter and deployments
func Filesystem(fs afero.Fs) Option {
	return func(o *pacboxOptions) {
		if fs != nil {
			o.fs = fs
		}
	}
}

// NewPacbox assembles the modules of the daemon. The application still needs to be initialized and started.
func NewPacbox(app Application, opts ...Option) error {
	o := &pacboxOptions{fs: afero.NewOsFs()}
	for _, apply := range opts {
		apply(o)
	}

	if !o.offline {
		if err := app.Add(metricsModule()); err != nil {
			return err
		}
	}
	if err := app.Add(
		storeModule(),
		busModule(),
		boxModule(o.fs),
		servicesModule(o.fs),
		exportModule(o.fs, !o.offline),
		dispatchModule(),
	); err != nil {
		return err
	}
	if !o.offline {
		return app.Add(watcherModule())
	}
	return nil
}

// Env of the application
func Env(app Application) *bdgr.Env { return app.Get(KeyEnv).(*bdgr.Env) }

// Bus of the application
func Bus(app Application) *events.Bus { return app.Get(KeyBus).(*events.Bus) }

// Box of the application
func Box(app Application) *box.Box { return app.Get(KeyBox).(*box.Box) }

// Packages service of the application
func Packages(app Application) *service.Packages { return app.Get(KeyPackages).(*service.Packages) }

// LogEntries service of the application
func LogEntries(app Application) *service.LogEntries {
	return app.Get(KeyLogEntries).(*service.LogEntries)
}

// Deployments service of the application
func Deployments(app Application) *service.Deployments {
	return app.Get(KeyDeployments).(*service.Deployments)
}

// Exporter of the application
func Exporter(app Application) *export.Exporter { return app.Get(KeyExporter).(*export.Exporter) }

func metricsEnabled(app Application) bool {
	return app.Config().Metrics.Listen != ""
}

// metricsModule serves prometheus metrics. It comes first, so that all components register to the same registry.
func metricsModule() Module {
	return MakeModule("metrics",
		Init(func(app Application) error {
			if !metricsEnabled(app) {
				return nil
			}
			cfg := app.Config()
			metrics.Init(metrics.WithRuntimeMetrics(cfg.Metrics.Runtime))

			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			return app.Set(KeyMetricsServer, httpd.New(cfg.Metrics.Listen,
				httpd.HandlesRequestsWith(mux),
				httpd.Logger(app.Logger().Named("metrics")),
			))
		}),
		Start(func(app Application) error {
			if srv, ok := app.GetOK(KeyMetricsServer); ok {
				return srv.(*httpd.Server).Start()
			}
			return nil
		}),
		Stop(func(app Application) error {
			if srv, ok := app.GetOK(KeyMetricsServer); ok {
				return srv.(*httpd.Server).Shutdown(context.Background())
			}
			return nil
		}),
	)
}

func storeModule() Module {
	return MakeModule("store",
		Init(func(app Application) error {
			env, err := bdgr.Open(app.Config().Store.Dir,
				bdgr.Logger(app.Logger().Named("store")),
				bdgr.WithMetrics(metricsEnabled(app)),
			)
			if err != nil {
				return err
			}
			return app.Set(KeyEnv, env)
		}),
		Stop(func(app Application) error {
			if env, ok := app.GetOK(KeyEnv); ok {
				return env.(*bdgr.Env).Close()
			}
			return nil
		}),
	)
}

func busModule() Module {
	return MakeModule("bus",
		Init(func(app Application) error {
			return app.Set(KeyBus, events.New(
				events.Logger(app.Logger().Named("events")),
				events.WithMetrics(metricsEnabled(app)),
			))
		}),
	)
}

func boxModule(fs afero.Fs) Module {
	return MakeModule("box",
		Init(func(app Application) error {
			cfg := app.Config()
			sections, err := cfg.SectionList()
			if err != nil {
				return err
			}

			ctx := app.Context()
			env := Env(app)
			repo := box.NewSectionRepository(env)
			if err = box.SeedSections(ctx, env, repo, sections...); err != nil {
				return err
			}

			b, err := box.New(ctx, env, repo,
				box.Logger(app.Logger().Named("box")),
				box.Filesystem(fs),
				box.Dir(cfg.Box.Dir),
			)
			if err != nil {
				return err
			}
			return app.Set(KeyBox, b)
		}),
	)
}

func servicesModule(fs afero.Fs) Module {
	var unsubscribe func()

	return MakeModule("services",
		Init(func(app Application) error {
			l := app.Logger().Named("service")
			packages := service.NewPackages(Box(app), service.Logger(l), service.WithPublisher(Bus(app)))
			_ = app.Set(KeyPackages, packages)
			_ = app.Set(KeyLogEntries, service.NewLogEntries(Env(app), service.Logger(l)))
			return app.Set(KeyDeployments, service.NewDeployments(packages, app.Config().PoolPath, fs, service.Logger(l)))
		}),
		Start(func(app Application) error {
			unsubscribe = LogEntries(app).Subscribe(Bus(app))
			return nil
		}),
		Stop(func(Application) error {
			if unsubscribe != nil {
				unsubscribe()
			}
			return nil
		}),
	)
}

func exportModule(fs afero.Fs, scheduled bool) Module {
	var unsubscribe func()

	return MakeModule("export",
		Init(func(app Application) error {
			cfg := app.Config()
			l := app.Logger().Named("export")
			exporter := export.New(Box(app),
				export.Logger(l),
				export.Filesystem(fs),
				export.WithCompression(cfg.CompressionFilter()),
				export.WithErrorPolicy(cfg.ErrorPolicy()),
				export.WithMetrics(metricsEnabled(app)),
			)
			_ = app.Set(KeyExporter, exporter)
			if scheduled {
				_ = app.Set(KeyScheduler, export.NewScheduler(exporter, cfg.Export.Interval, l))
			}
			return nil
		}),
		Start(func(app Application) error {
			exporter := Exporter(app)
			var trigger export.Trigger
			s, hasScheduler := app.GetOK(KeyScheduler)
			if hasScheduler && app.Config().Export.OnChange {
				trigger = s.(*export.Scheduler)
			}
			unsubscribe = Bus(app).Subscribe(export.NewTracker(exporter.Dirty(), trigger, app.Logger().Named("export")))

			if !hasScheduler {
				return nil
			}
			scheduler := s.(*export.Scheduler)
			// the tree on disk may be stale: rebuild it all on startup
			exporter.AddDirtySections(Box(app).Sections()...)
			if err := scheduler.Start(app.Context()); err != nil {
				return err
			}
			scheduler.Trigger()
			return nil
		}),
		Reload(func(app Application) error {
			exporter := Exporter(app)
			exporter.AddDirtySections(Box(app).Sections()...)
			if s, ok := app.GetOK(KeyScheduler); ok {
				s.(*export.Scheduler).Trigger()
				return nil
			}
			return exporter.ExportToDisk(app.Context())
		}),
		Stop(func(app Application) error {
			if unsubscribe != nil {
				unsubscribe()
			}
			if s, ok := app.GetOK(KeyScheduler); ok {
				return s.(*export.Scheduler).Stop()
			}
			return nil
		}),
	)
}

// dispatchModule delivers events. It is stopped before the subscribers, so that queued events are flushed to them.
func dispatchModule() Module {
	done := make(chan struct{})
	var started bool

	return MakeModule("dispatch",
		Start(func(app Application) error {
			started = true
			go func() {
				defer close(done)
				_ = Bus(app).Run(app.Context())
			}()
			return nil
		}),
		Stop(func(app Application) error {
			bus, ok := app.GetOK(KeyBus)
			if !ok {
				return nil
			}
			bus.(*events.Bus).Close()
			if started {
				<-done
			}
			bus.(*events.Bus).Flush(context.Background())
			return nil
		}),
	)
}

func watcherModule() Module {
	return MakeModule("watcher",
		Init(func(app Application) error {
			sections := Box(app).Sections()
			return app.Set(KeyWatcher, watcher.New(app.Config().Pool.Dir, sections, Packages(app),
				watcher.Logger(app.Logger().Named("watcher")),
			))
		}),
		Start(func(app Application) error {
			return app.Get(KeyWatcher).(*watcher.Watcher).Start(app.Context())
		}),
		// events may have been missed: pick up whatever the pool holds now
		Reload(func(app Application) error {
			return app.Get(KeyWatcher).(*watcher.Watcher).Scan(app.Context())
		}),
		Stop(func(app Application) error {
			if w, ok := app.GetOK(KeyWatcher); ok {
				return w.(*watcher.Watcher).Stop()
			}
			return nil
		}),
	)
}
