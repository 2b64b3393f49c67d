// Package app is the lifecycle container of the daemon.
//
// Modules are initialized and started in the order they were added, and stopped in reverse order.
// They share components through the application registry.
package app

import (
	"context"
	"sync"

	"github.com/kardianos/osext"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/config"
	"github.com/oneconcern/pacbox/pkg/dlogger"
	"github.com/oneconcern/pacbox/pkg/errors"
)

// ErrLifecycle is returned when the application is driven through its phases out of order
var ErrLifecycle = errors.New("invalid application lifecycle")

var executable = osext.Executable

// A Key identifies a component in the application registry
type Key int

// Application is the container shared by the modules of the daemon.
//
// Its registry is safe for concurrent use. Lifecycle methods are not.
type Application interface {
	// Add modules, before Init
	Add(...Module) error

	// Get the component registered at key, nil if none
	Get(Key) interface{}

	// GetOK gets the component registered at key, and tells if there was one
	GetOK(Key) (interface{}, bool)

	// Set the component registered at key
	Set(Key, interface{}) error

	Config() *config.Config

	Logger() *zap.Logger

	// Context is cancelled when the application stops
	Context() context.Context

	// Init all modules, stopping at the first failure
	Init() error

	// Start all modules, stopping at the first failure
	Start() error

	// Stop all modules, last added first
	Stop() error

	// Reload all modules, typically on SIGHUP
	Reload() error
}

// Phase of the application lifecycle
type Phase uint8

// Lifecycle phases, in the order an application goes through them
const (
	PhaseInit Phase = iota
	PhaseStart
	PhaseReload
	PhaseStop
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseStart:
		return "start"
	case PhaseReload:
		return "reload"
	case PhaseStop:
		return "stop"
	default:
		return "unknown"
	}
}

// A Hook is a module callback run at some phase of the lifecycle
type Hook interface {
	Phase() Phase
	Run(Application) error
}

// Init hook, building the components of a module
type Init func(Application) error

func (Init) Phase() Phase { return PhaseInit }
func (fn Init) Run(app Application) error { return fn(app) }

// Start hook, launching the background work of a module
type Start func(Application) error

func (Start) Phase() Phase { return PhaseStart }
func (fn Start) Run(app Application) error { return fn(app) }

// Reload hook, refreshing a running module
type Reload func(Application) error

func (Reload) Phase() Phase { return PhaseReload }
func (fn Reload) Run(app Application) error { return fn(app) }

// Stop hook, releasing the resources of a module
type Stop func(Application) error

func (Stop) Phase() Phase { return PhaseStop }
func (fn Stop) Run(app Application) error { return fn(app) }

// A Module takes part in the application lifecycle
type Module interface {
	Name() string
	Run(Phase, Application) error
}

// MakeModule groups hooks into a named module.
//
// Hooks of the same phase run in the order they are given, up to the first failure.
func MakeModule(name string, hooks ...Hook) Module {
	m := &hookModule{name: name, hooks: make(map[Phase][]Hook, len(hooks))}
	for _, h := range hooks {
		m.hooks[h.Phase()] = append(m.hooks[h.Phase()], h)
	}
	return m
}

type hookModule struct {
	name  string
	hooks map[Phase][]Hook
}

func (m *hookModule) Name() string { return m.name }

func (m *hookModule) Run(phase Phase, app Application) error {
	for _, h := range m.hooks[phase] {
		if err := h.Run(app); err != nil {
			return err
		}
	}
	return nil
}

// New creates an application context.
//
// A nil config stands for the default configuration, a nil logger for the default info-level logger.
func New(cfg *config.Config, l *zap.Logger) Application {
	if cfg == nil {
		cfg = config.Default()
	}
	if l == nil {
		l = dlogger.MustGetLogger(dlogger.LogLevelInfo)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &defaultApplication{conf: cfg, l: l, ctx: ctx, cancel: cancel}
}

type defaultApplication struct {
	modules []Module
	reached map[Phase]bool
	failed  bool

	registry sync.Map
	conf     *config.Config
	l        *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func (d *defaultApplication) Add(modules ...Module) error {
	if d.reached[PhaseInit] {
		return ErrLifecycle.Describe("modules added after init")
	}
	d.modules = append(d.modules, modules...)
	return nil
}

func (d *defaultApplication) Get(key Key) interface{} {
	component, _ := d.GetOK(key)
	return component
}

func (d *defaultApplication) GetOK(key Key) (interface{}, bool) {
	return d.registry.Load(key)
}

func (d *defaultApplication) Set(key Key, component interface{}) error {
	d.registry.Store(key, component)
	return nil
}

func (d *defaultApplication) Config() *config.Config { return d.conf }

func (d *defaultApplication) Logger() *zap.Logger { return d.l }

func (d *defaultApplication) Context() context.Context { return d.ctx }

func (d *defaultApplication) Init() error {
	if err := d.enter(PhaseInit, PhaseInit); err != nil {
		return err
	}
	return d.forward(PhaseInit)
}

func (d *defaultApplication) Start() error {
	if err := d.enter(PhaseStart, PhaseInit); err != nil {
		return err
	}
	if exec, err := executable(); err == nil {
		d.l.Info("starting", zap.String("executable", exec), zap.Int("modules", len(d.modules)))
	}
	return d.forward(PhaseStart)
}

// Reload all started modules. A failing module does not prevent the others from reloading.
func (d *defaultApplication) Reload() error {
	if d.failed || !d.reached[PhaseStart] || d.reached[PhaseStop] {
		return ErrLifecycle.Describe("reload of an application not running")
	}

	var err error
	for _, mod := range d.modules {
		err = multierr.Append(err, d.run(mod, PhaseReload))
	}
	return err
}

// Stop all modules, last added first. A failing module does not prevent the others from stopping.
func (d *defaultApplication) Stop() error {
	defer d.cancel()
	d.mark(PhaseStop)

	var err error
	for i := len(d.modules) - 1; i >= 0; i-- {
		err = multierr.Append(err, d.run(d.modules[i], PhaseStop))
	}
	return err
}

// enter checks that the application may enter a phase, then marks it reached
func (d *defaultApplication) enter(phase, after Phase) error {
	if d.failed || d.reached[phase] || (after != phase && !d.reached[after]) || d.reached[PhaseStop] {
		return ErrLifecycle.Describe("cannot %s now", phase)
	}
	d.mark(phase)
	return nil
}

func (d *defaultApplication) mark(phase Phase) {
	if d.reached == nil {
		d.reached = make(map[Phase]bool)
	}
	d.reached[phase] = true
}

// forward runs a phase through all modules, up to the first failure which leaves the application only fit to stop
func (d *defaultApplication) forward(phase Phase) error {
	for _, mod := range d.modules {
		if err := d.run(mod, phase); err != nil {
			d.failed = true
			return err
		}
	}
	return nil
}

func (d *defaultApplication) run(mod Module, phase Phase) error {
	err := mod.Run(phase, d)
	if err != nil {
		d.l.Error("module failed",
			zap.String("module", mod.Name()),
			zap.Stringer("phase", phase),
			zap.String("chain", errors.Chain(err)),
		)
		return err
	}
	d.l.Debug("module done", zap.String("module", mod.Name()), zap.Stringer("phase", phase))
	return nil
}
