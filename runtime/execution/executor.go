package execution

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// Executor registers built controllers and middleware with a driver and
// routes each matched request to the engine
type Executor struct {
	driver  Driver
	builder *metadata.Builder
	engine  *Engine
	logger  *zap.Logger
}

// NewExecutor creates an executor
func NewExecutor(driver Driver, builder *metadata.Builder, engine *Engine, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		driver:  driver,
		builder: builder,
		engine:  engine,
		logger:  logger,
	}
}

// Initialize prepares the driver before any registration
func (x *Executor) Initialize() error {
	if err := x.driver.Initialize(); err != nil {
		return fmt.Errorf("initialize driver: %w", err)
	}
	return nil
}

// RegisterMiddlewares installs the global middleware of phase, highest priority first
func (x *Executor) RegisterMiddlewares(phase metadata.Phase, selector ...reflect.Type) error {
	for _, def := range x.builder.Middlewares(phase, selector...) {
		if err := x.driver.RegisterMiddleware(def); err != nil {
			return fmt.Errorf("register middleware %s: %w", def.Middleware.Name, err)
		}
		x.logger.Debug("middleware registered",
			zap.String("name", def.Middleware.Name),
			zap.Stringer("phase", def.Phase),
			zap.Int("priority", def.Priority),
		)
	}
	return nil
}

// RegisterControllers builds the selected controllers and binds every action
func (x *Executor) RegisterControllers(selector ...reflect.Type) ([]*metadata.Controller, error) {
	controllers := x.builder.Build(selector...)
	for _, controller := range controllers {
		for _, action := range controller.Actions {
			err := x.driver.RegisterAction(action, func(rc *metadata.RequestContext) {
				x.engine.Execute(action, rc)
			})
			if err != nil {
				return nil, fmt.Errorf("register action %s: %w", action.Name(), err)
			}
			x.logger.Debug("action registered",
				zap.String("action", action.Name()),
				zap.String("verb", string(action.Verb)),
				zap.Stringer("route", action.FullRoute),
			)
		}
	}
	return controllers, nil
}
