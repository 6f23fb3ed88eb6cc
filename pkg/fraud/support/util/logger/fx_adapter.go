package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxLoggerAdapter writes fx lifecycle events to the package logger as
// structured entries.
type FxLoggerAdapter struct{}

// NewFxLoggerAdapter returns the fx event logger.
func NewFxLoggerAdapter() fxevent.Logger {
	return &FxLoggerAdapter{}
}

// hook logs a lifecycle hook event; failures are always reported.
func hook(s *zap.SugaredLogger, msg, callee string, err error, kv ...interface{}) {
	kv = append([]interface{}{"callee", shortFunctionName(callee)}, kv...)
	if err != nil {
		s.Errorw(msg+" failed", append(kv, "error", err)...)
		return
	}
	s.Debugw(msg, kv...)
}

// LogEvent implements fxevent.Logger.
func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	s := current()
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		s.Debugw("OnStart hook executing", "callee", shortFunctionName(e.FunctionName), "caller", e.CallerName)
	case *fxevent.OnStartExecuted:
		hook(s, "OnStart hook", e.FunctionName, e.Err, "runtime", e.Runtime)
	case *fxevent.OnStopExecuting:
		s.Debugw("OnStop hook executing", "callee", shortFunctionName(e.FunctionName), "caller", e.CallerName)
	case *fxevent.OnStopExecuted:
		hook(s, "OnStop hook", e.FunctionName, e.Err, "runtime", e.Runtime)
	case *fxevent.Supplied:
		hook(s, "supplied", e.TypeName, e.Err)
	case *fxevent.Provided:
		if e.Err != nil {
			s.Errorw("provide failed", "constructor", shortFunctionName(e.ConstructorName), "error", e.Err)
			return
		}
		s.Debugw("provided", "constructor", shortFunctionName(e.ConstructorName), "types", e.OutputTypeNames)
	case *fxevent.Invoked:
		hook(s, "invoked", e.FunctionName, e.Err)
	case *fxevent.Stopping:
		s.Infow("Stopping application", "signal", strings.ToUpper(e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			s.Errorw("stop failed", "error", e.Err)
		}
	case *fxevent.RollingBack:
		s.Errorw("start failed, rolling back", "error", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			s.Errorw("rollback failed", "error", e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			s.Errorw("start failed", "error", e.Err)
			return
		}
		s.Infow("Application started.")
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			s.Errorw("fx logger initialization failed", "error", e.Err)
		}
	}
}

// shortFunctionName strips the ".funcN" suffix fx reports for closures.
func shortFunctionName(funcName string) string {
	if idx := strings.LastIndex(funcName, ".func"); idx != -1 {
		return funcName[:idx]
	}
	return funcName
}
