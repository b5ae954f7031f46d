// Package log exposes the logging interface the vetbox SDK emits through.
//
// By default the SDK is silent ([Noop]). To see provisioning and
// verification progress, plug in any implementation of [Logger], e.g. an
// adapter over your application's logger:
//
//	type slogAdapter struct{}
//
//	func (slogAdapter) Infof(format string, args ...any)  { slog.Info(fmt.Sprintf(format, args...)) }
//	func (slogAdapter) Errorf(format string, args ...any) { slog.Error(fmt.Sprintf(format, args...)) }
//	// ... remaining methods
package log

import "github.com/slok/vetbox/internal/log"

// Logger receives structured log output from the SDK. Implementations only
// need meaningful format methods (Infof, Warningf, Errorf, Debugf); WithValues
// and SetValuesOnCtx can return the logger unchanged.
type Logger = log.Logger

// Kv carries structured key-value pairs for [Logger.WithValues].
type Kv = log.Kv

// Noop discards all log output. It is the default when [lib.Config] has no
// logger set.
var Noop = log.Noop
