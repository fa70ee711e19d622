// Package rglog is the process-wide, write-only diagnostic sink for the
// render graph. It follows the teacher's plain log.Printf idiom
// (engine/engine.go, examples/*.go) rather than a structured logging
// library: diagnostic text here is not part of any stable interface, so a
// bespoke abstraction would buy nothing.
package rglog

import "log"

// Logger is the sink used by every rgraph subpackage. It defaults to the
// standard library logger and can be redirected (e.g. in tests) via SetOutput.
var Logger = log.New(log.Writer(), "[RenderGraph] ", log.LstdFlags)

// Errorf logs a recoverable error. It never panics or exits. Builder
// validation failures are only logged here; the builder reports them to
// its caller as the invalid handle returned by Finish.
func Errorf(format string, args ...any) {
	Logger.Printf(format, args...)
}
