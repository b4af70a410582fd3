// internal/recovery/recovery.go
package recovery

import (
	"fmt"
	"io"
	"os"
	rtdebug "runtime/debug"

	"github.com/womat/debug"
)

// replaced in tests
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// HandlePanic should be deferred at the top of main().
// It reports the panic with its stack and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		fatal(r, nil)
	}
}

// HandlePanicFunc should be deferred in goroutines owning resources. It
// reports the panic, runs cleanup and exits with code 1.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		fatal(r, cleanup)
	}
}

// fatal writes to stderr even when the log goes to a file.
func fatal(r any, cleanup func()) {
	stack := rtdebug.Stack()
	debug.FatalLog.Printf("panic: %v\n%s", r, stack)
	_, _ = fmt.Fprintf(stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, stack)
	if cleanup != nil {
		cleanup()
	}
	exit(1)
}
