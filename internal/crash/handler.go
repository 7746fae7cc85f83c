package crash

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"

	"tg-appeals/internal/logger"
)

// ErrPanic wraps panics converted into errors by RecoverToError.
var ErrPanic = errors.New("recovered panic")

// RecoverWithStack recovers a panic and logs it together with the stack trace.
// Must be called directly via defer.
func RecoverWithStack(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, r, false)
	}
}

// RecoverToError recovers a panic and stores it into *errp so the caller can
// return it as an ordinary error. Must be called directly via defer.
func RecoverToError(moduleName string, errp *error) {
	if r := recover(); r != nil {
		report(moduleName, r, false)
		if errp != nil {
			*errp = fmt.Errorf("%w in %s: %v", ErrPanic, moduleName, r)
		}
	}
}

// RecoverWithStackAndExit is used by the entry point: it logs the panic and
// exits with a non-zero status so the supervisor restarts the process.
func RecoverWithStackAndExit(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, r, true)

		// give the log writers and sentry time to flush
		sentry.Flush(2 * time.Second)
		time.Sleep(1 * time.Second)

		os.Exit(1)
	}
}

// SafeGoroutine starts fn in a goroutine guarded by RecoverWithStack.
func SafeGoroutine(name string, fn func()) {
	go func() {
		defer RecoverWithStack(fmt.Sprintf("goroutine-%s", name))
		fn()
	}()
}

func report(moduleName string, r any, fatal bool) {
	stack := debug.Stack()

	prefix := "PANIC"
	if fatal {
		prefix = "FATAL PANIC"
	}

	logger.Errorf("%s in %s: %v", prefix, moduleName, r)
	logger.Errorf("Stack trace:\n%s", string(stack))

	// stderr as well, so container logs always carry it
	fmt.Fprintf(os.Stderr, "[%s] %s - %s: %v\n", prefix, time.Now().Format("2006-01-02 15:04:05"), moduleName, r)
	fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", string(stack))

	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub.Recover(r)
	}

	logRuntimeInfo()
}

// logRuntimeInfo records runtime information to help debugging
func logRuntimeInfo() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	logger.Errorf(`
Runtime Information:
- Go version: %s
- Number of CPUs: %d
- Number of goroutines: %d
- Memory stats:
  - Heap allocated: %d KB
  - Heap in use: %d KB
  - Stack in use: %d KB
  - Num GC: %d
`,
		runtime.Version(),
		runtime.NumCPU(),
		runtime.NumGoroutine(),
		bToKb(m.HeapAlloc),
		bToKb(m.HeapInuse),
		bToKb(m.StackInuse),
		m.NumGC,
	)
}

func bToKb(b uint64) uint64 {
	return b / 1024
}

// SetupCrashHandler turns memory faults into recoverable panics.
func SetupCrashHandler() {
	debug.SetPanicOnFault(true)
}
