//go:build quicdebug

package transport

import (
	"fmt"
	"os"
	"time"
)

// debug prints low-level packet/frame tracing to stderr.
// Built only with -tags quicdebug; the hot path below it is compiled out
// entirely otherwise so release builds pay nothing for it.
func debug(format string, values ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s quic: %s\n", time.Now().Format(time.RFC3339Nano), fmt.Sprintf(format, values...))
}
