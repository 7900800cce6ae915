package discovery

import (
	"context"
	"math"
	"net/netip"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// DefaultPingCeiling caps a ping subprocess regardless of the probe timeout.
const DefaultPingCeiling = 3 * time.Second

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ExecPinger shells out to the system ping utility.
type ExecPinger struct {
	Ceiling time.Duration
	goos    string
	run     runFunc
}

func NewExecPinger(ceiling time.Duration) *ExecPinger {
	if ceiling <= 0 {
		ceiling = DefaultPingCeiling
	}
	return &ExecPinger{Ceiling: ceiling, goos: runtime.GOOS, run: runCombined}
}

func (p *ExecPinger) Ping(ctx context.Context, addr netip.Addr, timeout time.Duration) Reply {
	ctx, cancel := context.WithTimeout(ctx, p.Ceiling)
	defer cancel()

	out, err := p.run(ctx, "ping", pingArgs(p.goos, addr, timeout)...)
	if err != nil {
		return NoReply
	}
	// Windows ping exits 0 on "destination host unreachable".
	if p.goos == "windows" && !strings.Contains(strings.ToUpper(string(out)), "TTL") {
		return NoReply
	}
	return Alive
}

func pingArgs(goos string, addr netip.Addr, timeout time.Duration) []string {
	secs := strconv.Itoa(int(math.Max(1, math.Ceil(timeout.Seconds()))))
	switch goos {
	case "windows":
		return []string{"-n", "1", "-w", strconv.FormatInt(timeout.Milliseconds(), 10), addr.String()}
	case "darwin", "freebsd", "openbsd", "netbsd":
		return []string{"-c", "1", "-t", secs, addr.String()}
	default:
		return []string{"-c", "1", "-W", secs, addr.String()}
	}
}
