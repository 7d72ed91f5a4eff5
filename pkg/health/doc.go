/*
Package health answers whether the host can take more work.

Admission control in Burrow is not only about the pool's own accounting.
An agent host shared with other processes can run out of memory even when
every reservation fits, so the feasibility checker also asks this package
whether the machine itself is overloaded.

# Checkers

Every check implements Checker:

	type Checker interface {
		Check(ctx context.Context) Result
		Type() CheckType
	}

Three implementations ship with the package:

	HostChecker      memory utilisation and load per core against thresholds
	EndpointChecker  GET a running server's /health or /ready endpoint
	Static           fixed answer, settable at runtime, for tests

# Host Sampling

HostChecker asks a Sampler for a HostSample and compares it against two
thresholds:

	memory utilisation > MemoryThreshold  (0.90, 0.95 on macOS)  → unhealthy
	load1 / NumCPU     > CPUThreshold     (0.95)                → unhealthy

On Linux memory utilisation is 1 - MemAvailable/MemTotal from
/proc/meminfo, read through github.com/prometheus/procfs. MemAvailable is
the kernel's own estimate of what can be handed out without swapping, so a
warm page cache on a long-running host does not count as pressure. Kernels
too old to report MemAvailable fall back to free plus buffer memory from
sysinfo(2), which also provides the 1-minute load average.

	/proc/meminfo                      utilisation
	MemTotal:      6147400 kB
	MemAvailable:  5604360 kB    →     1 - 5604360/6147400 = 0.088
	Cached:        1250000 kB          (not counted)

On other platforms the sampler reports itself unavailable and the checker
answers healthy, so an unmeasurable platform never blocks admission. A
sample that fails for any other reason is treated the same way.

# Monitor

Monitor wraps any Checker and folds results into a Status with a
consecutive-failure threshold. One success is enough to recover:

	Result   ok   fail  fail  fail  ok
	Healthy  ✓    ✓     ✓     ✗     ✓      (Retries = 3)

DefaultConfig uses Retries = 1 and a one second timeout: admission is
decided per task, so the gate reflects the latest sample.

Observe runs the check and returns the updated status; Status returns the
last one without running the check. The feasibility checker calls Observe on every
admission decision and Status whenever it only reports capacity.

# Usage

	monitor := health.NewMonitor(
		health.NewHostChecker(cfg.MemoryHealthThreshold, cfg.CPUHealthThreshold),
		health.DefaultConfig(),
	)
	status := monitor.Observe(ctx)
	if !status.Healthy {
		fmt.Println(status.LastResult.Message)
	}

The CLI uses EndpointChecker to wait for a server to become ready:

	checker := health.NewEndpointChecker("http://127.0.0.1:8080/ready").
		WithTimeout(2 * time.Second)
	if res := checker.Check(ctx); !res.Healthy {
		return errors.New(res.Message)
	}

Tests swap the host for a Static checker:

	static := health.NewStatic(true, "")
	static.Set(false, "memory 97%")
*/
package health
