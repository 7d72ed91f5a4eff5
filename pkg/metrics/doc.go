/*
Package metrics exposes Burrow's Prometheus collectors and the component
health registry behind /health and /ready.

# Collectors

Collectors are package-level variables registered in init, so any package
can record without plumbing a registry:

	metric                                   type       labels
	──────────────────────────────────────── ────────── ──────────────
	burrow_admissions_total                  counter    result, reason
	burrow_scheduling_latency_seconds        histogram
	burrow_queue_depth                       gauge
	burrow_running_tasks                     gauge
	burrow_memory_reserved_mb                gauge
	burrow_tokens_used                       gauge      window
	burrow_rebalance_duration_seconds        histogram
	burrow_reservations_reaped_total         counter
	burrow_predictions_total                 counter    method
	burrow_prediction_accuracy               gauge      resource
	burrow_model_updates_total               counter
	burrow_persist_errors_total              counter
	burrow_api_requests_total                counter    route, status
	burrow_api_request_duration_seconds      histogram  route

Label values are drawn from closed sets (rejection reasons, prediction
methods, resource kinds, route names), never from task ids.

Recording is a one-liner:

	metrics.AdmissionsTotal.WithLabelValues("rejected", string(reason)).Inc()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingLatency)

Handler serves the default registry in the Prometheus text format.

# Gauges

Gauges that mirror scheduler state (queue depth, running tasks, reserved
memory, token windows) are set by the scheduler whenever the ledger
changes. A Collector also polls a Source on an interval, so the gauges stay
current across bucket rollovers when nothing is submitted:

	collector := metrics.NewCollector(sched, 15*time.Second)
	collector.Start()
	defer collector.Stop()

# Health Registry

Components report their own state into a process-wide registry:

	metrics.RegisterComponent("storage", true, "bolt at /var/lib/burrow")
	metrics.UpdateComponent("storage", false, "disk full")

Two views are derived from it:

	endpoint  healthy when                                    code
	───────── ─────────────────────────────────────────────── ─────────
	/health   every registered component is healthy           200 / 503
	/ready    every critical component is registered and up   200 / 503
	/live     the process answers                             200

Readiness requires the scheduler, storage and api components by default.
SetCriticalComponents replaces that list; the serve command adds "grpc"
when the gRPC listener is enabled. GetReadiness reports every critical
component and names the first one still missing, in sorted order:

	{
	  "status": "not_ready",
	  "message": "waiting for api",
	  "components": {
	    "api": "not registered",
	    "scheduler": "ready",
	    "storage": "not registered"
	  }
	}

IsReady is the boolean form used by the gRPC health service.

Reset clears the registry; tests call it before registering components.
*/
package metrics
