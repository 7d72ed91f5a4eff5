/*
Package api serves the Burrow scheduler over JSON/HTTP and exposes the
standard gRPC health service.

# Architecture

	┌──────────────────────────────────────────────────────────────┐
	│                         Clients                              │
	│        burrow CLI · pkg/client · agents · curl               │
	└───────────────┬──────────────────────────────┬───────────────┘
	                │ HTTP/JSON                    │ gRPC
	                ▼                              ▼
	┌───────────────────────────────┐  ┌───────────────────────────┐
	│            Server             │  │        GRPCServer         │
	│  instrument → limited → route │  │  TapLimiter → interceptor │
	│  /health /ready /metrics      │  │  grpc.health.v1.Health    │
	└───────────────┬───────────────┘  └─────────────┬─────────────┘
	                │                                │ SyncReadiness
	                ▼                                ▼
	┌───────────────────────────────┐  ┌───────────────────────────┐
	│     Scheduler interface       │  │ metrics readiness registry│
	└───────────────────────────────┘  └───────────────────────────┘

Server depends on the Scheduler interface rather than the concrete type, so
handlers can be tested against fakes as well as the real scheduler.

# HTTP Routes

	POST   /v1/tasks               submit a task (201, 409 duplicate, 429 rejected)
	POST   /v1/tasks/check         read-only admission check
	POST   /v1/tasks/{id}/start    mark a scheduled task running (409 not scheduled)
	POST   /v1/tasks/{id}/outcome  report actual usage (404 unknown, 409 not running)
	DELETE /v1/tasks/{id}          withdraw a scheduled task (404 unknown, 409 started)
	GET    /v1/tasks/next          highest ranked runnable task (204 when empty)
	GET    /v1/schedule            queue in rank order plus running tasks
	GET    /v1/capacity            live reservations against configured limits
	GET    /v1/stats               lifetime counters
	GET    /v1/accuracy            prediction accuracy per resource
	POST   /v1/models/retrain      batch retrain (?epochs=N, default 10)

	GET /health, /ready, /live     component health registry
	GET /metrics                   Prometheus exposition

# Request Bodies

Task bodies accept both "id"/"taskId" and "type"/"taskType", so payloads
written for either naming convention work unchanged:

	POST /v1/tasks
	{
	  "taskId": "fix-1042",
	  "taskType": "bug fix",
	  "description": "fix nil pointer in handler",
	  "priority": "high",
	  "dependencies": ["deploy-1043"]
	}

The free-text type is folded into the fixed vocabulary (here "fix") and the
priority accepts P0..P3, named levels or bare integers. A task without an
id is given a random UUID, which the reply echoes back. A body that is not
valid JSON answers 400.

An outcome carries the actual usage:

	POST /v1/tasks/fix-1042/outcome
	{"memoryMB": 612, "cpuSeconds": 41, "tokens": 18250, "durationMs": 203000}

# Rejections

A rejected submission is not an error; the body carries the scheduler's
result and the status tells the caller what to do:

	HTTP/1.1 429 Too Many Requests
	Retry-After: 300

	{"scheduled": false, "taskId": "fix-1042",
	 "reason": "insufficient-memory", "estimatedWaitTime": 300000000000}

Retry-After is the advised wait rounded up to whole seconds. A duplicate id
answers 409 instead, since waiting will not help.

# Rate Limiting

Mutating routes share a token bucket limiter (golang.org/x/time/rate).
Callers over quota get 429 with Retry-After: 1 before the body is read.
Read-only routes and the operational endpoints are never limited, so
monitoring keeps working while a client floods submissions.

The gRPC server applies the same limiter as a tap handle, so callers over
quota are refused with ResourceExhausted before their request is decoded.

	limiter := api.NewLimiter(50, 100)   // 50/s sustained, bursts of 100
	grpcSrv := api.NewGRPCServer(limiter)

A non-positive rate disables limiting.

# Instrumentation

Every route records burrow_api_requests_total{route,status} and
burrow_api_request_duration_seconds{route}. Route labels are fixed names
(schedule, start, outcome, ...) rather than raw paths, so task ids never
become label values.

# gRPC

GRPCServer registers grpc.health.v1.Health with unary and stream logging
interceptors. Both the overall status and the "burrow.Scheduler" service
follow the readiness registry in pkg/metrics when SyncReadiness is running:

	grpcSrv := api.NewGRPCServer(limiter)
	grpcSrv.SyncReadiness(5 * time.Second)
	go func() {
		if err := grpcSrv.Start("127.0.0.1:9090"); err != nil {
			logger.Error().Err(err).Msg("gRPC server stopped")
		}
	}()
	defer grpcSrv.Stop(ctx)

Serving registers a "grpc" component in the health registry, so readiness
can be made to wait for the gRPC listener as well.

# Usage

	srv := api.NewServer(sched, api.Config{
		Addr:      "127.0.0.1:8080",
		RateLimit: 50,
		RateBurst: 100,
	})
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("API server stopped")
		}
	}()
	defer srv.Shutdown(ctx)

Handler returns the mux for embedding or for httptest:

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
*/
package api
