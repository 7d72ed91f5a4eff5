/*
Package client is the Go client for the Burrow HTTP API.

Agents and tooling use it to submit tasks, pull work and report outcomes
without dealing with routes or status codes. The burrow CLI is built on it.

# Results and Errors

Every scheduler operation has a method taking a context. Answers that carry
a scheduler result are returned as results rather than errors, including
rejections and lookup misses:

	method           result statuses                   inspect
	──────────────── ───────────────────────────────── ──────────────────────
	ScheduleTask     201, 409 duplicate, 429 rejected  res.Scheduled, Reason
	StartTask        200, 409 not scheduled            res.Started
	ReportOutcome    200, 404 unknown, 409 not running res.Recorded
	RemoveTask       200, 404 unknown, 409 started     res.Removed
	GetNextTask      200, 204 nothing runnable         nil on 204

Any other non-2xx answer becomes an *Error carrying the status code and the
server's message:

	var apiErr *client.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		// malformed request
	}

# Retries

Transport failures and 5xx answers are retried with exponential backoff
(github.com/cenkalti/backoff/v4), DefaultRetries times after the first
attempt, starting at 200ms and giving up after 30s in total. 4xx answers
are final and never retried. The context bounds every attempt and the
waits between them.

	c, err := client.NewClient("127.0.0.1:8080",
		client.WithRetries(2),
		client.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
	)

WithBackOff replaces the policy entirely; tests pass a zero backoff so
retries do not slow them down.

# Usage

	c, err := client.NewClient("127.0.0.1:8080")
	if err != nil {
		return err
	}
	res, err := c.ScheduleTask(ctx, &types.TaskSpec{ID: "t-1", Type: "fix"})
	if err != nil {
		return err
	}
	if !res.Scheduled {
		fmt.Printf("rejected: %s, retry in %s\n", res.Reason, res.EstimatedWaitTime)
	}

A worker loop:

	for {
		next, err := c.GetNextTask(ctx)
		if err != nil {
			return err
		}
		if next == nil {
			time.Sleep(time.Second)
			continue
		}
		if _, err := c.StartTask(ctx, next.Task.ID); err != nil {
			return err
		}
		usage := run(next.Task)
		if _, err := c.ReportOutcome(ctx, next.Task.ID, usage); err != nil {
			return err
		}
	}
*/
package client
