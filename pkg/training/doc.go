/*
Package training turns tasks into model inputs and keeps the outcome log
the predictor learns from.

ExtractFeatures computes the resource-independent part of a task's
features from its type, description, priority, deadline and dependencies.
Vector appends the historical mean and spread of the target resource for
the task's type, producing the fixed FeatureDim layout documented on the
constant. Every slot is clamped to [0,1].

Store holds TrainingRecords oldest first together with running per-type
statistics. Records are forwarded to a Sink for durable storage; when the
log grows past its limit the oldest tenth is dropped from memory and from
the sink.
*/
package training
