// Package session provides server-held, cookie-addressed state for
// request handlers.
//
// A Session wraps one externally assigned id and caches its payload in
// memory; persistence is delegated to a pluggable Store. The default
// MemoryStore keeps records in a process-local map, enforcing expiry
// lazily at read time. S3Store implements the same contract against a
// shared bucket for multi-process deployments.
//
// Lifecycle:
//
//	sess := session.New(cookieValue, session.Options{Store: store})
//	sess.Init(ctx)                              // load cached payload
//	sess.Update(ctx, session.Payload{"k": "v"}) // persist + refresh expiry
//	sess.End(ctx)                               // delete if empty, drop cache
//
// Update also accepts a func(Payload) Payload computing the next payload
// from the previous one.
package session
