// Package dispatch drains verified webhook deliveries and hands each payload
// to the downstream handler.
//
// The dispatcher polls the delivery queue on a fixed interval and processes
// one delivery per tick, oldest first. A handler error marks the delivery
// failed with the error text; success marks it done. Deliveries are not
// retried.
//
// When a replay guard is configured the dispatcher also prunes expired
// signature keys on a slower interval.
package dispatch
