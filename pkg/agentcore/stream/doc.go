// Package stream exposes bus events to websocket clients.
//
// Mount Handler on any mux:
//
//	mux.Handle("/events", stream.Handler(rt.Bus()))
//
// Clients receive each emitted event as a JSON text frame. Connecting to
// /events?types=agent.tick.failed,agent.tick.completed limits the stream to
// those types. A client that falls behind loses events rather than slowing
// down the bus.
package stream
