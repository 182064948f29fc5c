// Package signaling implements the WebSocket surface browser clients connect
// to. Each accepted connection becomes a relay.Peer: frames read from the
// socket are dispatched into the room registry, and payloads produced by the
// registry are written back out under a per-connection write deadline.
//
// There is no authentication. Anyone who can reach the endpoint can join any
// room under any display name; deployments that need a trust boundary put one
// in front of this service.
package signaling
