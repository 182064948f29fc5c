// Package relay implements the room and host coordination core of the
// signaling service: which connections belong to which room, which member
// currently holds the host role, and how directed and broadcast messages are
// routed among members while tolerating abrupt disconnects.
//
// The relay does not authenticate anything. A client that knows a room id can
// join it, and host-gated actions are checked by display-name equality only.
// That trust boundary belongs to the front end that hands out room links; the
// startup warnings in cmd/signal-relay call it out.
package relay
