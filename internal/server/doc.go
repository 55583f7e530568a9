// Package server implements the network surface of the relay.
//
// Peers reach the relay over plain TCP, one payload per line, or over the
// WebSocket gateway, one payload per text frame. Both transports hand their
// payloads to the same relay.Hub, so a TCP peer and a WebSocket peer see each
// other. The HTTP listener also serves a health line and Prometheus metrics.
package server
