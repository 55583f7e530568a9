// Package relay implements the session lifecycle, message routing and deny
// voting of the relay.
//
// A Connection starts in StateHandshaking and waits for one payload naming a
// codec. On success a Session is registered and the connection becomes
// StateActive; every later payload is parsed with the session's codec, stamped
// with its origin and handed to the router. Quit, deny-vote eviction and
// transport closure all end in StateTerminated.
//
// Relay itself is not safe for concurrent use. Hub owns one Relay on a single
// goroutine and is the entry point for transports.
package relay
