// Package transport is the RPC collaborator used by the ipc daemon.
//
// It binds a TCP listener, registers exactly one named object on a net/rpc
// server and serves calls against it until told to shut down. Client side, a
// Proxy addresses the object through a URI of the form
//
//	ipc://<name>@<host>:<port>
//
// and offers a connection-level handshake that never invokes a method on the
// exposed object.
//
// Four wire encodings are supported, selected by Mode:
//
//   - native: a gob stream, the richest encoding (arbitrary exported structs)
//   - text:   length-prefixed YAML documents
//   - json:   JSON-RPC 1.0 as implemented by net/rpc/jsonrpc
//   - legacy: length-prefixed, self-contained gob frames
//
// Client and server must agree on the mode; there is no negotiation.
package transport
