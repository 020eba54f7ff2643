// Package ipc exposes the daemon over JSON-RPC on a Unix domain socket and
// ships the matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Queue
// payloads reuse the api package types so HTTP and IPC callers see the same
// shapes.
package ipc
