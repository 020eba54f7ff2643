// Package main hosts the riptide CLI.
//
// Most commands talk to a running daemon over its unix socket: adding URLs,
// inspecting and steering the download queue, reading history and following
// logs. `riptide get` is the exception; it runs the download workflow
// in-process and exits once every submitted URL has finished.
package main
