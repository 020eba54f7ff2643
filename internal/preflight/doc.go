// Package preflight runs environment checks before the daemon starts workers:
// directory permissions, free space on the download root, ntfy reachability
// and required external binaries.
package preflight
