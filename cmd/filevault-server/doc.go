// filevault-server serves per-account file storage over a private TCP
// protocol.
//
// Listeners:
//
//   - File protocol on server.tcp.addr (default 127.0.0.1:8888)
//   - Ops HTTP on server.http.addr: /healthz, /readyz, /metrics
//   - Local admin socket on server.local.path (disabled by default)
//
// Usage:
//
//	filevault-server [flags]
//	filevault-server -config /etc/filevault/server.yaml
//	filevault-server -config server.yaml -check
//
// Every setting can also be given as a FILEVAULT_* environment variable,
// for example FILEVAULT_SERVER_TCP_ADDR=0.0.0.0:8888. SIGHUP, the admin
// reload command and edits to the config file re-apply the log level.
package main
