// Package localserver provides the admin interface on a unix domain socket.
//
// Access is controlled by file system permissions on the socket, which is
// created with mode 0600. Commands:
//
//   - status: uptime, active connections, registered accounts
//   - conns: live file protocol connections
//   - reload: re-read the configuration file
//   - version: build information
//   - shutdown: graceful stop
package localserver
