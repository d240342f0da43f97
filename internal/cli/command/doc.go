// Package command implements the filevault-cli commands.
//
// File commands (ls, mkdir, put, get, rm) log in with --user and
// --password on a single connection per invocation. register and ping do
// not log in. admin commands use the server's local admin socket.
package command
