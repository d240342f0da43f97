// filevault-cli is the command-line client for FileVault servers.
//
// Usage:
//
//	filevault-cli --user alice --password secret register
//	filevault-cli -u alice -p secret put report.pdf docs/report.pdf
//	filevault-cli -u alice -p secret -o json ls docs
//	filevault-cli --socket /run/filevault.sock admin status
//
// Credentials may also come from FILEVAULT_USER and FILEVAULT_PASSWORD, the
// server address from FILEVAULT_ADDR. Defaults can be stored in
// ~/.filevault/cli.yaml with "filevault-cli config init".
package main
