// Package config loads server settings from YAML or JSON files.
//
// Settings start from Default, are overlaid by the file (if any) and then
// by command-line flags in cmd/dirserve. Validate must pass before the
// values are used.
//
//	server:
//	  root: ./public
//	  port: 7878
//	  threads: 4
//	admin:
//	  addr: 127.0.0.1:9090
//	log:
//	  verbose: true
package config
