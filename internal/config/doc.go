// Package config loads the tenderdesk client configuration.
//
// Values are resolved in order: built-in defaults, the YAML file
// (~/.tenderdesk/config.yaml unless --config says otherwise), then
// TENDERDESK_* environment variables. The result is validated once.
//
// Secrets (store passphrase, redis password) should come from the
// environment rather than the file.
package config
