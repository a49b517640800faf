// Package config handles loading and validating the library service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with LIBRARY_* environment variables
//   - Validation of required fields
//   - Watching the file for changes (log level hot reload)
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token, JWT secret) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - Librarian passwords are stored as argon2id hashes, never in clear text
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Store.Backend)
package config
