// Package config handles loading and validating BabyBox configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, JWT secret) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT secret must be set before the admin API is reachable
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Media.BaseDir)
package config
