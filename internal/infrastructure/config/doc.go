// Package config handles loading and validating farm bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with FARMBRIDGE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Secrets (JWT secret, MQTT and SMTP passwords, InfluxDB token) should be
// supplied through the environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.Host)
package config
