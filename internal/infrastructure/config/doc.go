// Package config handles loading and validating controller configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT secret guards the endpoints that switch physical devices
//
// Behavioural module files (schedule windows, registered actuators) are not
// part of this configuration. SchedulerConfig only points at them; they are
// loaded and validated by the schedule package so they can be reloaded at
// runtime without a restart.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Site.Name, cfg.Scheduler.TickInterval)
package config
