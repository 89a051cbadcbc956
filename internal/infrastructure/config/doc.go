// Package config handles loading and validating gateway configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with HYDRO_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Database and broker passwords should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.Driver)
package config
