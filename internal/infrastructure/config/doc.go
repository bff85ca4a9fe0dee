// Package config loads and validates the PLAF203 feeder core configuration.
//
// Values come from three layers, later layers winning:
//   - built-in defaults (defaultConfig)
//   - the YAML file passed to Load
//   - PLAF203_* environment variables
//
// Validate runs last and reports every problem at once, joined with "; ".
//
// Secrets (MQTT password, JWT secret, InfluxDB token) belong in the
// environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.Serial, cfg.WatchdogTimeout())
package config
