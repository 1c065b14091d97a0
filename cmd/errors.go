package cmd

import "fmt"

// ConfigError reports a configuration value the CLI cannot use.
type ConfigError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid config %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("invalid config %s=%q: %s", e.Key, e.Value, e.Reason)
}

// ScanFailedError signals that at least one target of a batch did not complete.
type ScanFailedError struct {
	Check  string
	Failed int
	Total  int
}

func (e *ScanFailedError) Error() string {
	if e.Total <= 1 {
		return fmt.Sprintf("%s failed", e.Check)
	}
	return fmt.Sprintf("%s failed for %d of %d targets", e.Check, e.Failed, e.Total)
}
