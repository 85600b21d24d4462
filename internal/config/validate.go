package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Validate enforces manifest invariants. It assumes ApplyDefaults has run.
func (f *File) Validate() error {
	if f.StartInterval.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("startInterval"))
	}
	if len(f.Services) == 0 {
		return fmt.Errorf("%s: must define at least one service", fieldPath("services"))
	}
	seen := make(map[string]int, len(f.Services))
	for i, svc := range f.Services {
		if svc == nil {
			return fmt.Errorf("services[%d]: service entry is null", i)
		}
		name := svc.Name
		if name == "" {
			return fmt.Errorf("%s: is required", serviceField(i, "name"))
		}
		if strings.ContainsAny(name, " \t/") {
			return fmt.Errorf("%s: must not contain whitespace or '/'", serviceField(i, "name"))
		}
		if first, ok := seen[name]; ok {
			return fmt.Errorf("%s: duplicate service name %q (first defined at services[%d])", serviceField(i, "name"), name, first)
		}
		seen[name] = i
		if len(svc.Command) == 0 {
			return fmt.Errorf("%s: must contain at least one entry", serviceField(i, "command"))
		}
		if strings.TrimSpace(svc.Command[0]) == "" {
			return fmt.Errorf("%s: executable must be non-empty", serviceField(i, "command"))
		}
		for key := range svc.Env {
			if strings.TrimSpace(key) == "" {
				return fmt.Errorf("%s: variable name must be non-empty", serviceField(i, "env"))
			}
		}
		for j, rel := range svc.RequiredFiles {
			entry := fmt.Sprintf("requiredFiles[%d]", j)
			if strings.TrimSpace(rel) == "" {
				return fmt.Errorf("%s: must be non-empty", serviceField(i, entry))
			}
			if filepath.IsAbs(rel) {
				return fmt.Errorf("%s: must be relative to the working directory", serviceField(i, entry))
			}
		}
		if svc.Health != nil {
			if err := validateHealth(i, svc.Health); err != nil {
				return err
			}
		}
		if svc.Restart != nil {
			if err := validateRestart(i, svc.Restart); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateHealth(index int, h *HealthSpec) error {
	if h.Timeout.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", probeField(index, "timeout"))
	}
	variants := 0
	if h.Port != nil {
		variants++
	}
	if h.HTTP != nil {
		variants++
	}
	if variants > 1 {
		return fmt.Errorf("%s: must configure at most one probe type", probeField(index))
	}
	if h.Port != nil {
		if h.Port.Number < 1 || h.Port.Number > 65535 {
			return fmt.Errorf("%s: must be in range 1-65535", probeField(index, "port", "number"))
		}
	}
	if h.HTTP != nil {
		raw := strings.TrimSpace(h.HTTP.URL)
		if raw == "" {
			return fmt.Errorf("%s: is required", probeField(index, "http", "url"))
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s: invalid URL %q: %w", probeField(index, "http", "url"), raw, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%s: must use http or https scheme", probeField(index, "http", "url"))
		}
		if parsed.Host == "" {
			return fmt.Errorf("%s: must include a host", probeField(index, "http", "url"))
		}
	}
	return nil
}

func validateRestart(index int, r *RestartPolicy) error {
	if r.Backoff == nil {
		return nil
	}
	if r.Backoff.Base.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", restartField(index, "backoff", "base"))
	}
	if r.Backoff.Factor < 0 {
		return fmt.Errorf("%s: must be non-negative", restartField(index, "backoff", "factor"))
	}
	return nil
}
