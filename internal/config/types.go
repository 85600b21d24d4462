package config

import (
	"fmt"
	"strings"
	"time"
)

// DefaultHealthTimeout bounds a readiness wait when the manifest does not
// provide an explicit health timeout.
const DefaultHealthTimeout = 60 * time.Second

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// File mirrors the vigil.yaml document structure.
type File struct {
	StartInterval Duration       `yaml:"startInterval"`
	Services      []*ServiceSpec `yaml:"services"`
}

// ServiceSpec describes a single supervised process.
type ServiceSpec struct {
	Name          string            `yaml:"name"`
	Command       []string          `yaml:"command"`
	Workdir       string            `yaml:"workdir"`
	Env           map[string]string `yaml:"env"`
	EnvFile       string            `yaml:"envFile"`
	RequiredFiles []string          `yaml:"requiredFiles"`
	Health        *HealthSpec       `yaml:"health"`
	Restart       *RestartPolicy    `yaml:"restart"`

	// ResolvedWorkdir is the absolute working directory computed by Load.
	ResolvedWorkdir string `yaml:"-"`
}

// HealthSpec configures the readiness probe for a service. A nil HealthSpec
// means the service is considered ready as soon as it has been spawned. At
// most one probe variant may be set.
type HealthSpec struct {
	Timeout Duration       `yaml:"timeout"`
	Port    *PortProbeSpec `yaml:"port"`
	HTTP    *HTTPProbeSpec `yaml:"http"`
}

// PortProbeSpec defines a TCP connect probe against a loopback port.
type PortProbeSpec struct {
	Number int `yaml:"number"`
}

// HTTPProbeSpec defines an HTTP GET probe.
type HTTPProbeSpec struct {
	URL string `yaml:"url"`
}

// RestartPolicy defines restart behaviour for a service. A nil policy, or
// Auto set to false, disables automatic restarts. A nil MaxRetries means
// unlimited; zero means the service is never restarted.
type RestartPolicy struct {
	Auto       bool         `yaml:"auto"`
	MaxRetries *int         `yaml:"maxRetries"`
	Backoff    *BackoffSpec `yaml:"backoff"`
}

// BackoffSpec describes exponential backoff configuration.
type BackoffSpec struct {
	Base   Duration `yaml:"base"`
	Factor float64  `yaml:"factor"`
}

// ApplyDefaults fills in manifest-level defaults on every service.
func (f *File) ApplyDefaults() {
	for _, svc := range f.Services {
		if svc == nil {
			continue
		}
		svc.Name = strings.TrimSpace(svc.Name)
		if svc.Health != nil && !svc.Health.Timeout.IsSet() {
			svc.Health.Timeout = Duration{Duration: DefaultHealthTimeout}
		}
	}
}

// ServiceNames returns the service names in manifest order.
func (f *File) ServiceNames() []string {
	out := make([]string, 0, len(f.Services))
	for _, svc := range f.Services {
		if svc == nil {
			continue
		}
		out = append(out, svc.Name)
	}
	return out
}

// Clone creates a deep copy of the manifest.
func (f *File) Clone() *File {
	if f == nil {
		return nil
	}
	cp := &File{StartInterval: f.StartInterval}
	if len(f.Services) > 0 {
		cp.Services = make([]*ServiceSpec, 0, len(f.Services))
		for _, svc := range f.Services {
			cp.Services = append(cp.Services, svc.Clone())
		}
	}
	return cp
}

// Clone creates a deep copy of the service spec.
func (s *ServiceSpec) Clone() *ServiceSpec {
	if s == nil {
		return nil
	}
	cp := &ServiceSpec{
		Name:            s.Name,
		Workdir:         s.Workdir,
		EnvFile:         s.EnvFile,
		ResolvedWorkdir: s.ResolvedWorkdir,
	}
	if len(s.Command) > 0 {
		cp.Command = append([]string(nil), s.Command...)
	}
	if len(s.Env) > 0 {
		cp.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			cp.Env[k] = v
		}
	}
	if len(s.RequiredFiles) > 0 {
		cp.RequiredFiles = append([]string(nil), s.RequiredFiles...)
	}
	cp.Health = s.Health.Clone()
	cp.Restart = s.Restart.Clone()
	return cp
}

// Clone creates a deep copy of the health spec.
func (h *HealthSpec) Clone() *HealthSpec {
	if h == nil {
		return nil
	}
	cp := &HealthSpec{Timeout: h.Timeout}
	if h.Port != nil {
		port := *h.Port
		cp.Port = &port
	}
	if h.HTTP != nil {
		httpProbe := *h.HTTP
		cp.HTTP = &httpProbe
	}
	return cp
}

// Clone creates a deep copy of the restart policy.
func (r *RestartPolicy) Clone() *RestartPolicy {
	if r == nil {
		return nil
	}
	cp := &RestartPolicy{Auto: r.Auto}
	if r.MaxRetries != nil {
		v := *r.MaxRetries
		cp.MaxRetries = &v
	}
	if r.Backoff != nil {
		backoff := *r.Backoff
		cp.Backoff = &backoff
	}
	return cp
}

func fieldPath(parts ...string) string {
	return strings.Join(parts, ".")
}

func serviceField(index int, parts ...string) string {
	pathParts := append([]string{fmt.Sprintf("services[%d]", index)}, parts...)
	return fieldPath(pathParts...)
}

func probeField(index int, parts ...string) string {
	pathParts := append([]string{"health"}, parts...)
	return serviceField(index, pathParts...)
}

func restartField(index int, parts ...string) string {
	pathParts := append([]string{"restart"}, parts...)
	return serviceField(index, pathParts...)
}
