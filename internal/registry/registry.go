// Package registry holds the static map of projects and modules that the
// service is allowed to fetch logs for. The registry is read from a YAML file
// once at startup and is immutable afterwards, so lookups are safe for any
// number of concurrent requests without locking.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a project or module is not in the registry.
var ErrNotFound = errors.New("not found in registry")

// ModuleEntry describes where one module's log files live. All fields are
// resolved at load time: Host and User fall back to the project credentials
// when the module omits them.
type ModuleEntry struct {
	Path     string // remote directory containing the log files
	Base     string // filename prefix, e.g. "app" for app-01-11-2025.log
	Host     string
	User     string
	Password string // decrypted; empty when key auth is expected
}

// Registry maps project name to module name to ModuleEntry.
type Registry struct {
	projects map[string]map[string]ModuleEntry
}

// file format types

type registryFile struct {
	Projects []projectSpec `yaml:"projects"`
}

type projectSpec struct {
	Name        string          `yaml:"name"`
	Credentials credentialsSpec `yaml:"credentials"`
	Modules     []moduleSpec    `yaml:"modules"`
}

type credentialsSpec struct {
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type moduleSpec struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	User string `yaml:"user"`
	Path string `yaml:"path"`
	Base string `yaml:"base"`
}

// Decryptor turns a stored password value into its plaintext. It exists so
// the loader does not depend on the secrets package directly; pass
// secrets.Decrypt in production and nil when passwords are plaintext.
type Decryptor func(value string) (string, error)

// Load reads and validates the registry file.
func Load(path string, decrypt Decryptor) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	return Parse(raw, decrypt)
}

// Parse builds a Registry from raw YAML. Split from Load for tests.
func Parse(raw []byte, decrypt Decryptor) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	reg := &Registry{projects: make(map[string]map[string]ModuleEntry)}
	for _, p := range file.Projects {
		if p.Name == "" {
			return nil, fmt.Errorf("registry: project with empty name")
		}
		if _, dup := reg.projects[p.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate project %q", p.Name)
		}

		if p.Credentials.Password != "" && decrypt != nil {
			pw, err := decrypt(p.Credentials.Password)
			if err != nil {
				return nil, fmt.Errorf("registry: decrypt password for project %q: %w", p.Name, err)
			}
			p.Credentials.Password = pw
		}

		modules := make(map[string]ModuleEntry)
		for _, m := range p.Modules {
			if m.Name == "" {
				return nil, fmt.Errorf("registry: project %q: module with empty name", p.Name)
			}
			if _, dup := modules[m.Name]; dup {
				return nil, fmt.Errorf("registry: project %q: duplicate module %q", p.Name, m.Name)
			}

			entry := ModuleEntry{
				Path:     m.Path,
				Base:     m.Base,
				Host:     m.Host,
				User:     m.User,
				Password: p.Credentials.Password,
			}
			// Module-level host/user win over project credentials
			if entry.Host == "" {
				entry.Host = p.Credentials.Host
			}
			if entry.User == "" {
				entry.User = p.Credentials.User
			}

			if entry.Path == "" || entry.Base == "" {
				return nil, fmt.Errorf("registry: project %q module %q: path and base are required", p.Name, m.Name)
			}
			if entry.Host == "" {
				return nil, fmt.Errorf("registry: project %q module %q: no host configured", p.Name, m.Name)
			}
			modules[m.Name] = entry
		}
		reg.projects[p.Name] = modules
	}
	return reg, nil
}

// Lookup returns the entry for a (project, module) pair.
func (r *Registry) Lookup(project, module string) (ModuleEntry, error) {
	modules, ok := r.projects[project]
	if !ok {
		return ModuleEntry{}, fmt.Errorf("project %q: %w", project, ErrNotFound)
	}
	entry, ok := modules[module]
	if !ok {
		return ModuleEntry{}, fmt.Errorf("module %q: %w", module, ErrNotFound)
	}
	return entry, nil
}

// Projects returns all project names in sorted order.
func (r *Registry) Projects() []string {
	names := make([]string, 0, len(r.projects))
	for name := range r.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Modules returns the module names of a project in sorted order.
func (r *Registry) Modules(project string) ([]string, error) {
	modules, ok := r.projects[project]
	if !ok {
		return nil, fmt.Errorf("project %q: %w", project, ErrNotFound)
	}
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
