package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownEnvironment is wrapped by every ConfigError returned from a lookup
var ErrUnknownEnvironment = errors.New("unknown environment")

// ConfigError reports an environment name that is missing or not configured.
// It is caused by the caller and maps to a 400 response.
type ConfigError struct {
	Name string
}

func (e *ConfigError) Error() string {
	if e.Name == "" {
		return "environment is required"
	}
	return fmt.Sprintf("invalid environment: %s", e.Name)
}

// Unwrap lets errors.Is match ErrUnknownEnvironment
func (e *ConfigError) Unwrap() error {
	return ErrUnknownEnvironment
}

// Environment is one upstream deployment target
type Environment struct {
	Name       string `yaml:"-" json:"name"`
	BaseURL    string `yaml:"base_url" json:"-"`
	Username   string `yaml:"username" json:"-"`
	Password   string `yaml:"password" json:"-"`
	BasicToken string `yaml:"basic_token" json:"-"` // pre-encoded user:password
	VerifySSL  *bool  `yaml:"verify_ssl" json:"-"`
}

// TLSVerify reports whether the upstream certificate must be verified.
// Verification is on unless the file explicitly disables it.
func (e *Environment) TLSVerify() bool {
	return e.VerifySSL == nil || *e.VerifySSL
}

// Validate checks a single environment definition
func (e *Environment) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("environment name is required")
	}
	if e.BaseURL == "" {
		return fmt.Errorf("environment %s: base_url is required", e.Name)
	}
	u, err := url.Parse(e.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("environment %s: base_url %q is not an absolute URL", e.Name, e.BaseURL)
	}
	if e.BasicToken == "" && e.Username == "" {
		return fmt.Errorf("environment %s: username or basic_token is required", e.Name)
	}
	return nil
}

// Environments is an immutable name -> Environment lookup table
type Environments struct {
	byName map[string]*Environment
	names  []string
}

// NewEnvironments builds a lookup table from validated definitions
func NewEnvironments(envs ...*Environment) (*Environments, error) {
	table := &Environments{byName: make(map[string]*Environment, len(envs))}
	for _, env := range envs {
		if env == nil {
			continue
		}
		if err := env.Validate(); err != nil {
			return nil, err
		}
		if _, dup := table.byName[env.Name]; dup {
			return nil, fmt.Errorf("environment %s defined twice", env.Name)
		}
		env.BaseURL = strings.TrimRight(env.BaseURL, "/")
		table.byName[env.Name] = env
		table.names = append(table.names, env.Name)
	}
	sort.Strings(table.names)
	return table, nil
}

// Lookup returns the named environment or a *ConfigError
func (e *Environments) Lookup(name string) (*Environment, error) {
	if e == nil || name == "" {
		return nil, &ConfigError{Name: name}
	}
	env, ok := e.byName[name]
	if !ok {
		return nil, &ConfigError{Name: name}
	}
	return env, nil
}

// Names returns the configured environment names in sorted order
func (e *Environments) Names() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Len returns the number of configured environments
func (e *Environments) Len() int {
	if e == nil {
		return 0
	}
	return len(e.names)
}

type environmentsFile struct {
	Environments map[string]*Environment `yaml:"environments"`
}

// envRef matches ${NAME}; any other $ is literal
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandRefs replaces ${NAME} references with process environment values
func expandRefs(value string) string {
	return envRef.ReplaceAllStringFunc(value, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
}

func (e *Environment) expand() {
	for _, field := range []*string{&e.BaseURL, &e.Username, &e.Password, &e.BasicToken} {
		*field = expandRefs(*field)
	}
}

// ParseEnvironments decodes the YAML environment document.
// ${VAR} references in string values are expanded from the process
// environment after decoding.
func ParseEnvironments(data []byte) (*Environments, error) {
	var doc environmentsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse environments: %w", err)
	}
	if len(doc.Environments) == 0 {
		return nil, fmt.Errorf("no environments defined")
	}

	envs := make([]*Environment, 0, len(doc.Environments))
	for name, env := range doc.Environments {
		if env == nil {
			return nil, fmt.Errorf("environment %s has no settings", name)
		}
		env.Name = name
		env.expand()
		envs = append(envs, env)
	}
	return NewEnvironments(envs...)
}

// LoadEnvironments reads and parses the environment file at path
func LoadEnvironments(path string) (*Environments, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read environments file: %w", err)
	}
	return ParseEnvironments(data)
}
