package config

// CLIConfig is the configuration for stockgate-cli.
type CLIConfig struct {
	// Output is the default output format: table, json or yaml.
	Output string `yaml:"output"`

	// Current names the profile used when --profile is not given.
	Current string `yaml:"current,omitempty"`

	Profiles map[string]Profile `yaml:"profiles,omitempty"`
}

// Profile is a saved stockgate-server endpoint.
type Profile struct {
	Server string `yaml:"server"`

	// APIKey is the "<key_id>:<secret>" credential sent as X-API-Key.
	// The file is written with mode 0600.
	APIKey string `yaml:"api_key,omitempty"`

	// CAFile verifies a server certificate signed by a private CA.
	CAFile string `yaml:"ca_file,omitempty"`
}

// DefaultServer is used when neither a flag nor a profile names a server.
const DefaultServer = "http://localhost:8080"

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Output:   "table",
		Profiles: make(map[string]Profile),
	}
}

// Profile returns the named profile, or the current one when name is empty.
// It reports false only for an explicitly named profile that does not
// exist; otherwise a missing profile yields the defaults.
func (c *CLIConfig) Profile(name string) (Profile, bool) {
	explicit := name != ""
	if !explicit {
		name = c.Current
	}
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{Server: DefaultServer}, !explicit
	}
	if p.Server == "" {
		p.Server = DefaultServer
	}
	return p, true
}
