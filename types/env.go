package types

// RuntimeEnv describes the environment a job runs in.
// WorkingDir is either a package URI (scheme://...) or, before submission,
// a local directory that the client packages and uploads.
type RuntimeEnv struct {
	WorkingDir string            `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
	EnvVars    map[string]string `json:"env_vars,omitempty" yaml:"env_vars,omitempty"`
	PyModules  []string          `json:"py_modules,omitempty" yaml:"py_modules,omitempty"`
	Config     *RuntimeEnvConfig `json:"config,omitempty" yaml:"config,omitempty"`
	Pip        *PackageSettings  `json:"pip,omitempty" yaml:"pip,omitempty"`
	UV         *PackageSettings  `json:"uv,omitempty" yaml:"uv,omitempty"`
}

// RuntimeEnvConfig tunes runtime environment setup.
type RuntimeEnvConfig struct {
	SetupTimeoutSeconds *uint32 `json:"setup_timeout_seconds,omitempty" yaml:"setup_timeout_seconds,omitempty"`
	EagerInstall        *bool   `json:"eager_install,omitempty" yaml:"eager_install,omitempty"`
}

// PackageSettings lists packages installed by pip or uv.
type PackageSettings struct {
	Packages []string `json:"packages" yaml:"packages"`
}

// SetEnvVar sets an environment variable, allocating the map on first use.
func (e *RuntimeEnv) SetEnvVar(name, value string) {
	if e.EnvVars == nil {
		e.EnvVars = make(map[string]string)
	}
	e.EnvVars[name] = value
}

// Clone returns a deep copy. A nil receiver yields nil.
func (e *RuntimeEnv) Clone() *RuntimeEnv {
	if e == nil {
		return nil
	}
	out := *e
	out.EnvVars = cloneStrings(e.EnvVars)
	if e.PyModules != nil {
		out.PyModules = append([]string(nil), e.PyModules...)
	}
	if e.Config != nil {
		cfg := *e.Config
		if e.Config.SetupTimeoutSeconds != nil {
			v := *e.Config.SetupTimeoutSeconds
			cfg.SetupTimeoutSeconds = &v
		}
		if e.Config.EagerInstall != nil {
			v := *e.Config.EagerInstall
			cfg.EagerInstall = &v
		}
		out.Config = &cfg
	}
	out.Pip = e.Pip.clone()
	out.UV = e.UV.clone()
	return &out
}

func (p *PackageSettings) clone() *PackageSettings {
	if p == nil {
		return nil
	}
	return &PackageSettings{Packages: append([]string(nil), p.Packages...)}
}
