package config

const (
	defaultConfigPath     = "~/.config/confstack/config.toml"
	defaultConfigSubdir   = "config"
	defaultDescriptorName = "DirLocations.ini"
	defaultCacheBackend   = "file"
	defaultEntireName     = "entire"
	defaultSparseName     = "sparse"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultAPIBind        = "127.0.0.1:7491"

	envConfigPath = "CONFSTACK_CONFIG"
	envBaseDir    = "CONFSTACK_BASE_DIR"
	envLocalDir   = "CONFSTACK_LOCAL_DIR"
	envCacheDir   = "CONFSTACK_CACHE_DIR"
	envAPIToken   = "CONFSTACK_API_TOKEN"
)

// DefaultExtensions lists the configuration formats read by default, in
// preference order when two files share a stem.
var DefaultExtensions = []string{"ini", "yaml", "yml", "toml"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir(),
		},
		Files: Files{
			ConfigSubdir:   defaultConfigSubdir,
			DescriptorName: defaultDescriptorName,
			Extensions:     append([]string(nil), DefaultExtensions...),
		},
		Cache: Cache{
			Enabled:       true,
			Backend:       defaultCacheBackend,
			EntireName:    defaultEntireName,
			SparseName:    defaultSparseName,
			PersistSparse: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		API: API{
			Bind: defaultAPIBind,
		},
	}
}
