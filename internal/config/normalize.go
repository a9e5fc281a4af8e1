package config

import (
	"os"
	"path/filepath"
	"strings"
)

// NormalizePlatform maps the accepted spellings of a platform name onto
// "dingtalk" or "feishu". Unknown values are returned lowercased so Validate
// can report them.
func NormalizePlatform(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch lower {
	case "dingding", "dd", "ding":
		return "dingtalk"
	case "lark":
		return "feishu"
	default:
		return lower
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// normalize fills defaults for zero values and resolves script paths
// relative to the config file's directory.
func (c *Config) normalize(baseDir string) {
	c.Platform = NormalizePlatform(c.Platform)
	c.Host.Mode = strings.ToLower(strings.TrimSpace(c.Host.Mode))
	if c.Host.Mode == "" {
		c.Host.Mode = HostScript
	}
	for i, s := range c.Host.Scripts {
		s = ExpandHome(s)
		if !filepath.IsAbs(s) {
			s = filepath.Join(baseDir, s)
		}
		c.Host.Scripts[i] = s
	}
	if c.Signature.TimeoutMs <= 0 {
		c.Signature.TimeoutMs = 30000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Telemetry.Protocol == "" {
		c.Telemetry.Protocol = "grpc"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "openplatform"
	}
}
