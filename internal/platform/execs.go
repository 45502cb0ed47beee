package platform

import "strings"

// ExecMapping maps a Windows-authored executable onto the binaries to use on
// other hosts. Empty fields fall back to Win32.
type ExecMapping struct {
	Win32   string `yaml:"win32"`
	Linux   string `yaml:"linux,omitempty"`
	Darwin  string `yaml:"darwin,omitempty"`
	Wine    string `yaml:"wine,omitempty"`
	Darwine string `yaml:"darwine,omitempty"`
}

// ResolveExecPath maps path for platform p. See Strategy.ResolveExecPath.
func ResolveExecPath(p Platform, path string, mappings []ExecMapping, native bool) (string, error) {
	s, err := ForPlatform(p)
	if err != nil {
		return "", err
	}
	return s.ResolveExecPath(path, mappings, native), nil
}

func resolvePOSIX(p Platform, path string, mappings []ExecMapping, native bool) string {
	// Batch files do not run under the compatibility layer; the shell script may not exist.
	if strings.HasSuffix(path, ".bat") {
		return strings.TrimSuffix(path, ".bat") + ".sh"
	}
	for _, m := range mappings {
		if m.Win32 != path {
			continue
		}
		var mapped string
		switch {
		case p == Linux && native:
			mapped = m.Linux
		case p == Linux:
			mapped = m.Wine
		case p == Darwin && native:
			mapped = m.Darwin
		case p == Darwin:
			mapped = m.Darwine
		}
		if mapped == "" {
			return m.Win32
		}
		return mapped
	}
	return path
}
