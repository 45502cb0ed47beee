package launcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/harshul/relic/internal/platform"
)

// RootEnv carries the launcher root into launched processes.
const RootEnv = "RELIC_ROOT"

// compatBinDir is where a bundled compatibility layer is installed, relative
// to the root.
var compatBinDir = filepath.Join("Libraries", "wine", "bin")

// Environment returns the environment for a launched process: the inherited
// environment plus the root, PATH override and, on POSIX hosts, the
// compatibility layer settings.
func (l *Launcher) Environment() map[string]string {
	env := make(map[string]string)
	for _, kv := range l.environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}

	env[RootEnv] = l.prefs.Root
	if l.prefs.EnvPath != "" {
		env["PATH"] = l.prefs.EnvPath
	}

	if l.platform.IsPOSIX() {
		env["WINEDEBUG"] = "fixme-all"
		if l.prefs.Proxy != "" {
			proxy := "http://" + l.prefs.Proxy + "/"
			env["http_proxy"] = proxy
			env["HTTP_PROXY"] = proxy
		}
		if l.prefs.Root != "" {
			bin := filepath.Join(l.prefs.Root, compatBinDir)
			if info, err := os.Stat(bin); err == nil && info.IsDir() {
				if env["PATH"] == "" {
					env["PATH"] = bin
				} else {
					env["PATH"] = bin + ":" + env["PATH"]
				}
			}
		}
	}
	return env
}

// browserEnvironment is Environment without the variables that would keep
// the browser runner from starting as a browser.
func (l *Launcher) browserEnvironment() map[string]string {
	env := l.Environment()
	strip := l.prefs.Browser.StripEnv
	if strip == nil {
		strip = DefaultStripEnv
	}
	for _, k := range strip {
		delete(env, k)
	}
	return env
}

func (l *Launcher) useCompatLayer(path string) bool {
	return l.platform != platform.Windows && strings.HasSuffix(path, ".exe")
}
