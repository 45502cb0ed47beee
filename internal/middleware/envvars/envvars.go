// Package envvars is a launch middleware that adds environment variables to
// the launched process.
//
// The middleware config is one of:
//
//	"KEY=value;OTHER=value"          inline list, ';' or newline separated
//	[KEY=value, OTHER=value]         list of assignments
//	{KEY: value, file: game.env}     map; "file" names an env file to read first
//
// Values may reference the launch environment as $NAME or ${NAME}.
package envvars

import (
	"bufio"
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/harshul/relic/internal/launcher"
)

// ID is the registry id of the middleware.
const ID = "envvars"

const fileKey = "file"

// Middleware adds environment variables to a launch.
type Middleware struct {
	// Root resolves relative env file paths.
	Root string
}

// New creates the middleware.
func New(root string) *Middleware {
	return &Middleware{Root: root}
}

// Execute applies config to info.Env.
func (m *Middleware) Execute(ctx context.Context, info launcher.LaunchInfo, config any) (launcher.LaunchInfo, error) {
	vars, file, err := Parse(config)
	if err != nil {
		return launcher.LaunchInfo{}, err
	}

	assign := make(map[string]string)
	if file != "" {
		if !filepath.IsAbs(file) {
			file = filepath.Join(m.Root, file)
		}
		fromFile, err := ReadEnvFile(file)
		if err != nil {
			return launcher.LaunchInfo{}, fmt.Errorf("failed to read env file: %w", err)
		}
		maps.Copy(assign, fromFile)
	}
	maps.Copy(assign, vars)

	if info.Env == nil {
		info.Env = make(map[string]string)
	}
	base := maps.Clone(info.Env)
	for _, k := range slices.Sorted(maps.Keys(assign)) {
		info.Env[k] = os.Expand(assign[k], func(name string) string { return base[name] })
	}
	return info, nil
}

// Parse interprets a middleware config. It returns the inline assignments
// and the env file to read, if any.
func Parse(config any) (map[string]string, string, error) {
	vars := make(map[string]string)
	switch c := config.(type) {
	case nil:
		return vars, "", nil
	case string:
		for _, line := range strings.FieldsFunc(c, func(r rune) bool { return r == ';' || r == '\n' }) {
			if err := parseAssignment(vars, line); err != nil {
				return nil, "", err
			}
		}
		return vars, "", nil
	case []any:
		for _, item := range c {
			s, ok := item.(string)
			if !ok {
				return nil, "", fmt.Errorf("invalid envvars entry %v", item)
			}
			if err := parseAssignment(vars, s); err != nil {
				return nil, "", err
			}
		}
		return vars, "", nil
	case []string:
		for _, s := range c {
			if err := parseAssignment(vars, s); err != nil {
				return nil, "", err
			}
		}
		return vars, "", nil
	case map[string]any:
		var file string
		for k, v := range c {
			if k == fileKey {
				s, ok := v.(string)
				if !ok {
					return nil, "", fmt.Errorf("invalid envvars file %v", v)
				}
				file = s
				continue
			}
			vars[k] = fmt.Sprint(v)
		}
		return vars, file, nil
	case map[string]string:
		file := c[fileKey]
		for k, v := range c {
			if k != fileKey {
				vars[k] = v
			}
		}
		return vars, file, nil
	default:
		return nil, "", fmt.Errorf("unsupported envvars config %T", config)
	}
}

func parseAssignment(vars map[string]string, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	key, value, ok := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("invalid assignment %q: expected KEY=value", line)
	}
	vars[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	return nil
}

// ReadEnvFile reads KEY=value lines from an env file. Comments and blank
// lines are skipped and surrounding quotes are removed. A missing file is
// an error.
func ReadEnvFile(envPath string) (map[string]string, error) {
	file, err := os.Open(envPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if ok {
			vars[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
		}
	}

	return vars, scanner.Err()
}

var _ launcher.Middleware = (*Middleware)(nil)
