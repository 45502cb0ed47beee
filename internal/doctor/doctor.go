// Package doctor checks whether a relic installation can launch titles.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/harshul/relic/internal/catalog"
	"github.com/harshul/relic/internal/platform"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// RuntimeStatus represents the status of the compatibility layer
type RuntimeStatus struct {
	Name      string
	Installed bool
	Required  bool
	Version   string
	Path      string
}

// HostStatus describes the machine relic runs on
type HostStatus struct {
	Hostname        string
	OS              string
	Platform        string
	PlatformVersion string
	KernelArch      string
}

// ResourceStats is a snapshot of the host's capacity
type ResourceStats struct {
	CPUs        int
	MemoryUsed  uint64
	MemoryTotal uint64
	MemPercent  float64
}

// Diagnosis contains the full health check results
type Diagnosis struct {
	Root      string
	Platform  platform.Platform
	Host      HostStatus
	Resources ResourceStats
	Runtime   RuntimeStatus
	Titles    int
	Mappings  int
	// Missing lists titles whose application binary does not exist
	Missing  []string
	Healthy  bool
	Issues   []string
	Warnings []string
}

// Options selects what Diagnose looks at
type Options struct {
	Root         string
	Platform     platform.Platform
	CatalogPath  string
	ExecMappings string
	// ResolvePath maps a catalog application path to the absolute binary
	// path. Without it application binaries are not checked.
	ResolvePath func(path string) string

	lookPath func(string) (string, error)
	version  func(ctx context.Context, path string) (string, error)
}

// Diagnose checks the installation described by opts
func Diagnose(ctx context.Context, opts Options) Diagnosis {
	if opts.Platform == "" {
		opts.Platform = platform.Current()
	}
	if opts.lookPath == nil {
		opts.lookPath = exec.LookPath
	}
	if opts.version == nil {
		opts.version = commandVersion
	}

	diagnosis := Diagnosis{
		Root:      opts.Root,
		Platform:  opts.Platform,
		Host:      hostStatus(ctx),
		Resources: resourceStats(ctx),
		Healthy:   true,
		Issues:    []string{},
	}

	if _, err := platform.ForPlatform(opts.Platform); err != nil {
		diagnosis.fail(fmt.Sprintf("%s is not a supported platform", opts.Platform))
		return diagnosis
	}

	if info, err := os.Stat(opts.Root); err != nil || !info.IsDir() {
		diagnosis.fail(fmt.Sprintf("Root directory %s does not exist", opts.Root))
	}

	diagnosis.Runtime = checkCompatLayer(ctx, opts)
	if diagnosis.Runtime.Required && !diagnosis.Runtime.Installed {
		diagnosis.fail(diagnosis.Runtime.Name + " is not installed; Windows titles cannot run")
	}

	mappings, err := catalog.ReadExecMappings(opts.ExecMappings)
	if err != nil {
		diagnosis.fail(fmt.Sprintf("Exec mappings are unreadable: %v", err))
	}
	diagnosis.Mappings = len(mappings)

	c, err := catalog.Read(opts.CatalogPath)
	if err != nil {
		diagnosis.fail(fmt.Sprintf("Catalog is unreadable: %v", err))
		return diagnosis
	}
	diagnosis.Titles = len(c.Titles)

	if opts.ResolvePath != nil {
		for _, e := range c.Titles {
			if e.Placeholder || strings.Contains(e.ApplicationPath, "://") {
				continue
			}
			if _, err := os.Stat(opts.ResolvePath(e.ApplicationPath)); err != nil {
				diagnosis.Missing = append(diagnosis.Missing, e.Name)
			}
		}
	}
	if len(diagnosis.Missing) > 0 {
		diagnosis.Warnings = append(diagnosis.Warnings,
			fmt.Sprintf("%d title(s) point at a missing application", len(diagnosis.Missing)))
	}

	return diagnosis
}

func (d *Diagnosis) fail(issue string) {
	d.Healthy = false
	d.Issues = append(d.Issues, issue)
}

// checkCompatLayer looks for the compatibility layer, preferring the copy
// bundled under the root.
func checkCompatLayer(ctx context.Context, opts Options) RuntimeStatus {
	status := RuntimeStatus{Name: platform.CompatLauncher, Required: opts.Platform.IsPOSIX()}
	if !status.Required {
		return status
	}

	bundled := filepath.Join(opts.Root, "Libraries", "wine", "bin", platform.CompatLauncher)
	if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
		status.Path = bundled
	} else if path, err := opts.lookPath(platform.CompatLauncher); err == nil {
		status.Path = path
	} else {
		return status
	}

	status.Installed = true
	if version, err := opts.version(ctx, status.Path); err == nil {
		status.Version = version
	}
	return status
}

func commandVersion(ctx context.Context, path string) (string, error) {
	output, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

func hostStatus(ctx context.Context) HostStatus {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostStatus{}
	}
	return HostStatus{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelArch:      info.KernelArch,
	}
}

func resourceStats(ctx context.Context) ResourceStats {
	var stats ResourceStats
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		stats.CPUs = n
	}
	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryUsed = memInfo.Used
		stats.MemoryTotal = memInfo.Total
		stats.MemPercent = memInfo.UsedPercent
	}
	return stats
}
