package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/mesler1/dadcam/internal/config"
	"github.com/mesler1/dadcam/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCreatableDirectory passes when path is an accessible directory, or does
// not exist yet but its nearest existing ancestor is writable.
func CheckCreatableDirectory(name, path string) Result {
	if _, err := os.Stat(path); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return CheckDirectoryAccess(name, path)
	}
	parent := filepath.Dir(path)
	for {
		if _, err := os.Stat(parent); err == nil {
			break
		}
		next := filepath.Dir(parent)
		if next == parent {
			break
		}
		parent = next
	}
	if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, parent, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckSystemDeps evaluates the external programs the configuration calls for.
// Device tools are optional because directory runs do not need them.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Video.FFmpeg,
			Description: "Required to decode video frames",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Video.FFprobe,
			Description: "Required to inspect video streams",
		},
		{
			Name:        "udisksctl",
			Command:     cfg.Device.Udisksctl,
			Description: "Mounts cards for --device runs",
			Optional:    true,
		},
		{
			Name:        "blkid",
			Command:     cfg.Device.Blkid,
			Description: "Reads filesystem UUIDs for the whitelist",
			Optional:    true,
		},
		{
			Name:        "udevadm",
			Command:     cfg.Device.Udevadm,
			Description: "Reads hardware serials for the whitelist",
			Optional:    true,
		},
	}
	if cfg.Detection.Backend == config.BackendCommand {
		requirements = append(requirements, deps.Requirement{
			Name:        "Detector",
			Command:     cfg.Detection.Command,
			Description: "Detector worker for model " + cfg.Detection.Model,
		})
	}
	return deps.CheckBinaries(requirements)
}
