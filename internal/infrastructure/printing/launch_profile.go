package printing

import (
	"os"
	"strings"
)

// Runtime environments for the headless browser
const (
	EnvironmentAuto        = "auto"
	EnvironmentManaged     = "managed"
	EnvironmentInteractive = "interactive"
)

// DefaultManagedExecPath is where sandboxed images install Chromium
const DefaultManagedExecPath = "/usr/bin/chromium"

// serverlessMarkers are environment variables set by managed runtimes
var serverlessMarkers = []string{
	"AWS_LAMBDA_FUNCTION_NAME",
	"VERCEL",
	"K_SERVICE",
}

// LaunchProfile describes how the browser process is started.
// It is selected once at start-up and never inspected per request.
type LaunchProfile struct {
	// Name is the environment the profile was selected for
	Name string
	// ExecPath is the browser binary; empty means chromedp's default lookup
	ExecPath string
	// RemoteURL connects to an already running browser instead of launching one
	RemoteURL     string
	Headless      bool
	NoSandbox     bool
	SingleProcess bool
	// Flags are extra command line switches, without the leading dashes
	Flags map[string]interface{}
}

// LaunchOptions are the configured inputs to profile selection
type LaunchOptions struct {
	Environment string
	ExecPath    string
	RemoteURL   string
	Flags       []string
}

// SelectLaunchProfile picks the launch profile for the current host.
// lookupEnv is os.LookupEnv outside of tests.
func SelectLaunchProfile(opts LaunchOptions, lookupEnv func(string) (string, bool)) LaunchProfile {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	env := strings.ToLower(strings.TrimSpace(opts.Environment))
	if env == "" || env == EnvironmentAuto {
		env = EnvironmentInteractive
		for _, marker := range serverlessMarkers {
			if v, ok := lookupEnv(marker); ok && v != "" {
				env = EnvironmentManaged
				break
			}
		}
	}

	var profile LaunchProfile
	switch env {
	case EnvironmentManaged:
		profile = LaunchProfile{
			Name:          EnvironmentManaged,
			ExecPath:      DefaultManagedExecPath,
			Headless:      true,
			NoSandbox:     true,
			SingleProcess: true,
			Flags: map[string]interface{}{
				"no-zygote":             true,
				"disable-dev-shm-usage": true,
				"disable-gpu":           true,
			},
		}
	default:
		profile = LaunchProfile{
			Name:     EnvironmentInteractive,
			Headless: true,
			Flags: map[string]interface{}{
				"disable-gpu": true,
			},
		}
	}

	if opts.ExecPath != "" {
		profile.ExecPath = opts.ExecPath
	}
	profile.RemoteURL = opts.RemoteURL
	for _, raw := range opts.Flags {
		name, value := parseFlag(raw)
		if name != "" {
			profile.Flags[name] = value
		}
	}
	return profile
}

// parseFlag turns "--name=value" or "name" into a chromedp flag
func parseFlag(raw string) (string, interface{}) {
	raw = strings.TrimLeft(strings.TrimSpace(raw), "-")
	if raw == "" {
		return "", nil
	}
	name, value, found := strings.Cut(raw, "=")
	if !found {
		return name, true
	}
	return name, value
}
