package printing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func envOf(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestSelectLaunchProfile_Auto(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected string
	}{
		{"developer machine", map[string]string{}, EnvironmentInteractive},
		{"aws lambda", map[string]string{"AWS_LAMBDA_FUNCTION_NAME": "invoice"}, EnvironmentManaged},
		{"vercel", map[string]string{"VERCEL": "1"}, EnvironmentManaged},
		{"cloud run", map[string]string{"K_SERVICE": "invoice-api"}, EnvironmentManaged},
		{"empty marker is ignored", map[string]string{"VERCEL": ""}, EnvironmentInteractive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := SelectLaunchProfile(LaunchOptions{Environment: EnvironmentAuto}, envOf(tt.env))
			assert.Equal(t, tt.expected, profile.Name)
			assert.True(t, profile.Headless)
		})
	}
}

func TestSelectLaunchProfile_Managed(t *testing.T) {
	profile := SelectLaunchProfile(LaunchOptions{Environment: "MANAGED"}, envOf(nil))

	assert.Equal(t, EnvironmentManaged, profile.Name)
	assert.Equal(t, DefaultManagedExecPath, profile.ExecPath)
	assert.True(t, profile.NoSandbox)
	assert.True(t, profile.SingleProcess)
	assert.Equal(t, true, profile.Flags["no-zygote"])
	assert.Equal(t, true, profile.Flags["disable-dev-shm-usage"])
}

func TestSelectLaunchProfile_Interactive(t *testing.T) {
	// An explicit environment wins over serverless markers
	profile := SelectLaunchProfile(LaunchOptions{Environment: EnvironmentInteractive},
		envOf(map[string]string{"AWS_LAMBDA_FUNCTION_NAME": "invoice"}))

	assert.Equal(t, EnvironmentInteractive, profile.Name)
	assert.Empty(t, profile.ExecPath)
	assert.False(t, profile.NoSandbox)
	assert.False(t, profile.SingleProcess)
}

func TestSelectLaunchProfile_Overrides(t *testing.T) {
	profile := SelectLaunchProfile(LaunchOptions{
		Environment: EnvironmentManaged,
		ExecPath:    "/opt/chrome/headless-shell",
		RemoteURL:   "ws://chrome:9222",
		Flags:       []string{"--lang=en-US", "hide-scrollbars", "  ", "--"},
	}, envOf(nil))

	assert.Equal(t, "/opt/chrome/headless-shell", profile.ExecPath)
	assert.Equal(t, "ws://chrome:9222", profile.RemoteURL)
	assert.Equal(t, "en-US", profile.Flags["lang"])
	assert.Equal(t, true, profile.Flags["hide-scrollbars"])
	assert.NotContains(t, profile.Flags, "")
}
