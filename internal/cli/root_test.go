package cli

import (
	"path/filepath"
	"testing"
)

func TestRunDispatch(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "version", args: []string{"version"}, want: 0},
		{name: "help", args: []string{"--help"}, want: 0},
		{name: "unknown", args: []string{"frobnicate"}, want: 2},
		{name: "resolve without token", args: []string{"resolve"}, want: 2},
		{name: "serve without credential", args: []string{"serve", "--uuid", ""}, want: 2},
	}

	clearEnvVarsForTest(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Run(tt.args); got != tt.want {
				t.Fatalf("Run(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

func TestResolveDirectTokenWithoutDirectoryLookup(t *testing.T) {
	clearEnvVarsForTest(t)
	dbPath := filepath.Join(t.TempDir(), "aliases.db")

	// sqlite directory keeps the command offline
	args := []string{"resolve", "--directory", "sqlite://", "--db", dbPath, "example.com-8443"}
	if got := Run(args); got != 0 {
		t.Fatalf("Run(%v) = %d, want 0", args, got)
	}
}
