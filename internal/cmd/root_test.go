package cmd

import (
	"errors"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
)

func TestSetVersionInfo(t *testing.T) {
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{
			name:      "set all values",
			version:   "1.0.0",
			commit:    "abc123",
			buildDate: "2026-01-15",
		},
		{
			name:      "set dev version",
			version:   "dev",
			commit:    "HEAD",
			buildDate: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)

			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, 0},
		{"plain error", errors.New("boom"), 1},
		{
			"exit error",
			exitError(foundry.ExitInvalidArgument, "Invalid configuration", errors.New("boom")),
			foundry.ExitInvalidArgument,
		},
		{
			"wrapped exit error keeps code",
			exitError(foundry.ExitFileWriteError, "Failed to publish snapshot", errors.New("disk full")),
			foundry.ExitFileWriteError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitErrorPreservesCause(t *testing.T) {
	cause := errors.New("underlying")
	err := exitError(foundry.ExitInvalidArgument, "Bad input", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Bad input")
}
