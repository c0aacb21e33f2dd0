package types //nolint:revive // types is a valid package name

import (
	"regexp"
	"testing"
)

func TestVersion_Format(t *testing.T) {
	// Version should be a valid semver
	semverRegex := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	if !semverRegex.MatchString(Version) {
		t.Errorf("Version %q is not a valid semver", Version)
	}
}

func TestSessionOutcome_IsSuccess(t *testing.T) {
	tests := []struct {
		status OutcomeStatus
		want   bool
	}{
		{OutcomeCompleted, true},
		{OutcomeTransportError, false},
		{OutcomeSinkFailure, false},
		{OutcomeConfigError, false},
		{OutcomeCanceled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := (SessionOutcome{Status: tt.status}).IsSuccess(); got != tt.want {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.want)
			}
		})
	}
}
