package config

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("RAWZEO_TEST_PORT", "/dev/ttyUSB0")
	t.Setenv("RAWZEO_TEST_BUCKET", "nightly")
	t.Setenv("RAWZEO_TEST_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "port: ${RAWZEO_TEST_PORT}", "port: /dev/ttyUSB0"},
		{"unset", "port: ${RAWZEO_TEST_UNSET}", "port: "},
		{"default when unset", "baud: ${RAWZEO_TEST_UNSET:-38400}", "baud: 38400"},
		{"default when empty", "baud: ${RAWZEO_TEST_EMPTY:-38400}", "baud: 38400"},
		{"default ignored when set", "port: ${RAWZEO_TEST_PORT:-/dev/null}", "port: /dev/ttyUSB0"},
		{"required and set", "path: ${RAWZEO_TEST_BUCKET:?bucket}/zeo", "path: nightly/zeo"},
		{"several", "${RAWZEO_TEST_BUCKET}:${RAWZEO_TEST_PORT}", "nightly:/dev/ttyUSB0"},
		{"no references", "decoder:\n  profile: zeo", "decoder:\n  profile: zeo"},
		{"bare dollar kept", "price: $5", "price: $5"},
		{"nested yaml", "storage:\n  backend: s3\n  path: ${RAWZEO_TEST_BUCKET}/captures", "storage:\n  backend: s3\n  path: nightly/captures"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnv(tt.input)
			if err != nil {
				t.Fatalf("ExpandEnv() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandEnv_RequiredMissing(t *testing.T) {
	t.Setenv("RAWZEO_TEST_EMPTY", "")

	_, err := ExpandEnv("url: ${RAWZEO_TEST_HOOK:?webhook URL}\ntoken: ${RAWZEO_TEST_EMPTY:?}")
	if !errors.Is(err, ErrRequiredEnv) {
		t.Fatalf("ExpandEnv() error = %v, want ErrRequiredEnv", err)
	}
	for _, want := range []string{"RAWZEO_TEST_HOOK (webhook URL)", "RAWZEO_TEST_EMPTY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}
