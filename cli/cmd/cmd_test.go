package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rawzeo/cli/config"
	"github.com/justapithecus/rawzeo/frame"
	"github.com/justapithecus/rawzeo/log"
	"github.com/justapithecus/rawzeo/metrics"
	"github.com/justapithecus/rawzeo/policy"
	"github.com/justapithecus/rawzeo/runtime"
	"github.com/justapithecus/rawzeo/zeo"
)

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	flags := ReadOnlyFlags()

	hasTUI := false
	for _, f := range flags {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestTUIReadOnlyFlags_IncludesTUI(t *testing.T) {
	flags := TUIReadOnlyFlags()

	hasTUI := false
	for _, f := range flags {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("TUIReadOnlyFlags should include --tui flag")
	}
}

func TestConcatFlags_NoDuplicateNames(t *testing.T) {
	for _, cmd := range []*cli.Command{DecodeCommand(), StatsCommand(), FramesCommand(), CaptureCommand()} {
		seen := make(map[string]bool)
		for _, f := range cmd.Flags {
			for _, name := range f.Names() {
				if seen[name] {
					t.Errorf("%s: duplicate flag %q", cmd.Name, name)
				}
				seen[name] = true
			}
		}
	}
}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{"single", []string{"Authorization=Bearer x"}, map[string]string{"Authorization": "Bearer x"}, false},
		{"trimmed", []string{" X-Device = bedroom "}, map[string]string{"X-Device": "bedroom"}, false},
		{"value with equals", []string{"X-Q=a=b"}, map[string]string{"X-Q": "a=b"}, false},
		{"empty value", []string{"X-Empty="}, map[string]string{"X-Empty": ""}, false},
		{"missing equals", []string{"Authorization"}, nil, true},
		{"empty key", []string{"=value"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHeaders(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHeaders() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseHeaders() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("header %q = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

// runFlags parses args against flags and returns the action's context.
func runFlags(t *testing.T, flags []cli.Flag, args ...string) *cli.Context {
	t.Helper()
	var captured *cli.Context
	app := &cli.App{
		Name:           "test",
		Flags:          flags,
		Writer:         io.Discard,
		ErrWriter:      io.Discard,
		ExitErrHandler: func(*cli.Context, error) {},
		Action: func(c *cli.Context) error {
			captured = c
			return nil
		},
	}
	if err := app.Run(append([]string{"test"}, args...)); err != nil {
		t.Fatalf("app.Run failed: %v", err)
	}
	return captured
}

func TestApplyFlags_OverlaysOnlySetFlags(t *testing.T) {
	flags := concatFlags(sessionFlags(), sourceFlags(), decoderFlags(), storageFlags(), policyFlags(), forwardFlags())
	c := runFlags(t, flags,
		"--profile", "synthetic",
		"--capacity", "2048",
		"--kinds", "eeg_sample,sleep_stage",
		"--policy", "streaming",
		"--flush-interval", "250ms",
		"--forward", "webhook",
		"--forward-url", "http://example.invalid/hook",
		"--forward-header", "X-Device=bedroom",
		"--forward-retries", "0",
		"a.bin", "b.bin",
	)

	cfg := &config.Config{}
	cfg.Transport.Baud = 9600
	cfg.Forward.Headers = map[string]string{"Authorization": "Bearer x"}
	if err := applyFlags(c, cfg); err != nil {
		t.Fatalf("applyFlags failed: %v", err)
	}

	if cfg.Transport.Baud != 9600 {
		t.Errorf("Baud = %d, want config value 9600 kept", cfg.Transport.Baud)
	}
	if got := strings.Join(cfg.Transport.Replay, ","); got != "a.bin,b.bin" {
		t.Errorf("Replay = %q, want a.bin,b.bin", got)
	}
	if cfg.Decoder.Profile != "synthetic" || cfg.Decoder.Capacity != 2048 {
		t.Errorf("Decoder = %+v", cfg.Decoder)
	}
	if got := strings.Join(cfg.Output.Kinds, ","); got != "eeg_sample,sleep_stage" {
		t.Errorf("Kinds = %q", got)
	}
	if cfg.Policy.Name != "streaming" || cfg.Policy.FlushInterval.Duration != 250*time.Millisecond {
		t.Errorf("Policy = %+v", cfg.Policy)
	}
	if cfg.Forward.Retries == nil || *cfg.Forward.Retries != 0 {
		t.Errorf("Retries = %v, want explicit 0", cfg.Forward.Retries)
	}
	if cfg.Forward.Headers["Authorization"] != "Bearer x" || cfg.Forward.Headers["X-Device"] != "bedroom" {
		t.Errorf("Headers = %v, want config and flag headers merged", cfg.Forward.Headers)
	}
}

func TestApplyFlags_InvalidHeader(t *testing.T) {
	c := runFlags(t, forwardFlags(), "--forward-header", "broken")
	if err := applyFlags(c, &config.Config{}); err == nil {
		t.Error("applyFlags() with malformed header succeeded")
	}
}

func TestLoadConfig_FileThenFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rawzeo.yaml")
	body := "transport:\n  baud: 19200\ndecoder:\n  profile: zeo\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	c := runFlags(t, concatFlags(sessionFlags(), sourceFlags(), decoderFlags()), "--config", path, "--profile", "synthetic")
	cfg, err := loadConfig(c)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Transport.Baud != 19200 {
		t.Errorf("Baud = %d, want 19200 from file", cfg.Transport.Baud)
	}
	if cfg.Decoder.Profile != "synthetic" {
		t.Errorf("Profile = %q, want flag value synthetic", cfg.Decoder.Profile)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	c := runFlags(t, sessionFlags(), "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := loadConfig(c); err == nil {
		t.Error("loadConfig() with missing --config succeeded")
	}
}

func TestBuildPolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  string
		pc      config.PolicyConfig
		wantErr bool
	}{
		{"strict", policyStrict, config.PolicyConfig{}, false},
		{"streaming defaults interval", policyStreaming, config.PolicyConfig{}, false},
		{"streaming count", policyStreaming, config.PolicyConfig{FlushCount: 10}, false},
		{"buffered", policyBuffered, config.PolicyConfig{BufferRecords: 64}, false},
		{"unknown", "lossy", config.PolicyConfig{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pol, err := buildPolicy(tt.policy, policy.NewStubSink(), tt.pc, log.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if pol != nil {
				if err := pol.Close(); err != nil {
					t.Errorf("Close() = %v", err)
				}
			}
		})
	}
}

func TestNewAdapter_Errors(t *testing.T) {
	tests := []struct {
		name string
		fc   config.ForwardConfig
		want error
	}{
		{"missing url", config.ForwardConfig{Type: "webhook"}, errNoForwardURL},
		{"unknown type", config.ForwardConfig{Type: "kafka", URL: "kafka://x"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := newAdapter(tt.fc, "s-1")
			if err == nil {
				_ = a.Close()
				t.Fatal("newAdapter() succeeded, want error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("newAdapter() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStorageBackend_Default(t *testing.T) {
	if got := storageBackend(config.StorageConfig{}); got != "fs" {
		t.Errorf("storageBackend() = %q, want fs", got)
	}
	if got := storageBackend(config.StorageConfig{Backend: "s3"}); got != "s3" {
		t.Errorf("storageBackend() = %q, want s3", got)
	}
}

// --- End-to-end through the app ---

func newTestApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:           "rawzeo",
		Writer:         out,
		ErrWriter:      io.Discard,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			DecodeCommand(),
			CaptureCommand(),
			StatsCommand(),
			FramesCommand(),
			InspectCommand(),
			ListCommand(),
			VersionCommand("test"),
		},
	}
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newTestApp(&out).Run(append([]string{"rawzeo"}, args...))
	return out.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func syntheticFrame(t *testing.T, tag uint8, payload []byte) []byte {
	t.Helper()
	b, err := frame.Encode(zeo.SyntheticLayout(), frame.Header{Version: 1, Tag: tag}, payload)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return b
}

// writeReplay writes three eeg_sample frames around line noise and a frame
// with a broken checksum.
func writeReplay(t *testing.T, dir string) string {
	t.Helper()
	bad := syntheticFrame(t, 0x02, []byte{0x00, 0x09})
	bad[len(bad)-1] ^= 0xFF

	data := bytes.Join([][]byte{
		{0x00, 0x13},
		syntheticFrame(t, 0x02, []byte{0x12, 0x34}),
		bad,
		syntheticFrame(t, 0x02, []byte{0x00, 0x01}),
		syntheticFrame(t, 0x02, []byte{0xFF, 0xFF}),
	}, nil)

	path := filepath.Join(dir, "night.bin")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func jsonLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var lines []map[string]any
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", sc.Text(), err)
		}
		lines = append(lines, m)
	}
	return lines
}

func TestDecode_NoSource(t *testing.T) {
	_, err := runApp(t, "decode", "--profile", "synthetic", "--log-level", "error")
	if got := exitCode(err); got != runtime.ExitCodeConfigError {
		t.Errorf("exit code = %d, want %d (%v)", got, runtime.ExitCodeConfigError, err)
	}
}

func TestDecode_UnknownProfile(t *testing.T) {
	replay := writeReplay(t, t.TempDir())
	_, err := runApp(t, "decode", "--profile", "nope", "--log-level", "error", replay)
	if got := exitCode(err); got != runtime.ExitCodeConfigError {
		t.Errorf("exit code = %d, want %d (%v)", got, runtime.ExitCodeConfigError, err)
	}
}

func TestDecode_MissingReplay(t *testing.T) {
	_, err := runApp(t, "decode", "--profile", "synthetic", "--log-level", "error", filepath.Join(t.TempDir(), "missing.bin"))
	if got := exitCode(err); got != runtime.ExitCodeTransportError {
		t.Errorf("exit code = %d, want %d (%v)", got, runtime.ExitCodeTransportError, err)
	}
}

func TestDecode_JSONLines(t *testing.T) {
	dir := t.TempDir()
	replay := writeReplay(t, dir)
	report := filepath.Join(dir, "report.json")

	out, err := runApp(t, "decode", "--profile", "synthetic", "--format", "json", "--log-level", "error", "--report", report, replay)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	lines := jsonLines(t, out)
	if len(lines) != 3 {
		t.Fatalf("decoded %d records, want 3:\n%s", len(lines), out)
	}
	for i, l := range lines {
		if l["kind"] != "eeg_sample" {
			t.Errorf("line %d kind = %v, want eeg_sample", i, l["kind"])
		}
	}
	// Two bytes of noise precede the first frame.
	if off, _ := lines[0]["offset"].(float64); off != 2 {
		t.Errorf("first offset = %v, want 2", lines[0]["offset"])
	}

	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(data), "synthetic") {
		t.Errorf("report does not name the profile: %s", data)
	}
}

func TestDecode_KindsFilter(t *testing.T) {
	replay := writeReplay(t, t.TempDir())
	out, err := runApp(t, "decode", "--profile", "synthetic", "--format", "json", "--log-level", "error", "--kinds", "sleep_stage", replay)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if lines := jsonLines(t, out); len(lines) != 0 {
		t.Errorf("kinds filter let through %d records", len(lines))
	}
}

func TestDecode_Quiet(t *testing.T) {
	replay := writeReplay(t, t.TempDir())
	out, err := runApp(t, "decode", "--profile", "synthetic", "--quiet", "--log-level", "error", replay)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out != "" {
		t.Errorf("--quiet wrote output: %q", out)
	}
}

func TestDecode_StoreThenInspect(t *testing.T) {
	dir := t.TempDir()
	replay := writeReplay(t, dir)
	store := filepath.Join(dir, "store")

	if _, err := runApp(t, "decode", "--profile", "synthetic", "--quiet", "--log-level", "error",
		"--storage-path", store, "--session-id", "night-1", replay); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	out, err := runApp(t, "inspect", "records", "--storage-path", store, "--session-id", "night-1", "--format", "json")
	if err != nil {
		t.Fatalf("inspect records failed: %v", err)
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(records) != 3 {
		t.Fatalf("stored %d records, want 3", len(records))
	}
	if records[0]["kind"] != "eeg_sample" {
		t.Errorf("kind = %v, want eeg_sample", records[0]["kind"])
	}

	out, err = runApp(t, "inspect", "records", "--storage-path", store, "--limit", "1", "--format", "json")
	if err != nil {
		t.Fatalf("inspect records --limit failed: %v", err)
	}
	records = nil
	if err := json.Unmarshal([]byte(out), &records); err != nil || len(records) != 1 {
		t.Errorf("--limit 1 returned %d records (%v)", len(records), err)
	}

	out, err = runApp(t, "inspect", "metrics", "--storage-path", store, "--session-id", "night-1", "--format", "json")
	if err != nil {
		t.Fatalf("inspect metrics failed: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if m["session_id"] != "night-1" {
		t.Errorf("session_id = %v, want night-1", m["session_id"])
	}
	if got, _ := m["frames_accepted"].(float64); got != 3 {
		t.Errorf("frames_accepted = %v, want 3", m["frames_accepted"])
	}
}

func TestInspect_RequiresStoragePath(t *testing.T) {
	_, err := runApp(t, "inspect", "records", "--format", "json")
	if got := exitCode(err); got != runtime.ExitCodeConfigError {
		t.Errorf("exit code = %d, want %d (%v)", got, runtime.ExitCodeConfigError, err)
	}
}

func TestInspectMetrics_NoneStored(t *testing.T) {
	_, err := runApp(t, "inspect", "metrics", "--storage-path", t.TempDir(), "--format", "json")
	if got := exitCode(err); got != 1 {
		t.Errorf("exit code = %d, want 1 (%v)", got, err)
	}
}

func TestFrames_Lines(t *testing.T) {
	replay := writeReplay(t, t.TempDir())
	out, err := runApp(t, "frames", "--profile", "synthetic", "--log-level", "error", replay)
	if err != nil {
		t.Fatalf("frames failed: %v", err)
	}

	var frames, rejects int
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			t.Fatalf("short line %q", line)
		}
		switch fields[1] {
		case "frame":
			frames++
		case "reject":
			rejects++
			if fields[2] != "checksum" {
				t.Errorf("reject reason = %q, want checksum", fields[2])
			}
		}
	}
	if frames != 3 || rejects != 1 {
		t.Errorf("frames = %d, rejects = %d, want 3 and 1:\n%s", frames, rejects, out)
	}
	if !strings.Contains(out, "magnitude=4660") {
		t.Errorf("frame line missing decoded value:\n%s", out)
	}
}

func TestFrames_RejectionsOnly(t *testing.T) {
	replay := writeReplay(t, t.TempDir())
	out, err := runApp(t, "frames", "--profile", "synthetic", "--log-level", "error", "--rejections-only", replay)
	if err != nil {
		t.Fatalf("frames failed: %v", err)
	}
	if strings.Contains(out, " frame ") || !strings.Contains(out, "reject") {
		t.Errorf("--rejections-only output:\n%s", out)
	}
}

func TestStats_JSON(t *testing.T) {
	replay := writeReplay(t, t.TempDir())
	out, err := runApp(t, "stats", "--profile", "synthetic", "--format", "json", replay)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	var snap metrics.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if snap.FramesAccepted != 3 || snap.FramesRejected != 1 {
		t.Errorf("accepted/rejected = %d/%d, want 3/1", snap.FramesAccepted, snap.FramesRejected)
	}
	if snap.RejectedByReason["checksum"] != 1 {
		t.Errorf("RejectedByReason = %v", snap.RejectedByReason)
	}
	if snap.RecordsByKind["eeg_sample"] != 3 {
		t.Errorf("RecordsByKind = %v", snap.RecordsByKind)
	}
	if snap.Profile != "synthetic" {
		t.Errorf("Profile = %q", snap.Profile)
	}
}

func TestCapture_ConcatenatesReplays(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	if err := os.WriteFile(a, []byte{1, 2, 3}, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte{4, 5}, 0o600); err != nil {
		t.Fatal(err)
	}
	merged := filepath.Join(dir, "merged.bin")
	store := filepath.Join(dir, "store")

	out, err := runApp(t, "capture", "--out", merged, "--storage-path", store, "--session-id", "cap-1", "--format", "json", a, b)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	data, err := os.ReadFile(merged)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("merged = % X, want 01 02 03 04 05", data)
	}

	var resp CaptureResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if resp.Bytes != 5 {
		t.Errorf("Bytes = %d, want 5", resp.Bytes)
	}
	if !strings.Contains(resp.StoredAt, "merged.bin") {
		t.Errorf("StoredAt = %q, want a path ending in merged.bin", resp.StoredAt)
	}
}

func TestCapture_TUIRejected(t *testing.T) {
	_, err := runApp(t, "capture", "--out", filepath.Join(t.TempDir(), "x.bin"), "--tui")
	if got := exitCode(err); got != 1 {
		t.Errorf("exit code = %d, want 1 (%v)", got, err)
	}
}

func TestListProfiles(t *testing.T) {
	out, err := runApp(t, "list", "profiles", "--format", "json")
	if err != nil {
		t.Fatalf("list profiles failed: %v", err)
	}
	var profiles []ProfileSummary
	if err := json.Unmarshal([]byte(out), &profiles); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	if got := strings.Join(names, ","); got != "synthetic,zeo" {
		t.Errorf("profiles = %q, want synthetic,zeo", got)
	}
	if profiles[0].Marker != "AA" || profiles[0].MaxPayload != 512 {
		t.Errorf("synthetic = %+v", profiles[0])
	}
}

func TestListTags(t *testing.T) {
	out, err := runApp(t, "list", "tags", "--profile", "synthetic", "--format", "json")
	if err != nil {
		t.Fatalf("list tags failed: %v", err)
	}
	var tags []TagBinding
	if err := json.Unmarshal([]byte(out), &tags); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(tags) != len(zeo.SyntheticTags()) {
		t.Fatalf("tags = %d, want %d", len(tags), len(zeo.SyntheticTags()))
	}
	if tags[0].Tag != "0x01" || tags[1].Kind != "eeg_sample" {
		t.Errorf("first tags = %+v, %+v", tags[0], tags[1])
	}
}

func TestListTags_UnknownProfile(t *testing.T) {
	_, err := runApp(t, "list", "tags", "--profile", "nope", "--format", "json")
	if got := exitCode(err); got != runtime.ExitCodeConfigError {
		t.Errorf("exit code = %d, want %d", got, runtime.ExitCodeConfigError)
	}
}

func TestVersion(t *testing.T) {
	out, err := runApp(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var resp VersionResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if resp.Commit != "test" || resp.Version == "" || len(resp.Profiles) != 2 {
		t.Errorf("version = %+v", resp)
	}
}
