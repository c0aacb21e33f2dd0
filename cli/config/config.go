package config

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/justapithecus/rawzeo/frame"
	"github.com/justapithecus/rawzeo/record"
	"github.com/justapithecus/rawzeo/zeo"
)

// DefaultProfile is used when decoder.profile is empty.
const DefaultProfile = "zeo"

// Config represents a rawzeo.yaml or rawzeo.toml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Transport TransportConfig `yaml:"transport" toml:"transport"`
	Decoder   DecoderConfig   `yaml:"decoder" toml:"decoder"`
	Output    OutputConfig    `yaml:"output" toml:"output"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Policy    PolicyConfig    `yaml:"policy" toml:"policy"`
	Forward   ForwardConfig   `yaml:"forward" toml:"forward"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Log       LogConfig       `yaml:"log" toml:"log"`
}

// TransportConfig selects the byte source.
type TransportConfig struct {
	Port     string   `yaml:"port" toml:"port"`
	Baud     int      `yaml:"baud" toml:"baud"`
	Replay   []string `yaml:"replay" toml:"replay"`
	ReadSize int      `yaml:"read_size" toml:"read_size"`
}

// DecoderConfig selects a profile and optionally overrides its tables.
type DecoderConfig struct {
	Profile  string `yaml:"profile" toml:"profile"`
	Capacity int    `yaml:"capacity" toml:"capacity"`
	// Layout overrides individual fields of the profile layout.
	Layout *LayoutConfig `yaml:"layout,omitempty" toml:"layout,omitempty"`
	// Tags replaces the profile tag table when non-empty.
	Tags        []TagConfig `yaml:"tags,omitempty" toml:"tags,omitempty"`
	ScalarWidth int         `yaml:"scalar_width" toml:"scalar_width"`
}

// LayoutConfig mirrors frame.Layout in config form. Zero values keep the
// profile's setting.
type LayoutConfig struct {
	Marker       Bytes         `yaml:"marker" toml:"marker"`
	Header       []FieldConfig `yaml:"header" toml:"header"`
	Checksum     string        `yaml:"checksum" toml:"checksum"`
	Scope        string        `yaml:"scope" toml:"scope"`
	Endian       string        `yaml:"endian" toml:"endian"`
	LengthAdjust *int          `yaml:"length_adjust,omitempty" toml:"length_adjust,omitempty"`
	MaxPayload   int           `yaml:"max_payload" toml:"max_payload"`
	Versions     Bytes         `yaml:"versions" toml:"versions"`
}

// FieldConfig is one header field.
type FieldConfig struct {
	Field string `yaml:"field" toml:"field"`
	Width int    `yaml:"width" toml:"width"`
}

// TagConfig binds one wire tag to a record kind.
type TagConfig struct {
	Tag  Byte   `yaml:"tag" toml:"tag"`
	Kind string `yaml:"kind" toml:"kind"`
}

// OutputConfig holds record output defaults.
type OutputConfig struct {
	Format string   `yaml:"format" toml:"format"`
	Kinds  []string `yaml:"kinds" toml:"kinds"`
}

// StorageConfig holds Lode storage defaults.
type StorageConfig struct {
	Backend     string `yaml:"backend" toml:"backend"`
	Path        string `yaml:"path" toml:"path"`
	Dataset     string `yaml:"dataset" toml:"dataset"`
	Region      string `yaml:"region" toml:"region"`
	Endpoint    string `yaml:"endpoint" toml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style" toml:"s3_path_style"`
	Device      string `yaml:"device" toml:"device"`
	// Retries is the number of retries for transient write failures.
	Retries int `yaml:"retries" toml:"retries"`
}

// PolicyConfig holds ingestion policy defaults.
type PolicyConfig struct {
	Name          string   `yaml:"name" toml:"name"`
	FlushCount    int      `yaml:"flush_count" toml:"flush_count"`
	FlushInterval Duration `yaml:"flush_interval" toml:"flush_interval"`
	BufferRecords int      `yaml:"buffer_records" toml:"buffer_records"`
}

// ForwardConfig holds adapter defaults.
type ForwardConfig struct {
	Type     string            `yaml:"type" toml:"type"`
	URL      string            `yaml:"url" toml:"url"`
	Channel  string            `yaml:"channel,omitempty" toml:"channel,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty"`
	Timeout  Duration          `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Retries  *int              `yaml:"retries,omitempty" toml:"retries,omitempty"`
	Encoding string            `yaml:"encoding,omitempty" toml:"encoding,omitempty"`
}

// MetricsConfig holds the Prometheus listener address.
type MetricsConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// LogConfig holds the log level.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// Profile resolves decoder.profile and applies the layout, tag and scalar
// width overrides. The resulting layout is validated.
func (c *Config) Profile() (zeo.Profile, error) {
	name := c.Decoder.Profile
	if name == "" {
		name = DefaultProfile
	}
	p, err := zeo.Lookup(name)
	if err != nil {
		return zeo.Profile{}, err
	}

	if lc := c.Decoder.Layout; lc != nil {
		if p.Layout, err = lc.apply(p.Layout); err != nil {
			return zeo.Profile{}, err
		}
	}
	if err := p.Layout.Validate(); err != nil {
		return zeo.Profile{}, err
	}

	if len(c.Decoder.Tags) > 0 {
		tags, err := c.Tags()
		if err != nil {
			return zeo.Profile{}, err
		}
		p.Tags = tags
	}
	if c.Decoder.ScalarWidth != 0 {
		p.ScalarWidth = c.Decoder.ScalarWidth
	}
	return p, nil
}

// Layout returns the resolved frame layout.
func (c *Config) Layout() (frame.Layout, error) {
	p, err := c.Profile()
	if err != nil {
		return frame.Layout{}, err
	}
	return p.Layout, nil
}

// Tags converts decoder.tags into a tag table. Returns nil when no tags are
// configured.
func (c *Config) Tags() (map[uint8]record.Kind, error) {
	if len(c.Decoder.Tags) == 0 {
		return nil, nil
	}
	tags := make(map[uint8]record.Kind, len(c.Decoder.Tags))
	for _, tc := range c.Decoder.Tags {
		kind, err := record.ParseKind(tc.Kind)
		if err != nil {
			return nil, fmt.Errorf("decoder.tags: tag 0x%02X: %w", uint8(tc.Tag), err)
		}
		if _, dup := tags[uint8(tc.Tag)]; dup {
			return nil, fmt.Errorf("decoder.tags: tag 0x%02X listed twice", uint8(tc.Tag))
		}
		tags[uint8(tc.Tag)] = kind
	}
	return tags, nil
}

// Kinds parses output.kinds.
func (c *Config) Kinds() ([]record.Kind, error) {
	return ParseKinds(c.Output.Kinds)
}

// ParseKinds parses record kind names. Entries may be comma separated.
func ParseKinds(names []string) ([]record.Kind, error) {
	var kinds []record.Kind
	for _, entry := range names {
		for name := range strings.SplitSeq(entry, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			k, err := record.ParseKind(name)
			if err != nil {
				return nil, err
			}
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

func (lc *LayoutConfig) apply(l frame.Layout) (frame.Layout, error) {
	if lc.Marker != nil {
		l.Marker = []byte(lc.Marker)
	}
	if len(lc.Header) > 0 {
		header := make([]frame.Field, 0, len(lc.Header))
		for _, fc := range lc.Header {
			kind, err := frame.ParseFieldKind(fc.Field)
			if err != nil {
				return l, fmt.Errorf("decoder.layout.header: %w", err)
			}
			header = append(header, frame.Field{Kind: kind, Width: fc.Width})
		}
		l.Header = header
	}
	if lc.Checksum != "" {
		a, err := frame.ParseAlgorithm(lc.Checksum)
		if err != nil {
			return l, fmt.Errorf("decoder.layout.checksum: %w", err)
		}
		l.Checksum = a
	}
	if lc.Scope != "" {
		s, err := frame.ParseScope(lc.Scope)
		if err != nil {
			return l, fmt.Errorf("decoder.layout.scope: %w", err)
		}
		l.Scope = s
	}
	if lc.Endian != "" {
		e, err := frame.ParseEndian(lc.Endian)
		if err != nil {
			return l, fmt.Errorf("decoder.layout.endian: %w", err)
		}
		l.Endian = e
	}
	if lc.LengthAdjust != nil {
		l.LengthAdjust = *lc.LengthAdjust
	}
	if lc.MaxPayload > 0 {
		l.MaxPayload = lc.MaxPayload
	}
	if lc.Versions != nil {
		l.Versions = []uint8(lc.Versions)
	}
	return l, nil
}

// Clone returns a deep copy so flag overrides never touch the loaded
// config.
func (c *Config) Clone() *Config {
	out := *c
	out.Transport.Replay = append([]string(nil), c.Transport.Replay...)
	out.Output.Kinds = append([]string(nil), c.Output.Kinds...)
	out.Forward.Headers = maps.Clone(c.Forward.Headers)
	return &out
}

// Duration wraps time.Duration for string parsing (e.g. "10s", "5m").
// Bare numbers are seconds.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	return d.set(v)
}

// UnmarshalTOML parses a duration string or a number of seconds.
func (d *Duration) UnmarshalTOML(v any) error {
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return nil
		}
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", x, err)
		}
		d.Duration = parsed
	case int:
		d.Duration = time.Duration(x) * time.Second
	case int64:
		d.Duration = time.Duration(x) * time.Second
	case float64:
		d.Duration = time.Duration(x * float64(time.Second))
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// Byte is a single byte given as a number, "0x"-prefixed hex, or a
// one-character string.
type Byte uint8

// UnmarshalYAML accepts 170, 0xAA, "0xAA" or "A".
func (b *Byte) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	parsed, err := parseByte(v)
	if err != nil {
		return err
	}
	*b = Byte(parsed)
	return nil
}

// UnmarshalTOML accepts 170, 0xAA, "0xAA" or "A".
func (b *Byte) UnmarshalTOML(v any) error {
	parsed, err := parseByte(v)
	if err != nil {
		return err
	}
	*b = Byte(parsed)
	return nil
}

// Bytes is a byte sequence given as a list of Byte values, a "0x"-prefixed
// hex string, or a literal ASCII string.
type Bytes []byte

// UnmarshalYAML accepts [0x41, "4"], "0x4134" or "A4".
func (b *Bytes) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	return b.set(v)
}

// UnmarshalTOML accepts [0x41, "4"], "0x4134" or "A4".
func (b *Bytes) UnmarshalTOML(v any) error {
	return b.set(v)
}

func (b *Bytes) set(v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if hex, ok := strings.CutPrefix(strings.ToLower(x), "0x"); ok {
			if len(hex)%2 != 0 {
				return fmt.Errorf("invalid hex bytes %q: odd length", x)
			}
			out := make([]byte, 0, len(hex)/2)
			for i := 0; i < len(hex); i += 2 {
				n, err := strconv.ParseUint(hex[i:i+2], 16, 8)
				if err != nil {
					return fmt.Errorf("invalid hex bytes %q: %w", x, err)
				}
				out = append(out, byte(n))
			}
			*b = out
			return nil
		}
		*b = Bytes(x)
	case []any:
		out := make([]byte, 0, len(x))
		for _, item := range x {
			n, err := parseByte(item)
			if err != nil {
				return err
			}
			out = append(out, n)
		}
		*b = out
	default:
		n, err := parseByte(v)
		if err != nil {
			return err
		}
		*b = Bytes{n}
	}
	return nil
}

func parseByte(v any) (uint8, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case uint64:
		if x > 0xFF {
			return 0, fmt.Errorf("byte value %d out of range", x)
		}
		n = int64(x)
	case float64:
		if x != float64(int64(x)) {
			return 0, fmt.Errorf("byte value %v is not an integer", x)
		}
		n = int64(x)
	case string:
		s := strings.TrimSpace(x)
		if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
			parsed, err := strconv.ParseUint(hex, 16, 8)
			if err != nil {
				return 0, fmt.Errorf("invalid byte %q: %w", x, err)
			}
			return uint8(parsed), nil
		}
		if len(s) == 1 {
			return s[0], nil
		}
		return 0, fmt.Errorf("invalid byte %q", x)
	default:
		return 0, fmt.Errorf("invalid byte %v", v)
	}
	if n < 0 || n > 0xFF {
		return 0, fmt.Errorf("byte value %d out of range", n)
	}
	return uint8(n), nil
}
