package rabbitmq

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/israelio/rabbit-wire/internal/wait"
)

// Duration is a time.Duration that decodes from TOML strings like "10s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// config.toml key mapping to ConnectionFactory settings.
type fileConfig struct {
	URI               string   `toml:"uri"`
	Host              string   `toml:"host"`
	Port              int      `toml:"port"`
	VHost             string   `toml:"vhost"`
	Username          string   `toml:"username"`
	Password          string   `toml:"password"`
	Heartbeat         Duration `toml:"heartbeat"`
	ConnectionTimeout Duration `toml:"connection_timeout"`
	HandshakeTimeout  Duration `toml:"handshake_timeout"`
	ReadTimeout       Duration `toml:"read_timeout"`
	WriteTimeout      Duration `toml:"write_timeout"`
	CloseTimeout      Duration `toml:"close_timeout"`
	FrameMax          uint32   `toml:"frame_max"`
	ChannelMax        uint16   `toml:"channel_max"`
	WaitMode          string   `toml:"wait_mode"`
}

// LoadConfig reads a TOML file and overlays the keys it defines on the
// factory defaults. A "uri" key is applied first; explicit keys override it.
func LoadConfig(path string, opts ...FactoryOption) (*ConnectionFactory, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load client config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load client config: unknown key %q", undecoded[0].String())
	}

	cf := NewConnectionFactory(opts...)
	if meta.IsDefined("uri") {
		if err := cf.SetURI(strings.TrimSpace(raw.URI)); err != nil {
			return nil, fmt.Errorf("load client config: %w", err)
		}
	}
	if err := raw.apply(meta, cf); err != nil {
		return nil, fmt.Errorf("load client config: %w", err)
	}
	if err := cf.Validate(); err != nil {
		return nil, fmt.Errorf("load client config: %w", err)
	}
	return cf, nil
}

func (raw *fileConfig) apply(meta toml.MetaData, cf *ConnectionFactory) error {
	if meta.IsDefined("host") {
		cf.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cf.Port = raw.Port
	}
	if meta.IsDefined("vhost") {
		cf.VHost = raw.VHost
	}
	if meta.IsDefined("username") {
		cf.Username = raw.Username
	}
	if meta.IsDefined("password") {
		cf.Password = raw.Password
	}
	if meta.IsDefined("heartbeat") {
		cf.Heartbeat = raw.Heartbeat.Duration
	}
	if meta.IsDefined("connection_timeout") {
		cf.ConnectionTimeout = raw.ConnectionTimeout.Duration
	}
	if meta.IsDefined("handshake_timeout") {
		cf.HandshakeTimeout = raw.HandshakeTimeout.Duration
	}
	if meta.IsDefined("read_timeout") {
		cf.ReadTimeout = raw.ReadTimeout.Duration
	}
	if meta.IsDefined("write_timeout") {
		cf.WriteTimeout = raw.WriteTimeout.Duration
	}
	if meta.IsDefined("close_timeout") {
		cf.CloseTimeout = raw.CloseTimeout.Duration
	}
	if meta.IsDefined("frame_max") {
		cf.FrameMax = raw.FrameMax
	}
	if meta.IsDefined("channel_max") {
		cf.ChannelMax = raw.ChannelMax
	}
	if meta.IsDefined("wait_mode") {
		mode, err := wait.ParseMode(strings.TrimSpace(raw.WaitMode))
		if err != nil {
			return err
		}
		cf.WaitMode = mode
	}
	return nil
}
