package config

import (
	_ "embed"
	"fmt"
	"net"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	LogsDirName       = "session_logs"
)

type Configuration struct {
	configFs afero.Fs

	BindAddress string `json:"bind_address" validate:"required,ip"`
	Port        int    `json:"port" validate:"gte=0,lte=65535"`

	Threaded       bool `json:"threaded"`
	MaxConnections int  `json:"max_connections" validate:"gte=0"`

	MaxPipeline          int   `json:"max_pipeline" validate:"gte=1,lte=256"`
	MaxRequestBytes      int   `json:"max_request_bytes" validate:"gte=64"`
	OutputBytesPerSecond int64 `json:"output_bytes_per_second" validate:"gte=0"`

	RecordSessions bool `json:"record_sessions"`

	LogLevel  string `json:"log_level" validate:"oneof=trace debug info warn error disabled"`
	LogFormat string `json:"log_format" validate:"oneof=console json"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

// Addr is the host:port the server listens on.
func (c *Configuration) Addr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		// Configurations not loaded from disk have nowhere to write.
		return afero.NewReadOnlyFs(afero.NewMemMapFs())
	}
	return c.configFs
}

// CreateSessionLog creates a session transcript with the given name.
func (c *Configuration) CreateSessionLog(name string) (afero.File, error) {
	if strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid session log name %q", name)
	}
	toCreate := filepath.Join(LogsDirName, name)
	return c.fs().Create(toCreate)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
