package config

import (
	_ "embed"
	"errors"
	"os"
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

	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

// ErrNoEventLog is returned when the event log is requested but disabled.
var ErrNoEventLog = errors.New("event log disabled")

type Configuration struct {
	configFs afero.Fs

	Prompt        string `json:"prompt"`
	Color         string `json:"color" validate:"oneof=always auto never"`
	MaxLineLength int    `json:"max_line_length" validate:"gte=1,lte=1048576"`
	MaxArgs       int    `json:"max_args" validate:"gte=1,lte=65536"`
	RedirectPerm  string `json:"redirect_perm" validate:"required,fileperm"`
	NullDevice    string `json:"null_device" validate:"required"`
	EventLog      string `json:"event_log" validate:"omitempty,excludes=/"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})
	if err := validate.RegisterValidation("fileperm", validateFilePerm); err != nil {
		return err
	}

	return validate.Struct(c)
}

// validateFilePerm accepts octal permission strings like "0640".
func validateFilePerm(fl validator.FieldLevel) bool {
	perm, err := strconv.ParseUint(fl.Field().String(), 8, 32)
	return err == nil && perm <= 0777
}

// FileMode returns the permissions for files created by output redirection.
func (c *Configuration) FileMode() os.FileMode {
	perm, err := strconv.ParseUint(c.RedirectPerm, 8, 32)
	if err != nil {
		return 0640
	}
	return os.FileMode(perm) & os.ModePerm
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		return afero.NewMemMapFs()
	}
	return c.configFs
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	if c.EventLog == "" {
		return nil, ErrNoEventLog
	}
	return c.fs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

func (c *Configuration) ReadEventLog() (afero.File, error) {
	if c.EventLog == "" {
		return nil, ErrNoEventLog
	}
	return c.fs().OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

// Default returns the built-in configuration.
func Default() *Configuration {
	out := defaultConfig()
	out.configFs = afero.NewMemMapFs()
	return out
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
