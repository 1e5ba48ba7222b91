package config

import (
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v2"
)

func TestBuiltinConfig(t *testing.T) {
	rawConfig := make(map[string]interface{})
	assert.Nil(t, yaml.Unmarshal(defaultConfigData, &rawConfig))

	knownFields := make(map[string]bool)
	rt := reflect.TypeOf(Configuration{})
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		assert.NotEmpty(t, jsonTag)
		jsonField := strings.Split(jsonTag, ",")[0]
		knownFields[jsonField] = true

		if _, ok := rawConfig[jsonField]; !ok {
			assert.False(t, true, "default config missing field: %q", jsonField)
		}
	}

	for k := range rawConfig {
		_, ok := knownFields[k]
		assert.True(t, ok, "default config contains invalid field: %q", k)
	}
}

func TestDefaultConfig(t *testing.T) {
	// Will panic() on load failure because it should never happen at runtime.
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Nil(t, cfg.Validate())

	assert.Equal(t, `\u@\h:\w\$ `, cfg.Prompt)
	assert.Equal(t, 2048, cfg.MaxLineLength)
	assert.Equal(t, os.FileMode(0640), cfg.FileMode())
	assert.Equal(t, "/dev/null", cfg.NullDevice)
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate  func(*Configuration)
		wantErr string
	}{
		"default": {
			mutate: func(*Configuration) {},
		},
		"bad-color": {
			mutate:  func(c *Configuration) { c.Color = "rainbow" },
			wantErr: "color",
		},
		"zero-line-length": {
			mutate:  func(c *Configuration) { c.MaxLineLength = 0 },
			wantErr: "max_line_length",
		},
		"zero-args": {
			mutate:  func(c *Configuration) { c.MaxArgs = 0 },
			wantErr: "max_args",
		},
		"non-octal-perm": {
			mutate:  func(c *Configuration) { c.RedirectPerm = "0999" },
			wantErr: "redirect_perm",
		},
		"perm-too-large": {
			mutate:  func(c *Configuration) { c.RedirectPerm = "01777" },
			wantErr: "redirect_perm",
		},
		"event-log-path": {
			mutate:  func(c *Configuration) { c.EventLog = "../escape.log" },
			wantErr: "event_log",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.Nil(t, err)
				return
			}
			if assert.NotNil(t, err) {
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestEventLogDisabled(t *testing.T) {
	cfg := Default()

	_, err := cfg.OpenEventLog()
	assert.ErrorIs(t, err, ErrNoEventLog)

	_, err = cfg.ReadEventLog()
	assert.ErrorIs(t, err, ErrNoEventLog)
}
