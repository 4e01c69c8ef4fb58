// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/adopsbot/adopsbot/internal/permsync"
)

// EnvConfigJSON names the environment variable holding a JSON document merged over the config file.
const EnvConfigJSON = "ADOPSBOT_CONFIG_JSON"

const redacted = "***"

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c   Config
		err error
	)

	if path == "" {
		path = "./etc/"
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path + "main.toml")

	if err = v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	if JSONConfigEnv := os.Getenv(EnvConfigJSON); JSONConfigEnv != "" {
		v.SetConfigType("json")

		if err = v.MergeConfig(strings.NewReader(JSONConfigEnv)); err != nil {
			return Config{}, errors.Wrap(err, "failed to merge config from "+EnvConfigJSON)
		}
	}

	if err = v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}

	return c, validate(&c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.gormEngine", EngineSQLite)
	v.SetDefault("db.name", "adopsbot.db")

	v.SetDefault("log.logLevel", "info")
	v.SetDefault("log.appName", "adopsbot")
	v.SetDefault("log.serviceName", "adopsbot")
	v.SetDefault("log.console.enabled", true)

	v.SetDefault("webserver.port", 8080)
	v.SetDefault("webserver.shutDownTime", 5)
	v.SetDefault("webserver.rateLimitWindow", 60)

	v.SetDefault("permissions.activeOnly", true)
	v.SetDefault("permissions.syncIntervalSeconds", int(permsync.DefaultInterval.Seconds()))
	v.SetDefault("permissions.firstRunDelaySeconds", int(permsync.DefaultFirstRunDelay.Seconds()))
	v.SetDefault("permissions.identityAttribute", permsync.DefaultIdentityAttribute)
	v.SetDefault("permissions.loginAttribute", permsync.DefaultLoginAttribute)
	v.SetDefault("permissions.maxParallel", permsync.DefaultMaxParallel)
	v.SetDefault("permissions.onTotalFailure", string(permsync.PolicyClear))

	v.SetDefault("bot.removeSecretAfterSeconds", 120) //nolint:mnd

	v.SetDefault("audit.bufferSize", 256) //nolint:mnd
}

// Redacted returns a copy of c with secrets masked.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}

	mask(&c.DB.Password)
	mask(&c.Webserver.APITokenHash)
	mask(&c.Directory.BindPassword)
	mask(&c.Directory.TempPassword)
	mask(&c.Log.DataDog.APIKey)

	return c
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate the loaded settings. Capability names are resolved here so that a typo
// stops the service at startup instead of silently granting nothing.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if c.Webserver.APITokenHash == "" {
		return errors.Wrap(ErrAPITokenHashIsEmpty, invalidErrMessage)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = 5 // set default of 5 seconds
	}

	switch c.DB.GormEngine {
	case EngineSQLite, EngineMySQL, EnginePostgres:
	default:
		return errors.Wrap(ErrUnknownGormEngine, invalidErrMessage)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(c.Directory); err != nil {
		return errors.Wrap(err, invalidErrMessage+": directory")
	}

	if err := validate.Struct(c.Permissions); err != nil {
		return errors.Wrap(err, invalidErrMessage+": permissions")
	}

	if err := validate.Struct(c.Bot); err != nil {
		return errors.Wrap(err, invalidErrMessage+": bot")
	}

	if _, err := c.Permissions.SyncConfig(); err != nil {
		return errors.Wrap(err, invalidErrMessage)
	}

	return nil
}
