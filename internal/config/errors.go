package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config webserver.URL is empty.
	ErrEmptyURL = errors.New("toml config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrAPITokenHashIsEmpty error if the command endpoint has no token configured.
	ErrAPITokenHashIsEmpty = errors.New("toml config webserver.apiTokenHash can not be empty")

	// ErrUnknownGormEngine error if DB.GormEngine names an unsupported driver.
	ErrUnknownGormEngine = errors.New("toml config db.gormEngine must be sqlite, mysql or postgres")
)
