package config

import (
	"fmt"
	"net/url"
)

// ValidationError names the offending config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateRequired fails when value is empty.
func ValidateRequired(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// ValidatePort fails outside 1..65535.
func ValidatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return &ValidationError{Field: field, Message: "must be between 1 and 65535"}
	}
	return nil
}

// ValidateURL fails unless value parses as an absolute http(s) URL.
func ValidateURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: field, Message: "must be an http(s) URL"}
	}
	return nil
}

// ValidateLogLevel accepts the zap level names.
func ValidateLogLevel(field, level string) error {
	switch level {
	case "debug", "info", "warn", "warning", "error", "fatal":
		return nil
	}
	return &ValidationError{Field: field, Message: "must be one of: debug, info, warn, error, fatal"}
}

func (c *ServerConfig) Validate() error {
	return ValidatePort("server.port", c.Port)
}

func (c *DatabaseConfig) Validate() error {
	if err := ValidateRequired("database.host", c.Host); err != nil {
		return err
	}
	if err := ValidatePort("database.port", c.Port); err != nil {
		return err
	}
	if err := ValidateRequired("database.user", c.User); err != nil {
		return err
	}
	return ValidateRequired("database.database", c.Database)
}

func (c *ElasticsearchConfig) Validate() error {
	if err := ValidateURL("elasticsearch.url", c.URL); err != nil {
		return err
	}
	if err := ValidateRequired("elasticsearch.doi_index", c.DOIIndex); err != nil {
		return err
	}
	return ValidateRequired("elasticsearch.event_index", c.EventIndex)
}

func (c *RedisConfig) Validate() error {
	return ValidateRequired("redis.address", c.Address)
}
