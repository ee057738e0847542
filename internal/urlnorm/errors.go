package urlnorm

import "fmt"

// ConfigurationError reports an invalid or conflicting option.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("urlnorm: %s: %v", e.Msg, e.Err)
	}
	return "urlnorm: " + e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ParseError reports input that could not be parsed as a URL.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("urlnorm: cannot parse %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
