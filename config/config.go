// Package config reads the configuration of an XML-RPC client from a file and
// from XMLRPC_* environment variables.
package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mdzio/go-lib/conc"
	"github.com/mdzio/go-xmlrpc/xmlrpc"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

// EnvPrefix is the prefix of the environment variables, e.g. XMLRPC_ADDR or
// XMLRPC_CODEC_USE_INT_TAG.
const EnvPrefix = "XMLRPC"

// Config is the configuration of a client.
type Config struct {
	// Addr is the URL of the XML-RPC server.
	Addr      string            `mapstructure:"addr"`
	UserAgent string            `mapstructure:"user_agent"`
	Header    map[string]string `mapstructure:"header"`
	// Timeout of a single HTTP exchange, 0 disables the timeout.
	Timeout           time.Duration `mapstructure:"timeout"`
	ResponseSizeLimit int64         `mapstructure:"response_size_limit"`
	// RateLimit is the max. number of calls per second, 0 means unlimited.
	RateLimit  float64       `mapstructure:"rate_limit"`
	RateBurst  int           `mapstructure:"rate_burst"`
	RetryCount int           `mapstructure:"retry_count"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Codec      CodecConfig   `mapstructure:"codec"`
}

// CodecConfig mirrors xmlrpc.Config.
type CodecConfig struct {
	Indent          bool   `mapstructure:"indent"`
	IndentWidth     int    `mapstructure:"indent_width"`
	UseIntTag       bool   `mapstructure:"use_int_tag"`
	UseStringTag    bool   `mapstructure:"use_string_tag"`
	OmitEmptyParams bool   `mapstructure:"omit_empty_params"`
	Encoding        string `mapstructure:"encoding"`
	StrictDateTime  bool   `mapstructure:"strict_date_time"`
	// MissingMapping is "fail" or "ignore".
	MissingMapping string `mapstructure:"missing_mapping"`

	AllowInvalidHTTPContent bool `mapstructure:"allow_invalid_http_content"`
	AllowStringFaultCode    bool `mapstructure:"allow_string_fault_code"`
	IgnoreDuplicateMembers  bool `mapstructure:"ignore_duplicate_members"`
	MapEmptyDateTimeToZero  bool `mapstructure:"map_empty_date_time_to_zero"`
	MapZerosDateTimeToZero  bool `mapstructure:"map_zeros_date_time_to_zero"`
}

var defaults = map[string]interface{}{
	"addr":                              "",
	"user_agent":                        "",
	"header":                            map[string]string{},
	"timeout":                           30 * time.Second,
	"response_size_limit":               10 * 1024 * 1024,
	"rate_limit":                        0.0,
	"rate_burst":                        1,
	"retry_count":                       0,
	"retry_delay":                       time.Second,
	"codec.indent":                      false,
	"codec.indent_width":                2,
	"codec.use_int_tag":                 false,
	"codec.use_string_tag":              false,
	"codec.omit_empty_params":           false,
	"codec.encoding":                    "UTF-8",
	"codec.strict_date_time":            false,
	"codec.missing_mapping":             "fail",
	"codec.allow_invalid_http_content":  false,
	"codec.allow_string_fault_code":     false,
	"codec.ignore_duplicate_members":    false,
	"codec.map_empty_date_time_to_zero": false,
	"codec.map_zeros_date_time_to_zero": false,
}

// Load reads the configuration. path may be empty, then only the defaults and
// the environment variables are used. The file type is taken from the
// extension (yaml, toml, json).
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Reading of configuration file %s failed: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Invalid configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Codec.MissingMapping) {
	case "", "fail", "ignore":
	default:
		return fmt.Errorf("Invalid codec.missing_mapping: %s (must be 'fail' or 'ignore')", c.Codec.MissingMapping)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("Invalid rate_limit: %v", c.RateLimit)
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("Invalid retry_count: %d", c.RetryCount)
	}
	return nil
}

// CodecConfig converts the codec options.
func (c *Config) CodecConfig() xmlrpc.Config {
	cc := c.Codec
	cfg := xmlrpc.Config{
		Indent:          cc.Indent,
		IndentWidth:     cc.IndentWidth,
		UseIntTag:       cc.UseIntTag,
		UseStringTag:    cc.UseStringTag,
		OmitEmptyParams: cc.OmitEmptyParams,
		Encoding:        cc.Encoding,
		StrictDateTime:  cc.StrictDateTime,
		MissingMapping:  xmlrpc.MappingFail,
	}
	if strings.EqualFold(cc.MissingMapping, "ignore") {
		cfg.MissingMapping = xmlrpc.MappingIgnore
	}
	flags := []struct {
		on   bool
		flag xmlrpc.NonStandard
	}{
		{cc.AllowInvalidHTTPContent, xmlrpc.AllowInvalidHTTPContent},
		{cc.AllowStringFaultCode, xmlrpc.AllowStringFaultCode},
		{cc.IgnoreDuplicateMembers, xmlrpc.IgnoreDuplicateMembers},
		{cc.MapEmptyDateTimeToZero, xmlrpc.MapEmptyDateTimeToZero},
		{cc.MapZerosDateTimeToZero, xmlrpc.MapZerosDateTimeToZero},
	}
	for _, f := range flags {
		if f.on {
			cfg.NonStandard |= f.flag
		}
	}
	return cfg
}

// NewClient creates a client.
func (c *Config) NewClient() (*xmlrpc.Client, error) {
	if c.Addr == "" {
		return nil, fmt.Errorf("Address of XML-RPC server is not configured")
	}
	header := make(http.Header)
	for k, v := range c.Header {
		header.Set(k, v)
	}
	cl := &xmlrpc.Client{
		Addr:   c.Addr,
		Config: c.CodecConfig(),
		Transport: &xmlrpc.HTTPTransport{
			Client:    &http.Client{Timeout: c.Timeout},
			UserAgent: c.UserAgent,
			Header:    header,
		},
		ResponseSizeLimit: c.ResponseSizeLimit,
	}
	if c.RateLimit > 0 {
		burst := c.RateBurst
		if burst < 1 {
			burst = 1
		}
		cl.Limiter = rate.NewLimiter(rate.Limit(c.RateLimit), burst)
	}
	return cl, nil
}

// NewCaller creates a client, which is wrapped in a RetryingCaller if retries
// are configured. The retries are cancelled with ctx.
func (c *Config) NewCaller(ctx conc.Context) (xmlrpc.Caller, error) {
	cl, err := c.NewClient()
	if err != nil {
		return nil, err
	}
	if c.RetryCount == 0 {
		return cl, nil
	}
	return &xmlrpc.RetryingCaller{
		Caller:     cl,
		RetryCount: c.RetryCount,
		RetryDelay: c.RetryDelay,
		Context:    ctx,
	}, nil
}
