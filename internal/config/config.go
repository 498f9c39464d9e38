// Package config resolves the deploy settings for ollamastack. All inputs
// are merged once at startup into an immutable Settings value: explicit
// flags take precedence over environment variables, and nothing below the
// command layer reads the environment directly.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingCredentials is returned when neither flags nor environment
// variables supply both an access key ID and a secret access key. The run
// aborts before any API call is made.
var ErrMissingCredentials = errors.New(
	"AWS credentials must be provided via --access-key/--secret-key or " +
		"AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY")

// Settings holds every input a deploy run needs. Populated once by Resolve
// and read-only afterwards.
type Settings struct {
	// Credentials and target region.
	AccessKeyID     string
	SecretAccessKey string
	Region          string

	// Stack identity and template parameters.
	StackName         string
	InstanceType      string
	HostedZoneID      string
	HostedZoneName    string
	BasicAuthUser     string
	BasicAuthPassword string

	// Key pair handling. KeyPairName empty means a name is generated from
	// the stack name at deploy time. KeyPairSavePath defaults to ".".
	KeyPairName     string
	KeyPairSavePath string

	// TemplatePath overrides the embedded stack template when non-empty.
	TemplatePath string

	// PollTimeout bounds the completion poll. Zero means poll without a
	// deadline, matching the behavior of the original tooling.
	PollTimeout time.Duration
}

// Flags carries raw flag values from the command layer into Resolve.
// Empty strings mean "not set on the command line".
type Flags struct {
	AccessKey         string
	SecretKey         string
	Region            string
	StackName         string
	InstanceType      string
	HostedZoneID      string
	HostedZoneName    string
	BasicAuthUser     string
	BasicAuthPassword string
	KeyPairName       string
	KeyPairSavePath   string
	TemplatePath      string
	PollTimeout       time.Duration
}

// envBindings maps viper keys to their environment fallbacks.
var envBindings = map[string]string{
	"access_key": "AWS_ACCESS_KEY_ID",
	"secret_key": "AWS_SECRET_ACCESS_KEY",
	"region":     "AWS_REGION",
}

// Resolve merges flags over environment variables and validates the result.
// Precedence: flag value if set, otherwise the bound environment variable.
func Resolve(f Flags) (*Settings, error) {
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	// viper ranks explicit Set calls above environment values, which gives
	// the flag-over-env precedence directly.
	if f.AccessKey != "" {
		v.Set("access_key", f.AccessKey)
	}
	if f.SecretKey != "" {
		v.Set("secret_key", f.SecretKey)
	}
	if f.Region != "" {
		v.Set("region", f.Region)
	}

	savePath := f.KeyPairSavePath
	if savePath == "" {
		savePath = "."
	}

	s := &Settings{
		AccessKeyID:       v.GetString("access_key"),
		SecretAccessKey:   v.GetString("secret_key"),
		Region:            v.GetString("region"),
		StackName:         f.StackName,
		InstanceType:      f.InstanceType,
		HostedZoneID:      f.HostedZoneID,
		HostedZoneName:    f.HostedZoneName,
		BasicAuthUser:     f.BasicAuthUser,
		BasicAuthPassword: f.BasicAuthPassword,
		KeyPairName:       f.KeyPairName,
		KeyPairSavePath:   savePath,
		TemplatePath:      f.TemplatePath,
		PollTimeout:       f.PollTimeout,
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ResolveConnection merges and validates only the credential and region
// settings. Commands that talk to an existing stack (outputs, destroy,
// keypair) need nothing else.
func ResolveConnection(f Flags) (*Settings, error) {
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if f.AccessKey != "" {
		v.Set("access_key", f.AccessKey)
	}
	if f.SecretKey != "" {
		v.Set("secret_key", f.SecretKey)
	}
	if f.Region != "" {
		v.Set("region", f.Region)
	}

	savePath := f.KeyPairSavePath
	if savePath == "" {
		savePath = "."
	}

	s := &Settings{
		AccessKeyID:     v.GetString("access_key"),
		SecretAccessKey: v.GetString("secret_key"),
		Region:          v.GetString("region"),
		StackName:       f.StackName,
		KeyPairName:     f.KeyPairName,
		KeyPairSavePath: savePath,
		PollTimeout:     f.PollTimeout,
	}

	if s.AccessKeyID == "" || s.SecretAccessKey == "" {
		return nil, ErrMissingCredentials
	}
	if s.Region == "" {
		return nil, errors.New("missing required settings: region")
	}
	return s, nil
}

// validate checks that everything a run depends on is present. Credentials
// are checked first so a missing key aborts before any other diagnostics.
func (s *Settings) validate() error {
	if s.AccessKeyID == "" || s.SecretAccessKey == "" {
		return ErrMissingCredentials
	}

	var missing []string
	for _, req := range []struct{ name, val string }{
		{"region", s.Region},
		{"stack-name", s.StackName},
		{"instance-type", s.InstanceType},
		{"hosted-zone-id", s.HostedZoneID},
		{"hosted-zone-name", s.HostedZoneName},
		{"basic-auth-username", s.BasicAuthUser},
		{"basic-auth-password", s.BasicAuthPassword},
	} {
		if req.val == "" {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
