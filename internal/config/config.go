// Package config loads the daemon settings from ~/.cloudhome.json, CLOUDHOME_* environment
// variables and command-line flags, in increasing order of precedence.
//
// Durations are strings such as "1s" or "500ms".
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudhome/cloudhome/internal/manifest"
	"github.com/cloudhome/cloudhome/internal/utils"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "CLOUDHOME"
	configFileName = ".cloudhome"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, configFileName+".json")
	DefaultCloudHome   = filepath.Join(home, "cloudhome")
	DefaultLogFilePath = filepath.Join(os.TempDir(), "cloudhome.log")
)

var (
	ErrNoCloudHome    = errors.New("cloudhome directory is not set")
	ErrNoBuckets      = errors.New("no buckets configured")
	ErrInvalidBucket  = errors.New("invalid bucket name")
	ErrInvalidTimeout = errors.New("interval must be positive")
)

type Config struct {
	Path              string
	CloudHome         string
	BucketNames       []string
	CredentialProfile string
	LogFile           string
	LogLevel          slog.Level
	Region            string
	Endpoint          string
	AccessKey         string
	SecretKey         string
	SyncInterval      time.Duration
	BackoffInterval   time.Duration
	Watch             bool
}

// BucketManifest pairs a bucket with the manifest that tracks it.
type BucketManifest struct {
	Bucket       string
	ManifestPath string
}

// flagKeys maps config keys to the CLI flags that override them.
var flagKeys = map[string]string{
	"cloudhome":          "cloudhome",
	"bucket_names":       "bucket",
	"credential_profile": "profile",
	"log_file":           "log-file",
	"log_level":          "log-level",
	"endpoint":           "endpoint",
	"region":             "region",
	"sync_interval":      "interval",
	"watch":              "watch",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cloudhome", DefaultCloudHome)
	v.SetDefault("bucket_names", []string{})
	v.SetDefault("credential_profile", "")
	v.SetDefault("log_file", DefaultLogFilePath)
	v.SetDefault("log_level", "info")
	v.SetDefault("sync_interval", time.Second)
	v.SetDefault("backoff_interval", 10*time.Second)
	v.SetDefault("watch", false)
}

// Load reads the config file at path (or the default locations when path is empty), then
// applies CLOUDHOME_* environment variables and any changed flags. The result is validated.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("json")
		}
	} else {
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "cloudhome"))
		v.SetConfigName(configFileName)
		v.SetConfigType("json")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	cfg := &Config{
		Path:              v.ConfigFileUsed(),
		CloudHome:         v.GetString("cloudhome"),
		BucketNames:       uniqueBuckets(v.GetStringSlice("bucket_names")),
		CredentialProfile: v.GetString("credential_profile"),
		LogFile:           v.GetString("log_file"),
		Region:            v.GetString("region"),
		Endpoint:          v.GetString("endpoint"),
		AccessKey:         v.GetString("access_key"),
		SecretKey:         v.GetString("secret_key"),
		SyncInterval:      v.GetDuration("sync_interval"),
		BackoffInterval:   v.GetDuration("backoff_interval"),
		Watch:             v.GetBool("watch"),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate resolves paths in place and checks every field.
func (c *Config) Validate() error {
	if c.CloudHome == "" {
		return ErrNoCloudHome
	}
	dir, err := utils.ResolvePath(c.CloudHome)
	if err != nil {
		return fmt.Errorf("cloudhome %q: %w", c.CloudHome, err)
	}
	c.CloudHome = dir

	if c.LogFile != "" {
		if c.LogFile, err = utils.ResolvePath(c.LogFile); err != nil {
			return fmt.Errorf("log_file: %w", err)
		}
	}

	for _, b := range c.BucketNames {
		if err := ValidateBucket(b); err != nil {
			return err
		}
	}

	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval: %w", ErrInvalidTimeout)
	}
	if c.BackoffInterval <= 0 {
		return fmt.Errorf("backoff_interval: %w", ErrInvalidTimeout)
	}
	return nil
}

// ValidateBucket rejects names that cannot be used as a directory under the cloudhome.
func ValidateBucket(b string) error {
	if b == "" || b == "." || b == ".." || strings.ContainsAny(b, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidBucket, b)
	}
	return nil
}

// ManifestPath is where the manifest of bucket lives.
func (c *Config) ManifestPath(bucket string) string {
	return filepath.Join(c.CloudHome, bucket, manifest.Basename)
}

// BucketManifests pairs buckets with their manifest paths. Without arguments every
// configured bucket is listed.
func (c *Config) BucketManifests(buckets ...string) []BucketManifest {
	if len(buckets) == 0 {
		buckets = c.BucketNames
	}
	out := make([]BucketManifest, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, BucketManifest{Bucket: b, ManifestPath: c.ManifestPath(b)})
	}
	return out
}

// uniqueBuckets splits comma separated entries (as given through the environment) and drops
// duplicates, keeping first-seen order.
func uniqueBuckets(raw []string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, b := range strings.Split(entry, ",") {
			b = strings.TrimSpace(b)
			if b == "" || seen.Contains(b) {
				continue
			}
			seen.Add(b)
			out = append(out, b)
		}
	}
	return out
}
