package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// FileConfig is the on-disk form of Config. Durations use timex.Duration so
// files may write "30m" as well as integer nanoseconds.
type FileConfig struct {
	EndpointAddrGRPC string `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrHTTP string `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`

	Store             string         `json:"store" yaml:"store"`
	DatabaseDSN       string         `json:"database_dsn" yaml:"database_dsn"`
	DBMaxOpenConns    int            `json:"db_max_open_conns" yaml:"db_max_open_conns"`
	DBMaxIdleConns    int            `json:"db_max_idle_conns" yaml:"db_max_idle_conns"`
	DBConnMaxLifetime timex.Duration `json:"db_conn_max_lifetime" yaml:"db_conn_max_lifetime"`
	MigrateOnStart    bool           `json:"migrate_on_start" yaml:"migrate_on_start"`

	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration" yaml:"refresh_token_validity_duration"`
	TxTimeout                    timex.Duration `json:"tx_timeout" yaml:"tx_timeout"`
	RevokeFamilyOnReuse          bool           `json:"revoke_family_on_reuse" yaml:"revoke_family_on_reuse"`
	ReuseGracePeriod             timex.Duration `json:"reuse_grace_period" yaml:"reuse_grace_period"`
	Issuer                       string         `json:"issuer" yaml:"issuer"`

	SigningAlgorithm string `json:"signing_algorithm" yaml:"signing_algorithm"`
	PrivateKeyFile   string `json:"private_key_file" yaml:"private_key_file"`
	PublicKeyFile    string `json:"public_key_file" yaml:"public_key_file"`
	SecretKey        string `json:"secret_key" yaml:"secret_key"`
	GenerateKeys     bool   `json:"generate_keys" yaml:"generate_keys"`

	S3RootUser     string `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password" yaml:"s3_root_password"`
	S3KeyBucket    string `json:"s3_key_bucket" yaml:"s3_key_bucket"`
	S3Region       string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3PrivateKey   string `json:"s3_private_key" yaml:"s3_private_key"`
	S3PublicKey    string `json:"s3_public_key" yaml:"s3_public_key"`

	Argon2Memory      uint32 `json:"argon2_memory" yaml:"argon2_memory"`
	Argon2Iterations  uint32 `json:"argon2_iterations" yaml:"argon2_iterations"`
	Argon2Parallelism uint8  `json:"argon2_parallelism" yaml:"argon2_parallelism"`
	HashWorkers       int    `json:"hash_workers" yaml:"hash_workers"`
	HashQueue         int    `json:"hash_queue" yaml:"hash_queue"`
	HashPolicy        string `json:"hash_policy" yaml:"hash_policy"`

	NATSURL          string  `json:"nats_url" yaml:"nats_url"`
	OTLPEndpoint     string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	TraceSampleRatio float64 `json:"trace_sample_ratio" yaml:"trace_sample_ratio"`

	LogFormat string `json:"log_format" yaml:"log_format"`
	LogLevel  string `json:"log_level" yaml:"log_level"`
}

func newFileConfig(c *Config) *FileConfig {
	return &FileConfig{
		EndpointAddrGRPC:             c.EndpointAddrGRPC,
		EndpointAddrHTTP:             c.EndpointAddrHTTP,
		Store:                        c.Store,
		DatabaseDSN:                  c.DatabaseDSN,
		DBMaxOpenConns:               c.DBMaxOpenConns,
		DBMaxIdleConns:               c.DBMaxIdleConns,
		DBConnMaxLifetime:            timex.Duration{Duration: c.DBConnMaxLifetime},
		MigrateOnStart:               c.MigrateOnStart,
		AccessTokenValidityDuration:  timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: c.RefreshTokenValidityDuration},
		TxTimeout:                    timex.Duration{Duration: c.TxTimeout},
		RevokeFamilyOnReuse:          c.RevokeFamilyOnReuse,
		ReuseGracePeriod:             timex.Duration{Duration: c.ReuseGracePeriod},
		Issuer:                       c.Issuer,
		SigningAlgorithm:             c.SigningAlgorithm,
		PrivateKeyFile:               c.PrivateKeyFile,
		PublicKeyFile:                c.PublicKeyFile,
		SecretKey:                    c.SecretKey,
		GenerateKeys:                 c.GenerateKeys,
		S3RootUser:                   c.S3RootUser,
		S3RootPassword:               c.S3RootPassword,
		S3KeyBucket:                  c.S3KeyBucket,
		S3Region:                     c.S3Region,
		S3BaseEndpoint:               c.S3BaseEndpoint,
		S3PrivateKey:                 c.S3PrivateKey,
		S3PublicKey:                  c.S3PublicKey,
		Argon2Memory:                 c.Argon2Memory,
		Argon2Iterations:             c.Argon2Iterations,
		Argon2Parallelism:            c.Argon2Parallelism,
		HashWorkers:                  c.HashWorkers,
		HashQueue:                    c.HashQueue,
		HashPolicy:                   c.HashPolicy,
		NATSURL:                      c.NATSURL,
		OTLPEndpoint:                 c.OTLPEndpoint,
		TraceSampleRatio:             c.TraceSampleRatio,
		LogFormat:                    c.LogFormat,
		LogLevel:                     c.LogLevel,
	}
}

func (f *FileConfig) apply(c *Config) {
	c.EndpointAddrGRPC = f.EndpointAddrGRPC
	c.EndpointAddrHTTP = f.EndpointAddrHTTP
	c.Store = f.Store
	c.DatabaseDSN = f.DatabaseDSN
	c.DBMaxOpenConns = f.DBMaxOpenConns
	c.DBMaxIdleConns = f.DBMaxIdleConns
	c.DBConnMaxLifetime = f.DBConnMaxLifetime.Duration
	c.MigrateOnStart = f.MigrateOnStart
	c.AccessTokenValidityDuration = f.AccessTokenValidityDuration.Duration
	c.RefreshTokenValidityDuration = f.RefreshTokenValidityDuration.Duration
	c.TxTimeout = f.TxTimeout.Duration
	c.RevokeFamilyOnReuse = f.RevokeFamilyOnReuse
	c.ReuseGracePeriod = f.ReuseGracePeriod.Duration
	c.Issuer = f.Issuer
	c.SigningAlgorithm = f.SigningAlgorithm
	c.PrivateKeyFile = f.PrivateKeyFile
	c.PublicKeyFile = f.PublicKeyFile
	c.SecretKey = f.SecretKey
	c.GenerateKeys = f.GenerateKeys
	c.S3RootUser = f.S3RootUser
	c.S3RootPassword = f.S3RootPassword
	c.S3KeyBucket = f.S3KeyBucket
	c.S3Region = f.S3Region
	c.S3BaseEndpoint = f.S3BaseEndpoint
	c.S3PrivateKey = f.S3PrivateKey
	c.S3PublicKey = f.S3PublicKey
	c.Argon2Memory = f.Argon2Memory
	c.Argon2Iterations = f.Argon2Iterations
	c.Argon2Parallelism = f.Argon2Parallelism
	c.HashWorkers = f.HashWorkers
	c.HashQueue = f.HashQueue
	c.HashPolicy = f.HashPolicy
	c.NATSURL = f.NATSURL
	c.OTLPEndpoint = f.OTLPEndpoint
	c.TraceSampleRatio = f.TraceSampleRatio
	c.LogFormat = f.LogFormat
	c.LogLevel = f.LogLevel
}

// parseFile overlays the file named by -c or -config onto config. Keys
// missing from the file keep their current values. Files ending in .yaml
// or .yml are read as YAML, anything else as JSON.
//
// A file that cannot be read or decoded panics.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()

	// nothing to load
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := newFileConfig(config)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(config)
}
