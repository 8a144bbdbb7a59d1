package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	minNetworkTimeout = 2 * time.Second
	maxNetworkTimeout = 5 * time.Second
)

type Config struct {
	Env          string
	Build        string
	Debug        bool
	TestMode     bool
	AppName      string
	SecretKey    string
	RollbarToken string
	WorkDir      string

	Server struct {
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	// Local is the durable origin-scoped key-value store.
	Local struct {
		Path string
	}

	// Remote holds the two values injected for the remote store plus client tuning.
	Remote struct {
		URL            string
		Key            string
		ProbeTimeout   time.Duration
		HealthInterval time.Duration
		MaxOpenConns   int
		TokenTTL       time.Duration
	}

	Seed struct {
		URL      string
		Version  string
		Timeout  time.Duration
		DataFile string
	}

	ContentGen struct {
		URL         string
		APIKey      string
		Model       string
		MaxTokens   int
		Temperature float64
		Timeout     time.Duration
	}
}

// RemoteConfigured reports whether both remote store values were injected.
func (c *Config) RemoteConfigured() bool {
	return c.Remote.URL != "" && c.Remote.Key != ""
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "QuizMaster")
	conf.SetDefault("secretKey", "t0p-s3cr3t!quizmaster&dev-only#key")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.host", "0.0.0.0:8000")
	conf.SetDefault("server.debugHost", "0.0.0.0:4000")
	conf.SetDefault("server.readTimeout", 5*time.Second)
	conf.SetDefault("server.writeTimeout", 10*time.Second)
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)

	conf.SetDefault("local.path", "quizmaster.db")

	conf.SetDefault("remote.url", "")
	conf.SetDefault("remote.key", "")
	conf.SetDefault("remote.probeTimeout", 3*time.Second)
	conf.SetDefault("remote.healthInterval", time.Minute)
	conf.SetDefault("remote.maxOpenConns", 10)
	conf.SetDefault("remote.tokenTTL", time.Hour)

	conf.SetDefault("seed.url", "http://localhost:8000/api/default-data")
	conf.SetDefault("seed.version", "2.0")
	conf.SetDefault("seed.timeout", 4*time.Second)
	conf.SetDefault("seed.dataFile", "")

	conf.SetDefault("contentGen.url", "https://api.openai.com/v1/chat/completions")
	conf.SetDefault("contentGen.apiKey", "")
	conf.SetDefault("contentGen.model", "gpt-3.5-turbo")
	conf.SetDefault("contentGen.maxTokens", 1000)
	conf.SetDefault("contentGen.temperature", 0.7)
	conf.SetDefault("contentGen.timeout", 30*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
		conf.SetDefault("local.path", ":memory:")
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := os.Getenv("QUIZMASTER_WORKDIR")
	if wd == "" {
		var err error
		if wd, err = os.Getwd(); err != nil {
			log.Fatalf("config.os.Getwd(): %v", err)
		}
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	c := &Config{
		Env:          env,
		Build:        conf.GetString("build"),
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		AppName:      conf.GetString("appName"),
		SecretKey:    conf.GetString("secretKey"),
		RollbarToken: conf.GetString("rollbarToken"),
		WorkDir:      wd,
	}

	c.Server.Host = conf.GetString("server.host")
	c.Server.DebugHost = conf.GetString("server.debugHost")
	c.Server.ReadTimeout = conf.GetDuration("server.readTimeout")
	c.Server.WriteTimeout = conf.GetDuration("server.writeTimeout")
	c.Server.ShutdownTimeout = conf.GetDuration("server.shutdownTimeout")

	c.Local.Path = conf.GetString("local.path")

	c.Remote.URL = conf.GetString("remote.url")
	c.Remote.Key = conf.GetString("remote.key")
	c.Remote.ProbeTimeout = ClampTimeout(conf.GetDuration("remote.probeTimeout"))
	c.Remote.HealthInterval = conf.GetDuration("remote.healthInterval")
	c.Remote.MaxOpenConns = conf.GetInt("remote.maxOpenConns")
	c.Remote.TokenTTL = conf.GetDuration("remote.tokenTTL")

	c.Seed.URL = conf.GetString("seed.url")
	c.Seed.Version = conf.GetString("seed.version")
	c.Seed.Timeout = ClampTimeout(conf.GetDuration("seed.timeout"))
	c.Seed.DataFile = conf.GetString("seed.dataFile")

	c.ContentGen.URL = conf.GetString("contentGen.url")
	c.ContentGen.APIKey = conf.GetString("contentGen.apiKey")
	c.ContentGen.Model = conf.GetString("contentGen.model")
	c.ContentGen.MaxTokens = conf.GetInt("contentGen.maxTokens")
	c.ContentGen.Temperature = conf.GetFloat64("contentGen.temperature")
	c.ContentGen.Timeout = conf.GetDuration("contentGen.timeout")

	return c
}

// ClampTimeout bounds startup network timeouts to [2s, 5s].
func ClampTimeout(d time.Duration) time.Duration {
	switch {
	case d < minNetworkTimeout:
		return minNetworkTimeout
	case d > maxNetworkTimeout:
		return maxNetworkTimeout
	}
	return d
}
