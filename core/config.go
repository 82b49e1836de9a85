package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kat-co/vala"
	"github.com/spf13/viper"
)

// build is injected at compile time via -ldflags.
var build = "develop"

type (
	ServerConfig struct {
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Config struct {
		AppName  string
		Env      string // DEV (default) | TEST | QA | PROD
		Debug    bool
		TestMode bool
		Build    string
		WorkDir  string

		// SecretKey is the HMAC key shared with the identity provider;
		// access tokens are verified with it, never issued here.
		SecretKey string

		SendgridApiKey   string
		RollbarToken     string
		defaultFromEmail string

		// MaxReportsToDepth bounds the manager-chain walk so corrupted
		// data cannot send it into an endless loop.
		MaxReportsToDepth int

		Server   ServerConfig
		Database DatabaseConfig
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

func (dbc DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", dbc.Host, dbc.Port)
}

// NewConfig loads the app configuration from the environment,
// with an optional config/.env.<env> dotenv file on top.
func NewConfig() *Config {
	conf := viper.New()
	conf.SetTypeByDefaultValue(true)

	// defaults
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Darasa")
	conf.SetDefault("secretKey", "v#y0q_)pe8s&3m$1x(d7^hz4+fu5o9@wgl2cbjr6a!nk*tqi=e")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("maxReportsToDepth", 100)
	conf.SetDefault("serverHost", "0.0.0.0:8000")
	conf.SetDefault("serverDebugHost", "0.0.0.0:4000")
	conf.SetDefault("serverReadTimeout", 5*time.Second)
	conf.SetDefault("serverWriteTimeout", 5*time.Second)
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("databaseEngine", "postgres")
	conf.SetDefault("databaseHost", "localhost")
	conf.SetDefault("databasePort", 5432)
	conf.SetDefault("databaseName", "darasa")
	conf.SetDefault("databaseUser", "darasa")
	conf.SetDefault("databaseDisableTLS", true)

	env := strings.ToUpper(os.Getenv("ENV"))
	var testMode bool
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	c := &Config{
		AppName:           conf.GetString("appName"),
		Env:               env,
		Debug:             conf.GetBool("debug"),
		TestMode:          testMode,
		Build:             build,
		WorkDir:           wd,
		SecretKey:         conf.GetString("secretKey"),
		SendgridApiKey:    conf.GetString("sendgridApiKey"),
		RollbarToken:      conf.GetString("rollbarToken"),
		defaultFromEmail:  conf.GetString("defaultFromEmail"),
		MaxReportsToDepth: conf.GetInt("maxReportsToDepth"),
		Server: ServerConfig{
			Host:            conf.GetString("serverHost"),
			DebugHost:       conf.GetString("serverDebugHost"),
			ReadTimeout:     conf.GetDuration("serverReadTimeout"),
			WriteTimeout:    conf.GetDuration("serverWriteTimeout"),
			ShutdownTimeout: conf.GetDuration("serverShutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("databaseEngine"),
			Host:          conf.GetString("databaseHost"),
			Port:          conf.GetInt("databasePort"),
			Name:          conf.GetString("databaseName"),
			User:          conf.GetString("databaseUser"),
			Password:      conf.GetString("databasePassword"),
			AdminUser:     conf.GetString("databaseAdminUser"),
			AdminPassword: conf.GetString("databaseAdminPassword"),
			DisableTLS:    conf.GetBool("databaseDisableTLS"),
		},
	}

	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(c.AppName, "appName"),
		vala.StringNotEmpty(c.SecretKey, "secretKey"),
		vala.StringNotEmpty(c.Database.Engine, "databaseEngine"),
		vala.StringNotEmpty(c.Database.Name, "databaseName"),
		vala.GreaterThan(c.MaxReportsToDepth, 0, "maxReportsToDepth"),
	).Check()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return c
}
