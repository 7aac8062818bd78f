package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		DefaultFromEmail          mail.Address
		FrontendBaseURL           string
		PasswordResetTimeoutDelta time.Duration
		RollbarToken              string
		SendgridApiKey            string

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		Content   ContentConfig
		Progress  ProgressConfig
		Scheduler SchedulerConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		InMemory      bool   // use the in-memory repositories instead of postgres
		TestURL       string // postgres URL the sqlx repositories are tested against; empty skips those tests
	}

	RedisConfig struct {
		Address  string // empty: use the in-process locker
		Password string
		DB       int
	}

	ContentConfig struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}

	ProgressConfig struct {
		TestCutoff         int
		CooldownUnit       time.Duration
		SecondsPerQuestion int
		SessionGrace       time.Duration
		SubmitLockTTL      time.Duration
	}

	SchedulerConfig struct {
		Enabled      bool
		CooldownSpec string
		SessionSpec  string
	}
)

func (dbConf DatabaseConfig) Address() string {
	return net.JoinHostPort(dbConf.Host, dbConf.Port)
}

func (srvConf ServerConfig) Address() string {
	return net.JoinHostPort(srvConf.Host, srvConf.Port)
}

// NewConfig reads the configuration from the environment (and an optional `config/.env.<env>` file).
func NewConfig() *Config {
	v := viper.New()

	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "LMS")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("defaultFromEmailName", "LMS")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("serverHost", "")
	v.SetDefault("serverPort", "8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverReadTimeout", 5*time.Second)
	v.SetDefault("serverWriteTimeout", 5*time.Second)
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", "5432")
	v.SetDefault("databaseName", "lms")
	v.SetDefault("databaseUser", "lms")
	v.SetDefault("databasePassword", "lms")
	v.SetDefault("databaseAdminUser", "postgres")
	v.SetDefault("databaseAdminPassword", "postgres")
	v.SetDefault("databaseDisableTLS", true)
	v.SetDefault("databaseInMemory", false)
	v.SetDefault("databaseTestURL", "")

	v.SetDefault("redisAddress", "")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDB", 0)

	v.SetDefault("contentBaseURL", "http://localhost:8080/content")
	v.SetDefault("contentToken", "")
	v.SetDefault("contentTimeout", 10*time.Second)

	v.SetDefault("progressTestCutoff", 80)
	v.SetDefault("progressCooldownUnit", 24*time.Hour)
	v.SetDefault("progressSecondsPerQuestion", 60)
	v.SetDefault("progressSessionGrace", 30*time.Second)
	v.SetDefault("progressSubmitLockTTL", 30*time.Second)

	v.SetDefault("schedulerEnabled", true)
	v.SetDefault("schedulerCooldownSpec", "@every 1m")
	v.SetDefault("schedulerSessionSpec", "@every 1m")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		DefaultFromEmail: mail.Address{Name: v.GetString("defaultFromEmailName"), Address: v.GetString("defaultFromEmail")},
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),

		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),

		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Port:                      v.GetString("serverPort"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ReadTimeout:               v.GetDuration("serverReadTimeout"),
			WriteTimeout:              v.GetDuration("serverWriteTimeout"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetString("databasePort"),
			Name:          v.GetString("databaseName"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			DisableTLS:    v.GetBool("databaseDisableTLS"),
			InMemory:      v.GetBool("databaseInMemory"),
			TestURL:       v.GetString("databaseTestURL"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redisAddress"),
			Password: v.GetString("redisPassword"),
			DB:       v.GetInt("redisDB"),
		},
		Content: ContentConfig{
			BaseURL: strings.TrimRight(v.GetString("contentBaseURL"), "/"),
			Token:   v.GetString("contentToken"),
			Timeout: v.GetDuration("contentTimeout"),
		},
		Progress: ProgressConfig{
			TestCutoff:         v.GetInt("progressTestCutoff"),
			CooldownUnit:       v.GetDuration("progressCooldownUnit"),
			SecondsPerQuestion: v.GetInt("progressSecondsPerQuestion"),
			SessionGrace:       v.GetDuration("progressSessionGrace"),
			SubmitLockTTL:      v.GetDuration("progressSubmitLockTTL"),
		},
		Scheduler: SchedulerConfig{
			Enabled:      v.GetBool("schedulerEnabled"),
			CooldownSpec: v.GetString("schedulerCooldownSpec"),
			SessionSpec:  v.GetString("schedulerSessionSpec"),
		},
	}
}

// NewTestConfig returns the configuration used by tests.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Env = "TEST"
	conf.TestMode = true
	conf.Debug = false
	conf.SecretKey = "test-secret-key"
	conf.Database.InMemory = true
	conf.Redis.Address = ""
	conf.Scheduler.Enabled = false
	return conf
}
