package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		CORSAllowedOrigins        []string
		SubmitRatePerMinute       int
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
	}

	// PushConfig configures the push gateway client and the notification fan-out.
	PushConfig struct {
		Endpoint      string
		AccessToken   string
		ChunkSize     int
		MaxAttempts   int
		BaseDelay     time.Duration
		MaxDelay      time.Duration
		Timeout       time.Duration
		Concurrency   int
		RatePerSecond float64
	}

	// Config is built once at startup and passed down to whoever needs it.
	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Push     PushConfig
	}
)

func (dbc DatabaseConfig) Address() string {
	if dbc.Port == "" {
		return dbc.Host
	}
	return dbc.Host + ":" + dbc.Port
}

// NewConfig reads the configuration from the environment (and the optional `config/.env.<env>` file).
// Variables are prefixed with the environment name, e.g. `PROD_DATABASE_HOST`.
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v, env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		AppName:         v.GetString("appName"),
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("defaultFromName"),
			Address: v.GetString("defaultFromEmail"),
		},
		SendgridAPIKey: v.GetString("sendgridAPIKey"),
		RollbarToken:   v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			CORSAllowedOrigins:        v.GetStringSlice("server.corsAllowedOrigins"),
			SubmitRatePerMinute:       v.GetInt("server.submitRatePerMinute"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Push: PushConfig{
			Endpoint:      v.GetString("push.endpoint"),
			AccessToken:   v.GetString("push.accessToken"),
			ChunkSize:     v.GetInt("push.chunkSize"),
			MaxAttempts:   v.GetInt("push.maxAttempts"),
			BaseDelay:     v.GetDuration("push.baseDelay"),
			MaxDelay:      v.GetDuration("push.maxDelay"),
			Timeout:       v.GetDuration("push.timeout"),
			Concurrency:   v.GetInt("push.concurrency"),
			RatePerSecond: v.GetFloat64("push.ratePerSecond"),
		},
	}
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("appName", "Ark of God")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("secretKey", "k2v!7hq_s9w#r@4u$bz1(e)x8m^c0p&n3yt6l-fgj5da")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromName", "Ark of God")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.corsAllowedOrigins", []string{
		"https://arkofgod.online",
		"https://admin.arkofgod.online",
		"http://localhost:3000",
	})
	v.SetDefault("server.submitRatePerMinute", 10)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "ark")
	v.SetDefault("database.user", "ark")
	v.SetDefault("database.password", "ark")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")

	v.SetDefault("push.endpoint", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("push.accessToken", "")
	v.SetDefault("push.chunkSize", 100)
	v.SetDefault("push.maxAttempts", 3)
	v.SetDefault("push.baseDelay", 500*time.Millisecond)
	v.SetDefault("push.maxDelay", 5*time.Second)
	v.SetDefault("push.timeout", 10*time.Second)
	v.SetDefault("push.concurrency", 4)
	v.SetDefault("push.ratePerSecond", 0)
}

// NewTestConfig returns the configuration used by tests, independent of the environment.
func NewTestConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v, "TEST")
	conf := &Config{
		AppName:          v.GetString("appName"),
		Env:              "TEST",
		Build:            "test",
		Debug:            false,
		TestMode:         true,
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{Name: v.GetString("defaultFromName"), Address: v.GetString("defaultFromEmail")},
	}
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwtRefreshExpirationDelta")
	conf.Server.CORSAllowedOrigins = v.GetStringSlice("server.corsAllowedOrigins")
	conf.Push = PushConfig{ChunkSize: 100, MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Timeout: time.Second, Concurrency: 4}
	return conf
}
