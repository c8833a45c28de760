package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Address         string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Timeout       time.Duration
	}

	SchedulerConfig struct {
		PollInterval    time.Duration
		RefreshInterval time.Duration
	}

	Config struct {
		Env          string
		Build        string
		AppName      string
		SecretKey    string
		RollbarToken string
		Debug        bool
		TestMode     bool

		Server    ServerConfig
		Database  DatabaseConfig
		Scheduler SchedulerConfig
	}
)

// Address returns the "host:port" of the database server.
func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

func (db DatabaseConfig) InMemory() bool {
	return db.Engine == "memory"
}

// NewConfig loads the configuration of the current environment.
// Values are read from `<ENV>_*` environment variables, optionally pre-loaded from config/.env.<env>.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("appName", "Syllabus")
	conf.SetDefault("build", "dev")
	conf.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.name", "syllabus")
	conf.SetDefault("database.user", "syllabus")
	conf.SetDefault("database.password", "")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("database.timeout", 5*time.Second)
	conf.SetDefault("scheduler.pollInterval", 30*time.Second)
	conf.SetDefault("scheduler.refreshInterval", 5*time.Minute)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        conf.GetString("build"),
		AppName:      conf.GetString("appName"),
		SecretKey:    conf.GetString("secretKey"),
		RollbarToken: conf.GetString("rollbarToken"),
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		Server: ServerConfig{
			Host:            conf.GetString("server.host"),
			Address:         conf.GetString("server.address"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
			Timeout:       conf.GetDuration("database.timeout"),
		},
		Scheduler: SchedulerConfig{
			PollInterval:    conf.GetDuration("scheduler.pollInterval"),
			RefreshInterval: conf.GetDuration("scheduler.refreshInterval"),
		},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s env=%s build=%s db=%s", c.AppName, c.Env, c.Build, c.Database.Engine)
}
