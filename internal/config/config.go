package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	DBUrl    string `mapstructure:"DB_URL"`
	RedisUrl string `mapstructure:"REDIS_URL"`

	// TagCatalog is an optional YAML file replacing the built-in role tags
	TagCatalog        string `mapstructure:"TAG_CATALOG"`
	Workers           int    `mapstructure:"WORKERS"`
	LenientDirections bool   `mapstructure:"LENIENT_DIRECTIONS"`
	LogFile           string `mapstructure:"LOG_FILE"`
}

func LoadConfig() (c Config, err error) {
	// Get environment type from ENV variable or use development as default
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	viper.SetDefault("PORT", ":8080")
	viper.SetDefault("WORKERS", runtime.GOMAXPROCS(0))
	viper.SetDefault("LENIENT_DIRECTIONS", false)
	viper.SetDefault("LOG_FILE", "bim2osm.log")
	// keys without a default are only picked up from the environment when bound
	viper.SetDefault("DB_URL", "")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("TAG_CATALOG", "")

	// Load environment file
	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Continue even if file is not found
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	err = viper.Unmarshal(&c)
	return
}
