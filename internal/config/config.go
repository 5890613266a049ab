package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Configuration struct {
	// DbUrl is the path to the sqlite database holding the stored
	// credentials.
	DbUrl string `mapstructure:"db_url"`
	// MigrationsFolder is the directory containing the schema migrations.
	MigrationsFolder string `mapstructure:"migrations_folder"`
	// ClientName is the application name sent at app registration and shown
	// in the "posted with" line of statuses.
	ClientName string `mapstructure:"client_name"`
	// PageSize is the number of statuses or notifications requested per
	// page.
	PageSize int `mapstructure:"page_size"`
	// Visibility is the default visibility for new posts.
	Visibility string `mapstructure:"visibility"`
	// Debug, if true, makes the application log at debug level.
	Debug bool `mapstructure:"debug"`
}

// ReadConfig loads gotoot.yml from the working directory, falling back to
// environment variables and defaults when the file is absent.
func ReadConfig() (Configuration, error) {
	viper.AddConfigPath(".")
	viper.SetConfigName("gotoot")
	viper.SetConfigType("yml")
	viper.SetEnvPrefix("gotoot")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Configuration{}, err
		}
		log.Debug().Msg("config file not found; using environment variables and defaults")
	}

	viper.SetDefault("db_url", "gotoot.db")
	viper.SetDefault("migrations_folder", "migrations")
	viper.SetDefault("client_name", "gotoot")
	viper.SetDefault("page_size", 20)
	viper.SetDefault("visibility", "public")

	var config Configuration
	if err := viper.Unmarshal(&config); err != nil {
		return Configuration{}, err
	}
	return config, nil
}
