package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Rooms    []RoomTemplate `mapstructure:"rooms"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ServerConfig struct {
	WSAddress      string        `mapstructure:"ws_address"`
	MetricsAddress string        `mapstructure:"metrics_address"`
	RPCAddress     string        `mapstructure:"rpc_address"`
	MaxSessions    int           `mapstructure:"max_sessions"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
}

// RoomTemplate describes one game type's waiting rooms. Every room
// instance created for the type is stamped from the same template.
type RoomTemplate struct {
	GameType   string        `mapstructure:"game_type"`
	MinPlayers int           `mapstructure:"min_players"`
	MaxPlayers int           `mapstructure:"max_players"`
	WaitTime   time.Duration `mapstructure:"wait_time"`
}

type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Driver   string         `mapstructure:"driver"` // "gorm" or "pq"
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.ws_address", ":12345")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("server.rpc_address", ":12346")
	viper.SetDefault("server.max_sessions", 10)
	viper.SetDefault("server.send_timeout", 5*time.Second)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if len(config.Rooms) == 0 {
		config.Rooms = DefaultRoomTemplates()
	}
	return
}

// DefaultRoomTemplates returns the built-in room set used when the
// config file does not define any.
func DefaultRoomTemplates() []RoomTemplate {
	return []RoomTemplate{
		{GameType: "Room1", MinPlayers: 1, MaxPlayers: 2, WaitTime: 5 * time.Second},
		{GameType: "Room2", MinPlayers: 2, MaxPlayers: 4, WaitTime: 20 * time.Second},
		{GameType: "Room3", MinPlayers: 2, MaxPlayers: 4, WaitTime: 10 * time.Second},
	}
}
