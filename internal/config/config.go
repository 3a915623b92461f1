// Package config loads BimAtlas configuration from the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the store location, graph name and listener settings.
type Config struct {
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	GraphName  string
	Port       int
}

// Load reads configuration from the environment. Recognized keys:
// DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD, GRAPH_NAME, PORT.
func Load() *Config {
	v := viper.New()
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_name", "bimatlas")
	v.SetDefault("db_user", "bimatlas")
	v.SetDefault("db_password", "")
	v.SetDefault("graph_name", "bimatlas")
	v.SetDefault("port", 8080)
	v.AutomaticEnv()

	return &Config{
		DBHost:     v.GetString("db_host"),
		DBPort:     v.GetInt("db_port"),
		DBName:     v.GetString("db_name"),
		DBUser:     v.GetString("db_user"),
		DBPassword: v.GetString("db_password"),
		GraphName:  v.GetString("graph_name"),
		Port:       v.GetInt("port"),
	}
}

// DSN builds a key/value Postgres connection string. Values with spaces or
// quotes are single-quoted and escaped.
func (c *Config) DSN() string {
	parts := []string{
		"host=" + dsnValue(c.DBHost),
		fmt.Sprintf("port=%d", c.DBPort),
		"dbname=" + dsnValue(c.DBName),
		"user=" + dsnValue(c.DBUser),
		"sslmode=disable",
	}
	if c.DBPassword != "" {
		parts = append(parts, "password="+dsnValue(c.DBPassword))
	}
	return strings.Join(parts, " ")
}

// ListenAddr returns the HTTP listener address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func dsnValue(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " '\\") {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
