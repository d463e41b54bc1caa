package config

import "time"

func LoadTestConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8081,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Name:     "guildhub_test",
			User:     "test_user",
			Password: "test_password",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		},
		Cache: CacheConfig{
			HotTTL:         5 * time.Minute,
			CategoryTTL:    time.Hour,
			AutoRecruitTTL: 6 * time.Hour,
		},
	}
}
