/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"bank-dashboard-client-go/internal/models"

	"gopkg.in/yaml.v2"
)

// Profile is the optional YAML config file. Environment variables
// override anything set here.
type Profile struct {
	BaseURL     string `yaml:"base_url"`
	TokenDBPath string `yaml:"token_db_path"`
	StreamPath  string `yaml:"stream_path"`
}

func Load() (*models.Config, error) {
	profile, err := loadProfile(getEnvString("BANK_PROFILE_FILE", ""))
	if err != nil {
		return nil, err
	}

	pollingInterval, err := getEnvDuration("BANK_POLL_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := getEnvDuration("BANK_HTTP_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	dialTimeout, err := getEnvDuration("BANK_DIAL_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	headerTimeout, err := getEnvDuration("BANK_RESPONSE_HEADER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("BANK_TOKEN_DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	if pollingInterval <= 0 {
		return nil, fmt.Errorf("polling interval must be positive, got %v", pollingInterval)
	}

	return &models.Config{
		API: models.APIConfig{
			BaseURL:               getEnvString("BANK_API_BASE_URL", withDefault(profile.BaseURL, "http://localhost:8080/api")),
			RequestTimeout:        requestTimeout,
			DialTimeout:           dialTimeout,
			ResponseHeaderTimeout: headerTimeout,
			MaxIdleConns:          getEnvInt("BANK_HTTP_MAX_IDLE_CONNS", 10),
			MaxIdleConnsPerHost:   getEnvInt("BANK_HTTP_MAX_IDLE_CONNS_PER_HOST", 5),
		},
		Storage: models.StorageConfig{
			Path:        getEnvString("BANK_TOKEN_DB_PATH", withDefault(profile.TokenDBPath, "bankdash.db")),
			PingTimeout: pingTimeout,
		},
		Refresh: models.RefreshConfig{
			PollingInterval: pollingInterval,
		},
		Stream: models.StreamConfig{
			Enabled: getEnvBool("BANK_STREAM_ENABLED", false),
			Path:    getEnvString("BANK_STREAM_PATH", withDefault(profile.StreamPath, "/ws/accounts")),
		},
	}, nil
}

func loadProfile(path string) (Profile, error) {
	var profile Profile
	if path == "" {
		return profile, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("unable to read profile file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return profile, fmt.Errorf("unable to parse profile file %s: %w", path, err)
	}
	return profile, nil
}

func withDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
