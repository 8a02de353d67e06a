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

package main

import (
	"context"
	"flag"
	"fmt"
	"regexp"

	"bank-dashboard-client-go/internal/common"
	"bank-dashboard-client-go/internal/config"
	"bank-dashboard-client-go/internal/models"
	"bank-dashboard-client-go/internal/notify"
	"bank-dashboard-client-go/internal/transport"

	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func parseAndValidateFlags() (*models.SignupRequest, error) {
	firstName := flag.String("first", "", "First name (required)")
	lastName := flag.String("last", "", "Last name (required)")
	username := flag.String("username", "", "Username (required)")
	email := flag.String("email", "", "Email address (required)")
	password := flag.String("password", "", "Password (required)")
	flag.Parse()

	if *firstName == "" || *lastName == "" || *username == "" || *email == "" || *password == "" {
		return nil, fmt.Errorf("all flags are required: --first, --last, --username, --email, --password")
	}
	if !emailRegex.MatchString(*email) {
		return nil, fmt.Errorf("invalid email format: %s", *email)
	}

	return &models.SignupRequest{
		FirstName: *firstName,
		LastName:  *lastName,
		Username:  *username,
		Email:     *email,
		Password:  *password,
	}, nil
}

func main() {
	req, err := parseAndValidateFlags()
	if err != nil {
		flag.Usage()
		fmt.Printf("\nError: %v\n", err)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()

	sink := notify.NewConsoleSink()
	services, err := common.InitializeServices(ctx, cfg, sink)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if err := services.Transport.Signup(ctx, *req); err != nil {
		sink.Publish(notify.Event{
			Level:   notify.LevelError,
			Message: transport.UserMessage(err, "Registration failed"),
		})
		zap.L().Fatal("Signup failed", zap.Error(err))
	}

	sink.Publish(notify.Event{
		Level:   notify.LevelSuccess,
		Message: "Registration successful! Please login.",
	})
	fmt.Printf("\nUser %s registered. Log in with the dashboard tool.\n", req.Username)
}
