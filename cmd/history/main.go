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

	"bank-dashboard-client-go/internal/common"
	"bank-dashboard-client-go/internal/config"
	"bank-dashboard-client-go/internal/models"
	"bank-dashboard-client-go/internal/notify"

	"go.uber.org/zap"
)

func printHistory(accountId int64, records []models.TransactionRecord) {
	if len(records) == 0 {
		fmt.Println("No transactions found")
		return
	}
	for i, record := range records {
		prefix := common.BoxPrefix(i == len(records)-1)
		line := fmt.Sprintf("%s %s %-10s %s%s  %s",
			prefix,
			record.TimeDisplay(),
			record.TransactionType,
			record.Direction(accountId),
			common.FormatAmount(record.Amount),
			record.Status)
		if record.Description != "" {
			line += "  " + record.Description
		}
		fmt.Println(line)
	}
}

func main() {
	username := flag.String("username", "", "Username to log in with (not needed when a session is saved)")
	password := flag.String("password", "", "Password to log in with")
	account := flag.Int64("account", 0, "Account id to show history for (required)")
	flag.Parse()

	if *account == 0 {
		flag.Usage()
		fmt.Println("\nError: --account is required")
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

	if _, err := common.ResumeOrLogin(ctx, services, *username, *password); err != nil {
		zap.L().Fatal("Unable to establish a session", zap.Error(err))
	}

	records, err := services.Submitter.History(ctx, *account)
	if err != nil {
		zap.L().Fatal("Failed to fetch transaction history", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("Transaction history for account #%d", *account), common.DefaultWidth)
	printHistory(*account, records)
	common.PrintFooter(fmt.Sprintf("%d transaction(s)", len(records)), common.DefaultWidth)
}
