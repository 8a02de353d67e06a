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

func printAccountList(accounts []models.Account) {
	if len(accounts) == 0 {
		fmt.Println("No accounts found. Create your first account with --create")
		return
	}
	for i, account := range accounts {
		prefix := common.BoxPrefix(i == len(accounts)-1)
		status := "active"
		if !account.IsActive {
			status = "inactive"
		}
		fmt.Printf("%s #%d %-8s %s  %15s (%s, opened %s)\n",
			prefix,
			account.Id,
			account.AccountType,
			account.AccountNumber,
			common.FormatAmount(account.Balance),
			status,
			account.CreatedAt.Format("2006-01-02"))
	}
}

func main() {
	username := flag.String("username", "", "Username to log in with (not needed when a session is saved)")
	password := flag.String("password", "", "Password to log in with")
	create := flag.String("create", "", "Create an account of this type (SAVINGS, CHECKING, CREDIT) instead of listing")
	flag.Parse()

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

	sess, err := common.ResumeOrLogin(ctx, services, *username, *password)
	if err != nil {
		zap.L().Fatal("Unable to establish a session", zap.Error(err))
	}

	if *create != "" {
		account, err := services.Cache.CreateAccount(ctx, *create)
		if err != nil {
			zap.L().Fatal("Account creation failed", zap.Error(err))
		}
		fmt.Printf("\nOpened %s account %s\n", account.AccountType, account.AccountNumber)
	}

	accounts, err := services.Cache.Refresh(ctx)
	if err != nil {
		zap.L().Fatal("Failed to fetch accounts", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("Accounts for %s", sess.User.FullName()), common.DefaultWidth)
	printAccountList(accounts)
	common.PrintFooter(fmt.Sprintf("Total balance: %s", common.FormatAmount(services.Cache.TotalBalance())), common.DefaultWidth)
}
