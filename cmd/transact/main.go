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
	"bank-dashboard-client-go/internal/notify"
	"bank-dashboard-client-go/internal/transactions"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func parseAndValidateFlags() (*transactions.Request, string, string, error) {
	username := flag.String("username", "", "Username to log in with (not needed when a session is saved)")
	password := flag.String("password", "", "Password to log in with")
	kind := flag.String("type", "", "Transaction type: deposit, withdrawal or transfer (required)")
	account := flag.Int64("account", 0, "Account id for deposit/withdrawal")
	from := flag.Int64("from", 0, "Source account id for transfer")
	to := flag.Int64("to", 0, "Destination account id for transfer")
	amount := flag.String("amount", "", "Amount (required)")
	description := flag.String("description", "", "Optional description")
	flag.Parse()

	if *kind == "" || *amount == "" {
		return nil, "", "", fmt.Errorf("--type and --amount are required")
	}

	value, err := decimal.NewFromString(*amount)
	if err != nil {
		return nil, "", "", fmt.Errorf("invalid amount format: %w", err)
	}

	req := &transactions.Request{
		Kind:          transactions.Kind(*kind),
		AccountId:     *account,
		FromAccountId: *from,
		ToAccountId:   *to,
		Amount:        value,
		Description:   *description,
	}
	// Local validation before anything touches the network; the
	// submitter repeats this, but failing here gives flag-level errors.
	if err := req.Validate(); err != nil {
		return nil, "", "", err
	}
	return req, *username, *password, nil
}

func main() {
	req, username, password, err := parseAndValidateFlags()
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

	if _, err := common.ResumeOrLogin(ctx, services, username, password); err != nil {
		zap.L().Fatal("Unable to establish a session", zap.Error(err))
	}

	record, err := services.Submitter.Submit(ctx, *req)
	if err != nil {
		// The sink already carried the user-facing message.
		zap.L().Fatal("Transaction failed", zap.Error(err))
	}

	fmt.Printf("\nConfirmed %s of %s (reference %s, status %s)\n",
		record.TransactionType,
		common.FormatAmount(record.Amount),
		record.Reference,
		record.Status)

	for _, account := range services.Cache.Snapshot() {
		fmt.Printf("  #%d %-8s balance %s\n",
			account.Id, account.AccountType, common.FormatAmount(account.Balance))
	}
}
