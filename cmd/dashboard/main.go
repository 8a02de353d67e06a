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
	"os"
	"os/signal"
	"syscall"
	"time"

	"bank-dashboard-client-go/internal/common"
	"bank-dashboard-client-go/internal/config"
	"bank-dashboard-client-go/internal/models"
	"bank-dashboard-client-go/internal/notify"

	"go.uber.org/zap"
)

func printAccounts(accounts []models.Account) {
	if len(accounts) == 0 {
		fmt.Println("No accounts found. Create your first account with the accounts tool.")
		return
	}
	for i, account := range accounts {
		prefix := common.BoxPrefix(i == len(accounts)-1)
		fmt.Printf("%s %-8s %s  %15s\n",
			prefix,
			account.AccountType,
			common.MaskAccountNumber(account.AccountNumber),
			common.FormatAmount(account.Balance))
	}
}

func printDashboard(services *common.Services, user models.UserIdentity) {
	accounts := services.Cache.Snapshot()
	fmt.Printf("\n┌─ %s (%s)\n", user.FullName(), user.Email)
	fmt.Printf("│  Active accounts: %d\n", len(accounts))
	fmt.Printf("│  Total balance:   %s\n", common.FormatAmount(services.Cache.TotalBalance()))
	common.PrintBoxSeparator(60)
	printAccounts(accounts)
}

func main() {
	username := flag.String("username", "", "Username to log in with (not needed when a session is saved)")
	password := flag.String("password", "", "Password to log in with")
	logout := flag.Bool("logout", false, "Log out, clear the saved session and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := notify.NewConsoleSink()
	services, err := common.InitializeServices(ctx, cfg, sink)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *logout {
		// Validate first so teardown has something to clear, then end
		// the session explicitly.
		if _, err := services.Session.Resume(ctx); err == nil {
			services.Session.Logout(ctx)
		} else {
			fmt.Println("No saved session to log out from")
		}
		return
	}

	sess, err := common.ResumeOrLogin(ctx, services, *username, *password)
	if err != nil {
		zap.L().Fatal("Unable to establish a session", zap.Error(err))
	}

	// The scheduler is already polling (it follows the session), so the
	// dashboard only needs an initial fetch and a render loop over the
	// cache snapshots.
	if _, err := services.Cache.Refresh(ctx); err != nil {
		zap.L().Warn("Initial account fetch failed", zap.Error(err))
	}
	printDashboard(services, sess.User)

	zap.L().Info("Dashboard running",
		zap.Duration("polling_interval", cfg.Refresh.PollingInterval),
		zap.Bool("stream_enabled", cfg.Stream.Enabled))
	fmt.Println("\nPress Ctrl+C to exit (the session stays saved; use --logout to end it)")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Refresh.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !services.Session.Authenticated() {
				zap.L().Warn("Session ended, shutting down dashboard")
				return
			}
			printDashboard(services, sess.User)
		case <-sigChan:
			zap.L().Info("Shutdown signal received")
			services.Scheduler.Stop()
			if services.Stream != nil {
				services.Stream.Stop()
			}

			done := make(chan struct{})
			go func() {
				services.Scheduler.Wait()
				if services.Stream != nil {
					services.Stream.Wait()
				}
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(10 * time.Second):
				zap.L().Warn("Shutdown timed out")
			}
			return
		}
	}
}
