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

package common

import (
	"context"
	"fmt"

	"bank-dashboard-client-go/internal/models"

	"go.uber.org/zap"
)

// ResumeOrLogin establishes a session for a command-line tool: first
// from the persisted token, then with the given credentials. A
// persisted token the server rejects is discarded, never retried.
func ResumeOrLogin(ctx context.Context, services *Services, username, password string) (*models.Session, error) {
	sess, err := services.Session.Resume(ctx)
	if err != nil {
		zap.L().Info("Saved session could not be resumed", zap.Error(err))
	}
	if sess != nil {
		zap.L().Info("Resumed saved session", zap.String("username", sess.User.Username))
		return sess, nil
	}

	if username == "" || password == "" {
		return nil, fmt.Errorf("no saved session; --username and --password are required")
	}
	return services.Session.Login(ctx, username, password)
}
