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

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// ChainVerifier is a mock type for the confirmation.ChainVerifier type
type ChainVerifier struct {
	mock.Mock
}

// Verify provides a mock function with given fields: ctx, txHash, from, to, amountNano
func (m *ChainVerifier) Verify(ctx context.Context, txHash, from, to string, amountNano int64) (bool, error) {
	args := m.Called(ctx, txHash, from, to, amountNano)
	return args.Bool(0), args.Error(1)
}

// NewChainVerifier creates a new instance of ChainVerifier. It also registers a cleanup function to assert the mocks expectations.
func NewChainVerifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *ChainVerifier {
	m := &ChainVerifier{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
