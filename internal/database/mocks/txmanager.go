// Package mocks provides mock implementations of the database package interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
)

// MockTxManager is a mock implementation of database.TxManager. Unless an
// error is configured, WithTx runs fn with the given context.
type MockTxManager struct {
	mock.Mock
}

// NewMockTxManager creates a MockTxManager that runs every unit of work.
// Use On("WithTx", ...).Return(err) before the first call to make it fail instead.
func NewMockTxManager(t *testing.T) *MockTxManager {
	m := &MockTxManager{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Passthrough makes WithTx run fn for any number of calls.
func (m *MockTxManager) Passthrough() *MockTxManager {
	m.On("WithTx", mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}

// WithTx mocks the WithTx method of TxManager.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}
