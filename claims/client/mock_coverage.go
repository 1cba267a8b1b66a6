package client

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCoverageClient is the deterministic test double for APIClient.
type MockCoverageClient struct {
	mock.Mock
}

var _ APIClient = &MockCoverageClient{}

func (m *MockCoverageClient) VerifyCoverage(ctx context.Context, req CoverageRequest) (*CoverageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CoverageResponse), args.Error(1)
}

func (m *MockCoverageClient) GetClaimHistory(ctx context.Context, policyNumber, patientName string) (*ClaimHistoryResponse, error) {
	args := m.Called(ctx, policyNumber, patientName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ClaimHistoryResponse), args.Error(1)
}
