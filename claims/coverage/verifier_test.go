package coverage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/medassure/claims-engine/claims/client"
	"github.com/medassure/claims-engine/claims/constants"
	"github.com/medassure/claims-engine/claims/metadata"
)

func TestVerifyShortPolicyNumberFastPath(t *testing.T) {
	mockClient := &client.MockCoverageClient{}
	v := NewVerifier(mockClient, nil, 0)

	record := v.Verify(context.Background(), "POL123", "Jane Roe", 41)

	assert.False(t, record.Covered)
	assert.Equal(t, constants.PolicyStatusInvalid, record.PolicyStatus)
	assert.Contains(t, record.Error, "syntactic validation")
	// No network call happens for implausible policy numbers
	mockClient.AssertNotCalled(t, "VerifyCoverage", mock.Anything, mock.Anything)
}

func TestVerifyTransportFailureDegrades(t *testing.T) {
	mockClient := &client.MockCoverageClient{}
	mockClient.On("VerifyCoverage", mock.Anything, mock.Anything).
		Return(nil, errors.New("dial tcp: connection refused"))
	v := NewVerifier(mockClient, nil, 10)

	record := v.Verify(context.Background(), "POL12345678901", "Jane Roe", 41)

	assert.False(t, record.Covered)
	assert.Equal(t, constants.PolicyStatusError, record.PolicyStatus)
	assert.Contains(t, record.Error, "connection refused")
	assert.False(t, record.VerifiedAt.IsZero())
}

func TestVerifyWellFormedResponse(t *testing.T) {
	mockClient := &client.MockCoverageClient{}
	mockClient.On("VerifyCoverage", mock.Anything, client.CoverageRequest{
		PolicyNumber: "POL12345678901", PatientName: "Jane Roe", PatientAge: 41,
	}).Return(&client.CoverageResponse{
		Covered:            true,
		PolicyStatus:       "active",
		SumInsured:         "500000",
		BalanceSumInsured:  "350000",
		RoomRentLimit:      "5000",
		CoPaymentPercent:   "10",
		Deductible:         "1000",
		PreExistingCovered: true,
	}, nil)
	v := NewVerifier(mockClient, nil, 10)

	record := v.Verify(context.Background(), "POL12345678901", "Jane Roe", 41)

	assert.True(t, record.Covered)
	assert.Equal(t, constants.PolicyStatusActive, record.PolicyStatus)
	assert.True(t, record.Active())
	assert.True(t, decimal.NewFromInt(350000).Equal(record.BalanceSumInsured))
	assert.True(t, decimal.NewFromInt(10).Equal(record.CoPaymentPercent))
	assert.Empty(t, record.Notes)
}

func TestVerifyMalformedAmountsDegradePerField(t *testing.T) {
	mockClient := &client.MockCoverageClient{}
	mockClient.On("VerifyCoverage", mock.Anything, mock.Anything).
		Return(&client.CoverageResponse{
			Covered:           true,
			PolicyStatus:      "ACTIVE",
			SumInsured:        "five lakh",
			BalanceSumInsured: "350000",
		}, nil)
	v := NewVerifier(mockClient, nil, 10)

	record := v.Verify(context.Background(), "POL12345678901", "Jane Roe", 41)

	assert.True(t, record.Covered)
	assert.True(t, record.SumInsured.IsZero())
	assert.True(t, decimal.NewFromInt(350000).Equal(record.BalanceSumInsured))
	assert.Len(t, record.Notes, 1)
	assert.Contains(t, record.Notes[0], "sum_insured")
}

func TestVerifyUnknownStatusNotPayable(t *testing.T) {
	mockClient := &client.MockCoverageClient{}
	mockClient.On("VerifyCoverage", mock.Anything, mock.Anything).
		Return(&client.CoverageResponse{Covered: true, PolicyStatus: "LAPSED"}, nil)
	v := NewVerifier(mockClient, nil, 10)

	record := v.Verify(context.Background(), "POL12345678901", "Jane Roe", 41)
	assert.Equal(t, constants.PolicyStatusInvalid, record.PolicyStatus)
	assert.False(t, record.Active())
}

func TestVerifyStaleRecordStampedFromLedger(t *testing.T) {
	store := metadata.NewStore(filepath.Join(t.TempDir(), "policy_metadata.json"))
	_, err := store.RecordFamilyUpdate("Acme Health", "Gold Plan", []string{"spouse"}, nil, "", "ops")
	assert.NoError(t, err)
	_, err = store.RecordPPNUpdate("Acme Health", "Gold Plan", []string{"City Hospital"}, nil, "", "ops")
	assert.NoError(t, err)

	mockClient := &client.MockCoverageClient{}
	mockClient.On("VerifyCoverage", mock.Anything, mock.Anything).
		Return(&client.CoverageResponse{
			Covered:       true,
			PolicyStatus:  "ACTIVE",
			Insurer:       "Acme Health",
			Product:       "Gold Plan",
			PolicyVersion: 1,
		}, nil)
	v := NewVerifier(mockClient, store, 10)

	record := v.Verify(context.Background(), "POL12345678901", "Jane Roe", 41)

	assert.Equal(t, 2, record.PolicyVersion)
	assert.Len(t, record.Notes, 1)
	assert.Contains(t, record.Notes[0], constants.ChangeTypePPNUpdate)
}

func TestVerifyCurrentRecordLeftAlone(t *testing.T) {
	store := metadata.NewStore(filepath.Join(t.TempDir(), "policy_metadata.json"))
	_, err := store.RecordFamilyUpdate("Acme Health", "Gold Plan", []string{"spouse"}, nil, "", "ops")
	assert.NoError(t, err)

	mockClient := &client.MockCoverageClient{}
	mockClient.On("VerifyCoverage", mock.Anything, mock.Anything).
		Return(&client.CoverageResponse{
			Covered:       true,
			PolicyStatus:  "ACTIVE",
			Insurer:       "Acme Health",
			Product:       "Gold Plan",
			PolicyVersion: 1,
		}, nil)
	v := NewVerifier(mockClient, store, 10)

	record := v.Verify(context.Background(), "POL12345678901", "Jane Roe", 41)
	assert.Equal(t, 1, record.PolicyVersion)
	assert.Empty(t, record.Notes)
}

func TestClaimHistory(t *testing.T) {
	mockClient := &client.MockCoverageClient{}
	mockClient.On("GetClaimHistory", mock.Anything, "POL12345678901", "Jane Roe").
		Return(&client.ClaimHistoryResponse{
			TotalClaims: 2,
			Claims: []client.PastClaimResponse{
				{ID: "CLM-1", Date: "2023-03-01", ClaimedAmount: "20000", ApprovedAmount: "18000", Status: "SETTLED"},
				{ID: "CLM-2", Date: "2023-11-12", ClaimedAmount: "4500", ApprovedAmount: "4500", Status: "SETTLED"},
			},
		}, nil)
	v := NewVerifier(mockClient, nil, 10)

	history := v.ClaimHistory(context.Background(), "POL12345678901", "Jane Roe")

	assert.Empty(t, history.Error)
	assert.Equal(t, 2, history.TotalClaims)
	assert.True(t, decimal.NewFromInt(24500).Equal(history.TotalClaimed))
	assert.True(t, decimal.NewFromInt(22500).Equal(history.TotalApproved))
}

func TestClaimHistoryDegradesToZeroClaims(t *testing.T) {
	mockClient := &client.MockCoverageClient{}
	mockClient.On("GetClaimHistory", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("service unavailable"))
	v := NewVerifier(mockClient, nil, 10)

	history := v.ClaimHistory(context.Background(), "POL12345678901", "Jane Roe")

	assert.Equal(t, 0, history.TotalClaims)
	assert.Empty(t, history.Claims)
	assert.Contains(t, history.Error, "service unavailable")
}
