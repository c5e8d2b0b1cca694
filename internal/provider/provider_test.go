package provider

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"yieldfetcher/internal/opportunity"
)

func TestFetchError_Unwrap(t *testing.T) {
	t.Parallel()

	err := error(&FetchError{Provider: "lidosteth", Op: OpRequest, Err: io.ErrUnexpectedEOF})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, "lidosteth: request: unexpected EOF", err.Error())

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, OpRequest, fe.Op)
}

func TestMappingError_Unwrap(t *testing.T) {
	t.Parallel()

	err := error(&MappingError{Provider: "defillama", Record: "pool-1", Err: opportunity.ErrUnknownChain})
	require.ErrorIs(t, err, opportunity.ErrUnknownChain)
}

func TestValidated_DropsInvalid(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	now := time.Now().UTC()
	good := opportunity.Opportunity{
		ID: "a", Name: "A", Provider: "p", Asset: "ETH",
		Chain: opportunity.ChainEthereum, APR: decimal.RequireFromString("0.02"),
		Category: opportunity.CategoryStaking, Liquidity: opportunity.Liquid,
		RiskScore: 3, YieldDate: now, UpdatedAt: now,
	}
	bad := good
	bad.ID = "b"
	bad.RiskScore = 42

	in := []opportunity.Opportunity{good, bad}
	out := Validated(zap.New(core), "p", in)

	require.Len(t, out, 1)
	require.Equal(t, "a", out[0].ID)
	require.Equal(t, 1, logs.FilterMessage("dropping invalid record").Len())
	// The input slice is left untouched.
	require.Equal(t, "b", in[1].ID)
}
