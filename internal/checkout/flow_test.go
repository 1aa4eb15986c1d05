package checkout

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/shopkeeper/pkg/enums"
	"github.com/stretchr/testify/require"
)

func TestStartOpensCustomerStep(t *testing.T) {
	flow := Start()
	require.NotEmpty(t, flow.ID)
	require.Equal(t, enums.CheckoutStateCollectingCustomer, flow.State)
	require.False(t, flow.CanCommit())
	require.True(t, flow.CanCancel())
}

func TestFlowRoundTripsThroughJSON(t *testing.T) {
	flow := &Flow{
		ID:         "f-1",
		State:      enums.CheckoutStateAborted,
		CustomerID: 4,
		Payment:    enums.PaymentMethodCredit,
		LastError:  "INSUFFICIENT_STOCK",
	}
	raw, err := json.Marshal(flow)
	require.NoError(t, err)

	var back Flow
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, *flow, back)
	require.True(t, back.CanCommit())
}

func TestCanCancelStopsAtCommit(t *testing.T) {
	for state, want := range map[enums.CheckoutState]bool{
		enums.CheckoutStateCollectingCustomer: true,
		enums.CheckoutStateCollectingPayment:  true,
		enums.CheckoutStateAborted:            true,
		enums.CheckoutStateCommitting:         false,
		enums.CheckoutStateDone:               false,
	} {
		flow := &Flow{State: state}
		require.Equal(t, want, flow.CanCancel(), state)
	}
	var nilFlow *Flow
	require.False(t, nilFlow.CanCancel())
}
