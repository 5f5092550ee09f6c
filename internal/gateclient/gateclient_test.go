package gateclient

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zerotype19/gekko3/internal/model"
)

func TestSignProposal_DeterministicAcrossContextOrdering(t *testing.T) {
	base := model.Proposal{
		ID: "p1", Symbol: model.SymbolSPY, Strategy: model.StrategyCreditSpread,
		Side: model.ProposalOpen, Quantity: 1, Price: 1.25,
	}

	p1 := base
	p1.Context = model.Context{"vix": model.NumberContext(18), "flow_state": model.StringContext("RISK_ON")}

	p2 := base
	p2.Context = model.Context{"flow_state": model.StringContext("RISK_ON"), "vix": model.NumberContext(18)}

	_, sig1, err := SignProposal(p1, "secret")
	require.NoError(t, err)
	_, sig2, err := SignProposal(p2, "secret")
	require.NoError(t, err)
	require.Equal(t, sig1, sig2)
}

func TestSignProposal_DifferentSecretsDiffer(t *testing.T) {
	p := model.Proposal{ID: "p1", Symbol: model.SymbolSPY, Strategy: model.StrategyCreditSpread, Side: model.ProposalOpen, Quantity: 1, Price: 1.0}
	_, sigA, err := SignProposal(p, "secret-a")
	require.NoError(t, err)
	_, sigB, err := SignProposal(p, "secret-b")
	require.NoError(t, err)
	require.NotEqual(t, sigA, sigB)
}

func TestSignProposal_IgnoresExistingSignatureField(t *testing.T) {
	p := model.Proposal{ID: "p1", Symbol: model.SymbolSPY, Strategy: model.StrategyCreditSpread, Side: model.ProposalOpen, Quantity: 1, Price: 1.0}
	p.Signature = "stale"
	_, sig1, err := SignProposal(p, "secret")
	require.NoError(t, err)

	p.Signature = "different-stale-value"
	_, sig2, err := SignProposal(p, "secret")
	require.NoError(t, err)
	require.Equal(t, sig1, sig2)
}
