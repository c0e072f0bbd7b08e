package orchestrator

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/musig2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/arkade-os/go-swap-engine/crypto"
	"github.com/arkade-os/go-swap-engine/vhtlc"
)

func genKey(t *testing.T) (*btcec.PrivateKey, [32]byte) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	var xonly [32]byte
	copy(xonly[:], schnorr.SerializePubKey(priv.PubKey()))
	return priv, xonly
}

func buildTestScript(t *testing.T) (*vhtlc.Script, [32]byte, [20]byte) {
	t.Helper()
	_, senderX := genKey(t)
	_, receiverX := genKey(t)
	_, serverX := genKey(t)

	var preimage [32]byte
	copy(preimage[:], []byte("deadbeefdeadbeefdeadbeefdeadbeef"))
	hash := crypto.HashPreimage(preimage)

	senderPub, _ := schnorr.ParsePubKey(senderX[:])
	receiverPub, _ := schnorr.ParsePubKey(receiverX[:])
	serverPub, _ := schnorr.ParsePubKey(serverX[:])

	internalKey, _, _, err := musig2.AggregateKeys(
		[]*btcec.PublicKey{senderPub, receiverPub, serverPub}, false,
	)
	require.NoError(t, err)

	script, err := vhtlc.Build(vhtlc.Options{
		Sender:               senderX,
		Receiver:             receiverX,
		Server:               serverX,
		PreimageHash:         hash,
		RefundLocktime:       144,
		UnilateralClaimDelay: 10,
	}, internalKey.FinalKey)
	require.NoError(t, err)

	return script, preimage, hash
}

func TestClaimWitnessLayout(t *testing.T) {
	script, preimage, _ := buildTestScript(t)
	sig := make([]byte, schnorr.SignatureSize)

	witness, err := ClaimWitness(script, preimage, sig)
	require.NoError(t, err)
	t.Logf("claim witness: %v", spew.Sdump(witness))
	require.Len(t, witness, 4)
	require.Equal(t, preimage[:], []byte(witness[0]))
	require.Equal(t, sig, []byte(witness[1]))

	leafScript, _ := script.LeafScript(vhtlc.LeafClaim)
	require.Equal(t, leafScript, []byte(witness[2]))
}

func TestClaimWitnessRejectsMissingSig(t *testing.T) {
	script, preimage, _ := buildTestScript(t)
	_, err := ClaimWitness(script, preimage, nil)
	require.ErrorIs(t, err, ErrMissingSigner)
}

func TestRefundCooperativeWitnessOrdersSenderSigLast(t *testing.T) {
	script, _, _ := buildTestScript(t)
	senderSig := []byte("sender-sig")
	receiverSig := []byte("receiver-sig")

	witness, err := RefundCooperativeWitness(script, senderSig, receiverSig)
	require.NoError(t, err)
	require.Equal(t, receiverSig, []byte(witness[0]))
	require.Equal(t, senderSig, []byte(witness[1]))
}

func TestClaimCooperativeWitnessOrdersServerSigFirst(t *testing.T) {
	script, _, _ := buildTestScript(t)
	receiverSig := []byte("receiver-sig")
	serverSig := []byte("server-sig")

	witness, err := ClaimCooperativeWitness(script, receiverSig, serverSig)
	require.NoError(t, err)
	require.Equal(t, serverSig, []byte(witness[0]))
	require.Equal(t, receiverSig, []byte(witness[1]))
}
