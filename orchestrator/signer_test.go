package orchestrator

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/keychain"
	"github.com/stretchr/testify/require"

	"github.com/arkade-os/go-swap-engine/crypto"
	"github.com/arkade-os/go-swap-engine/vhtlc"
)

func TestLocalSignerSignWritesWitnessOntoFirstInput(t *testing.T) {
	script, _, _ := buildTestScript(t)
	leafScript, _ := script.LeafScript(vhtlc.LeafClaim)

	pkScript, err := txscript.PayToTaprootScript(script.OutputKey)
	require.NoError(t, err)

	ring, err := crypto.NewKeyRing(make([]byte, 32), &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	locator := keychain.KeyLocator{Family: crypto.KeyFamilyVHTLCUser, Index: 0}
	signer := NewLocalSigner(ring, locator)
	signer.LeafScript = leafScript
	signer.PrevOut = &wire.TxOut{Value: 50_000, PkScript: pkScript}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	tx.AddTxOut(&wire.TxOut{Value: 49_000, PkScript: pkScript})

	packet, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, packet.Serialize(&buf))
	psbtB64 := base64.StdEncoding.EncodeToString(buf.Bytes())

	signedB64, err := signer.Sign(context.Background(), psbtB64)
	require.NoError(t, err)
	require.NotEmpty(t, signedB64)

	signedPacket, err := psbt.NewFromRawBytes(strings.NewReader(signedB64), true)
	require.NoError(t, err)
	require.Len(t, signedPacket.UnsignedTx.TxIn[0].Witness, 2)
	require.Equal(t, leafScript, []byte(signedPacket.UnsignedTx.TxIn[0].Witness[1]))
}
