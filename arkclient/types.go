package arkclient

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// Info is getInfo's result, per spec §6.2.
type Info struct {
	Network              string `json:"network"`
	SignerPubkey         string `json:"signerPubkey"`
	ForfeitPubkey        string `json:"forfeitPubkey"`
	ForfeitAddress       string `json:"forfeitAddress"`
	CheckpointTapscript  string `json:"checkpointTapscript"`
	Dust                 uint64 `json:"dust"`
}

// RegisterMessage is the intent payload for registerIntent, per spec
// §4.5.5: carries the cosigner public keys the user wants included in the
// next commitment round.
type RegisterMessage struct {
	CosignersPublicKeys []string `json:"cosigners_public_keys"`
	Inputs              []IntentInput `json:"inputs"`
}

// DeleteMessage undoes a RegisterMessage, per spec §4.5.5.
type DeleteMessage struct {
	IntentID string `json:"intent_id"`
}

// IntentInput describes one VTXO offered into a registered intent, per spec
// §4.5.5 step 3.
type IntentInput struct {
	Txid          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Amount        uint64 `json:"amount"`
	Script        string `json:"script"`
	TapLeafScript string `json:"tapLeafScript"`
	TapTree       string `json:"tapTree"`
	Sequence      uint32 `json:"sequence"`
}

// SignedIntent pairs an intent message with the signature proving
// authorization over it.
type SignedIntent struct {
	Message   interface{} `json:"message"`
	Signature string      `json:"proof"`
}

// RegisterIntentResponse carries the server-assigned intent id.
type RegisterIntentResponse struct {
	IntentID string `json:"intentId"`
}

// SubmitTxResponse is submitTx's result, per spec §6.2/§4.5.4.
type SubmitTxResponse struct {
	ArkTxid             string   `json:"arkTxid"`
	FinalArkTx          string   `json:"finalArkTx"`
	SignedCheckpointTxs []string `json:"signedCheckpointTxs"`
}

// Vtxo is one element of the indexer's getVtxos result, per spec §6.2.
type Vtxo struct {
	Txid    string `json:"txid"`
	Vout    uint32 `json:"vout"`
	Value   uint64 `json:"value"`
	IsSpent bool   `json:"isSpent"`
}

// VtxosResponse is the indexer getVtxos result.
type VtxosResponse struct {
	Vtxos []Vtxo `json:"vtxos"`
}

// Hash parses v's txid as a chainhash.Hash, the representation the rest of
// the btcsuite tooling (txscript, wire) expects, per the teacher's
// mempool client's use of chainhash.Hash for every txid it tracks.
func (v Vtxo) Hash() (chainhash.Hash, error) {
	return chainhash.NewHashFromStr(v.Txid)
}

// Event is one element of the server event stream (getEventStream), used
// during join_batch to observe forfeit/commitment signing rounds.
type Event struct {
	Topic string `json:"topic"`
	Data  []byte `json:"data"`
}
