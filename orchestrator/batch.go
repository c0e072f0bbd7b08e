package orchestrator

import (
	"context"
	"fmt"

	"github.com/arkade-os/go-swap-engine/arkclient"
)

// BatchEventHandler processes one server event during a join_batch round,
// per spec §4.5.5 step 5: it cooperatively signs forfeit and commitment
// transactions. It returns (commitmentTxid, true, nil) once the round is
// final for this intent, or ("", false, nil) to keep waiting on further
// events.
type BatchEventHandler func(ctx context.Context, ev arkclient.Event) (commitmentTxid string, done bool, err error)

// IntentSigner signs a register/delete intent message, returning the
// detached signature to attach as SignedIntent.Signature.
type IntentSigner func(message interface{}) (string, error)

// JoinBatch implements spec §4.5.5: register the VTXO intent, consume the
// server's batch event stream via handler until a commitment is produced or
// ctx is canceled, and best-effort delete the intent on any failure before
// commitment.
func JoinBatch(
	ctx context.Context,
	ark *arkclient.Client,
	signerPublicKey string,
	input arkclient.IntentInput,
	sign IntentSigner,
	handler BatchEventHandler,
) (commitmentTxid string, err error) {
	registerMsg := arkclient.RegisterMessage{
		CosignersPublicKeys: []string{signerPublicKey},
		Inputs:              []arkclient.IntentInput{input},
	}
	registerSig, err := sign(registerMsg)
	if err != nil {
		return "", fmt.Errorf("orchestrator: sign register intent: %w", err)
	}

	deleteMsg := arkclient.DeleteMessage{}
	regResp, err := ark.RegisterIntent(ctx, arkclient.SignedIntent{
		Message:   registerMsg,
		Signature: registerSig,
	})
	if err != nil {
		return "", fmt.Errorf("orchestrator: register intent: %w", err)
	}
	deleteMsg.IntentID = regResp.IntentID

	commitmentTxid, joinErr := joinBatchEvents(ctx, ark, handler)
	if joinErr != nil {
		deleteSig, signErr := sign(deleteMsg)
		if signErr == nil {
			_ = ark.DeleteIntent(ctx, arkclient.SignedIntent{
				Message:   deleteMsg,
				Signature: deleteSig,
			})
		}
		return "", joinErr
	}

	return commitmentTxid, nil
}

func joinBatchEvents(ctx context.Context, ark *arkclient.Client, handler BatchEventHandler) (string, error) {
	events, err := ark.GetEventStream(ctx)
	if err != nil {
		return "", fmt.Errorf("orchestrator: open event stream: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ErrBatchEventTimeout
		case ev, ok := <-events:
			if !ok {
				return "", ErrBatchEventTimeout
			}
			txid, done, err := handler(ctx, ev)
			if err != nil {
				return "", fmt.Errorf("orchestrator: batch event handler: %w", err)
			}
			if done {
				return txid, nil
			}
		}
	}
}
