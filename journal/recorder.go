package journal

import (
	"context"

	"go.uber.org/zap"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/signing"
)

// Recorder journals every submission made through the wrapped client.
// A failure to journal is logged and does not affect the submission.
type Recorder struct {
	chain.Client
	journal *Journal
}

func NewRecorder(c chain.Client, j *Journal) *Recorder {
	return &Recorder{Client: c, journal: j}
}

func (r *Recorder) SignAndSendExtrinsic(
	ctx context.Context,
	call *chain.Call,
	wallet *signing.Wallet,
	opts chain.SendOptions,
) chain.SubmissionResult {
	result := r.Client.SignAndSendExtrinsic(ctx, call, wallet, opts)

	signer := wallet.ColdkeyID()
	if opts.SignWith == signing.Hotkey {
		signer = wallet.HotkeyID()
	}
	record := NewRecord(call, signer.String(), opts, result)
	if err := r.journal.Save(ctx, record); err != nil {
		logging.FromContext(ctx).Warn("failed to journal submission", zap.Error(err), zap.Object("record", &record))
	}
	return result
}
