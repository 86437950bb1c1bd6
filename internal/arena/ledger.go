package arena

import (
	"context"

	"github.com/google/uuid"
)

type ResourceKind string

const (
	ResourceAvatar ResourceKind = "avatar"
	ResourceGift   ResourceKind = "gift"
)

// Ledger assigns uniquely-ownable resources. A claim is a single conditional
// write; on a lost race the current holder is re-read in the same transaction
// and returned in a *ClaimConflict.
type Ledger struct{}

func (Ledger) Claim(ctx context.Context, tx Tx, kind ResourceKind, resourceID, claimant uuid.UUID) error {
	var (
		ok  bool
		err error
	)
	switch kind {
	case ResourceAvatar:
		ok, err = tx.ClaimAvatar(ctx, resourceID, claimant)
	case ResourceGift:
		ok, err = tx.ClaimGift(ctx, resourceID, claimant)
	default:
		return preconditionf("unknown resource kind %q", kind)
	}
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	conflict := &ClaimConflict{Kind: kind, ResourceID: resourceID}
	switch kind {
	case ResourceAvatar:
		a, err := tx.GetAvatar(ctx, resourceID)
		if err != nil {
			return err
		}
		conflict.Holder = a.ClaimedBy
	case ResourceGift:
		g, err := tx.GetGift(ctx, resourceID)
		if err != nil {
			return err
		}
		conflict.Holder = g.WinnerID
	}
	return conflict
}
