package claims

import "fmt"

// Ledger records which (user, campaign) pairs have been claimed. Entries are
// write-once and never cleared.
type Ledger struct {
	st claimsState
}

func NewLedger(st claimsState) *Ledger {
	return &Ledger{st: st}
}

// HasClaimed reports whether user already claimed campaign id.
func (l *Ledger) HasClaimed(user [20]byte, id uint8) (bool, error) {
	var claimed bool
	ok, err := l.st.KVGet(ledgerKey(user, id), &claimed)
	if err != nil {
		return false, err
	}
	return ok && claimed, nil
}

// ClaimedCampaigns lists the campaign ids claimed by user in claim order.
func (l *Ledger) ClaimedCampaigns(user [20]byte) ([]uint8, error) {
	var raw [][]byte
	if err := l.st.KVGetList(userClaimsKey(user), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint8, 0, len(raw))
	for _, entry := range raw {
		if len(entry) == 1 {
			ids = append(ids, entry[0])
		}
	}
	return ids, nil
}

func (l *Ledger) markClaimed(user [20]byte, id uint8) error {
	claimed, err := l.HasClaimed(user, id)
	if err != nil {
		return err
	}
	if claimed {
		return fmt.Errorf("%w: campaign %d", ErrAlreadyClaimed, id)
	}
	if err := l.st.KVPut(ledgerKey(user, id), true); err != nil {
		return err
	}
	return l.st.KVAppend(userClaimsKey(user), []byte{id})
}
