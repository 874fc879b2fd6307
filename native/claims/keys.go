package claims

var (
	campaignPrefix     = []byte("claims/campaign/")
	campaignIndexKey   = []byte("claims/campaign-index")
	campaignCounterKey = []byte("claims/campaign-counter")
	ledgerPrefix       = []byte("claims/ledger/")
	userClaimsPrefix   = []byte("claims/user-index/")
	claimPointsKey     = []byte("claims/points")
	timedCampaignKey   = []byte("claims/timed")
)

func campaignKey(id uint8) []byte {
	key := make([]byte, len(campaignPrefix)+1)
	copy(key, campaignPrefix)
	key[len(campaignPrefix)] = id
	return key
}

func ledgerKey(user [20]byte, id uint8) []byte {
	key := make([]byte, len(ledgerPrefix)+len(user)+1)
	copy(key, ledgerPrefix)
	copy(key[len(ledgerPrefix):], user[:])
	key[len(key)-1] = id
	return key
}

func userClaimsKey(user [20]byte) []byte {
	key := make([]byte, len(userClaimsPrefix)+len(user))
	copy(key, userClaimsPrefix)
	copy(key[len(userClaimsPrefix):], user[:])
	return key
}
