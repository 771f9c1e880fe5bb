package state

// Raw key material per record family. Every key is the keccak of a prefix
// plus its identifying components, which keeps the keyspace flat and makes a
// family renameable without clashing with another family's keys.
var (
	accountPrefix = []byte("state/account/")

	collectionRecordPrefix = []byte("ledger/collection/")
	collectionNonceKey     = []byte("ledger/collection-nonce")
	tokenRecordPrefix      = []byte("ledger/token/")
	balancePrefix          = []byte("ledger/balance/")
	approvalPrefix         = []byte("ledger/approval/")

	operatorPrefix = []byte("transferproxy/operator/")

	tradeRecordPrefix = []byte("market/trade/")
	marketFeeKey      = []byte("market/service-fee")

	holdRecordPrefix = []byte("vault/hold/")

	giftNonceKey     = []byte("gift/gift-nonce")
	linkNonceKey     = []byte("gift/link-nonce")
	linkRecordPrefix = []byte("gift/link/")

	dropNonceKey     = []byte("airdrop/drop-nonce")
	dropRecordPrefix = []byte("airdrop/drop/")
	dropClaimPrefix  = []byte("airdrop/claimed/")

	saleRecordKey        = []byte("sale/record")
	saleAllocationPrefix = []byte("sale/allocation/")
)
