package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"marketchain/core/events"
	"marketchain/core/state"
	"marketchain/core/types"
	"marketchain/native/airdrop"
	"marketchain/native/gift"
	"marketchain/native/ledger"
	"marketchain/native/market"
	"marketchain/native/sale"
	"marketchain/native/transferproxy"
	"marketchain/native/vault"
	"marketchain/storage"
)

var ErrNotOwner = errors.New("core: caller is not the node owner")

// Node is the single entry point into the engines. Every call runs serialized
// under the mutex against a write overlay of the database: the overlay commits
// only when the operation returns nil, so a failed call leaves no trace.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	owner   [20]byte
	emitter events.Emitter
}

type engineSet struct {
	ledger  *ledger.Engine
	proxy   *transferproxy.Engine
	market  *market.Engine
	vault   *vault.Engine
	gift    *gift.Engine
	airdrop *airdrop.Engine
	sale    *sale.Engine
}

// NewNode constructs a node over a database and registers the custody modules
// as transfer proxy operators.
func NewNode(db storage.Database, owner [20]byte) (*Node, error) {
	n := &Node{db: db, owner: owner, emitter: events.NoopEmitter{}}
	err := n.withEngines(func(eng *engineSet) error {
		operators := [][20]byte{market.Address, gift.Address, airdrop.Address}
		for _, op := range operators {
			if err := eng.proxy.SetOperator(owner, op, true); err != nil {
				return fmt.Errorf("core: register operator: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// SetEmitter wires a subscriber for engine events. Events buffered during a
// call are forwarded only after the call commits.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	n.emitter = emitter
}

// Owner returns the administrative owner address.
func (n *Node) Owner() [20]byte { return n.owner }

type eventBuffer struct {
	buffered []events.Event
}

func (b *eventBuffer) Emit(evt events.Event) {
	b.buffered = append(b.buffered, evt)
}

func (n *Node) withEngines(fn func(*engineSet) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	overlay := storage.NewOverlay(n.db)
	manager := state.NewManager(overlay)
	buffer := &eventBuffer{}

	ledgerEng := ledger.NewEngine()
	ledgerEng.SetState(manager)
	ledgerEng.SetTransferAgent(transferproxy.Address)
	ledgerEng.SetEmitter(buffer)

	proxyEng := transferproxy.NewEngine(ledgerEng)
	proxyEng.SetState(manager)
	proxyEng.SetOwner(n.owner)
	proxyEng.SetEmitter(buffer)

	vaultEng := vault.NewEngine(ledgerEng)
	vaultEng.SetState(manager)
	vaultEng.AuthorizeDepositor(market.Address)
	vaultEng.SetEmitter(buffer)

	marketEng := market.NewEngine(ledgerEng, proxyEng)
	marketEng.SetState(manager)
	marketEng.SetOwner(n.owner)
	marketEng.SetVault(vaultEng)
	marketEng.SetEmitter(buffer)

	giftEng := gift.NewEngine(ledgerEng, proxyEng)
	giftEng.SetState(manager)
	giftEng.SetEmitter(buffer)

	airdropEng := airdrop.NewEngine(ledgerEng, proxyEng)
	airdropEng.SetState(manager)
	airdropEng.SetOwner(n.owner)
	airdropEng.SetEmitter(buffer)

	saleEng := sale.NewEngine(ledgerEng)
	saleEng.SetState(manager)
	saleEng.SetEmitter(buffer)

	eng := &engineSet{
		ledger:  ledgerEng,
		proxy:   proxyEng,
		market:  marketEng,
		vault:   vaultEng,
		gift:    giftEng,
		airdrop: airdropEng,
		sale:    saleEng,
	}
	if err := fn(eng); err != nil {
		return err
	}
	if err := overlay.Commit(); err != nil {
		return err
	}
	for _, evt := range buffer.buffered {
		n.emitter.Emit(evt)
	}
	return nil
}

// FundAccount credits native currency to an address. Owner only; this is the
// deposit entry point for off-ledger settlement rails.
func (n *Node) FundAccount(caller, addr [20]byte, amount *big.Int) error {
	if caller != n.owner {
		return ErrNotOwner
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("core: fund amount must be greater than 0")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	overlay := storage.NewOverlay(n.db)
	manager := state.NewManager(overlay)
	account, err := manager.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	if err := manager.PutAccount(addr, account); err != nil {
		return err
	}
	return overlay.Commit()
}

// Balance returns an address's native currency balance.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	account, err := n.Account(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

// Account returns the account record for an address.
func (n *Node) Account(addr [20]byte) (*types.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return state.NewManager(n.db).GetAccount(addr)
}

// --- Asset ledger ---

func (n *Node) CreateCollection(owner [20]byte, name, symbol, baseURI string, publiclyMintable bool) (*ledger.Collection, error) {
	var collection *ledger.Collection
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		collection, err = eng.ledger.CreateCollection(owner, name, symbol, baseURI, publiclyMintable)
		return err
	})
	return collection, err
}

func (n *Node) CreateToken(caller, asset [20]byte, id uint64, supply *big.Int, to [20]byte, uri string, royaltyReceiver [20]byte, royaltyBps uint32) (*ledger.Token, error) {
	var token *ledger.Token
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		token, err = eng.ledger.CreateToken(caller, asset, id, supply, to, uri, royaltyReceiver, royaltyBps)
		return err
	})
	return token, err
}

func (n *Node) BalanceOf(asset [20]byte, id uint64, owner [20]byte) (*big.Int, error) {
	var balance *big.Int
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		balance, err = eng.ledger.BalanceOf(asset, id, owner)
		return err
	})
	return balance, err
}

func (n *Node) BalanceOfBatch(asset [20]byte, owners [][20]byte, ids []uint64) ([]*big.Int, error) {
	var balances []*big.Int
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		balances, err = eng.ledger.BalanceOfBatch(asset, owners, ids)
		return err
	})
	return balances, err
}

func (n *Node) TotalSupply(asset [20]byte, id uint64) (*big.Int, error) {
	var supply *big.Int
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		supply, err = eng.ledger.TotalSupply(asset, id)
		return err
	})
	return supply, err
}

func (n *Node) CreatorOf(asset [20]byte, id uint64) ([20]byte, error) {
	var creator [20]byte
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		creator, err = eng.ledger.CreatorOf(asset, id)
		return err
	})
	return creator, err
}

func (n *Node) RoyaltyInfo(asset [20]byte, id uint64, saleValue *big.Int) ([20]byte, *big.Int, error) {
	var receiver [20]byte
	var royalty *big.Int
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		receiver, royalty, err = eng.ledger.RoyaltyInfo(asset, id, saleValue)
		return err
	})
	return receiver, royalty, err
}

func (n *Node) TokenURI(asset [20]byte, id uint64) (string, error) {
	var uri string
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		uri, err = eng.ledger.TokenURI(asset, id)
		return err
	})
	return uri, err
}

func (n *Node) SetApprovalForAll(asset, owner, operator [20]byte, approved bool) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.ledger.SetApprovalForAll(asset, owner, operator, approved)
	})
}

func (n *Node) IsApprovedForAll(asset, owner, operator [20]byte) (bool, error) {
	var approved bool
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		approved, err = eng.ledger.IsApprovedForAll(asset, owner, operator)
		return err
	})
	return approved, err
}

func (n *Node) SafeTransferFrom(caller, asset, from, to [20]byte, id uint64, amount *big.Int) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.ledger.SafeTransferFrom(caller, asset, from, to, id, amount)
	})
}

func (n *Node) SafeBatchTransferFrom(caller, asset, from, to [20]byte, ids []uint64, amounts []*big.Int) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.ledger.SafeBatchTransferFrom(caller, asset, from, to, ids, amounts)
	})
}

func (n *Node) Burn(caller, asset, from [20]byte, id uint64, amount *big.Int) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.ledger.Burn(caller, asset, from, id, amount)
	})
}

func (n *Node) BurnBatch(caller, asset, from [20]byte, ids []uint64, amounts []*big.Int) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.ledger.BurnBatch(caller, asset, from, ids, amounts)
	})
}

func (n *Node) SetPaused(caller, asset [20]byte, paused bool) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.ledger.SetPaused(caller, asset, paused)
	})
}

func (n *Node) SetBaseURI(caller, asset [20]byte, baseURI string) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.ledger.SetBaseURI(caller, asset, baseURI)
	})
}

func (n *Node) TransferCollectionOwnership(caller, asset, newOwner [20]byte) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.ledger.TransferCollectionOwnership(caller, asset, newOwner)
	})
}

// --- Transfer proxy ---

func (n *Node) ProxyIsOperator(addr [20]byte) (bool, error) {
	var operator bool
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		operator, err = eng.proxy.IsOperator(addr)
		return err
	})
	return operator, err
}

func (n *Node) ProxySetOperator(caller, operator [20]byte, approved bool) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.proxy.SetOperator(caller, operator, approved)
	})
}

func (n *Node) ProxySetOperators(caller [20]byte, operators [][20]byte, approved []bool) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.proxy.SetOperators(caller, operators, approved)
	})
}

// --- Market ---

func (n *Node) OpenTrade(seller, asset [20]byte, id uint64, amount, price *big.Int) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.market.OpenTrade(seller, asset, id, amount, price)
	})
}

func (n *Node) BuyItem(buyer, asset [20]byte, id uint64, seller [20]byte, amount, value *big.Int) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.market.BuyItem(buyer, asset, id, seller, amount, value)
	})
}

func (n *Node) GiftItem(buyer, asset [20]byte, id uint64, seller [20]byte, amount, value *big.Int, to [20]byte) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.market.GiftItem(buyer, asset, id, seller, amount, value, to)
	})
}

func (n *Node) GiftItemViaVault(buyer, asset [20]byte, id uint64, seller [20]byte, amount, value *big.Int, secretHash [32]byte) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.market.GiftItemViaVault(buyer, asset, id, seller, amount, value, secretHash)
	})
}

func (n *Node) GiftTrade(seller, asset [20]byte, id uint64, amount *big.Int, to [20]byte) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.market.GiftTrade(seller, asset, id, amount, to)
	})
}

func (n *Node) CloseTrade(seller, asset [20]byte, id uint64) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.market.CloseTrade(seller, asset, id)
	})
}

func (n *Node) ChangePrice(seller, asset [20]byte, id uint64, newPrice *big.Int) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.market.ChangePrice(seller, asset, id, newPrice)
	})
}

func (n *Node) Trade(asset [20]byte, id uint64, seller [20]byte) (*market.Trade, error) {
	var trade *market.Trade
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		trade, err = eng.market.Trade(asset, id, seller)
		return err
	})
	return trade, err
}

func (n *Node) ServiceFeeBps() (uint32, error) {
	var bps uint32
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		bps, err = eng.market.ServiceFeeBps()
		return err
	})
	return bps, err
}

func (n *Node) SetServiceFee(caller [20]byte, bps uint32) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.market.SetServiceFee(caller, bps)
	})
}

func (n *Node) FeeBalance() (*big.Int, error) {
	var balance *big.Int
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		balance, err = eng.market.FeeBalance()
		return err
	})
	return balance, err
}

func (n *Node) MarketWithdraw(caller, to [20]byte, amount *big.Int) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.market.Withdraw(caller, to, amount)
	})
}

// --- Vault ---

func (n *Node) VaultClaimGiftForMyself(caller [20]byte, secret []byte) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.vault.ClaimGiftForMyself(caller, secret)
	})
}

func (n *Node) VaultClaimGiftForAnotherPerson(caller [20]byte, secret []byte, recipient [20]byte) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.vault.ClaimGiftForAnotherPerson(caller, secret, recipient)
	})
}

// --- Gifts and links ---

func (n *Node) Gift(from, asset [20]byte, id uint64, to [20]byte, amount *big.Int) (uint64, error) {
	var giftID uint64
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		giftID, err = eng.gift.Gift(from, asset, id, to, amount)
		return err
	})
	return giftID, err
}

func (n *Node) CreateLink(creator, asset [20]byte, id uint64, amount *big.Int, secretHash [32]byte) (uint64, error) {
	var linkID uint64
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		linkID, err = eng.gift.CreateLink(creator, asset, id, amount, secretHash)
		return err
	})
	return linkID, err
}

func (n *Node) ClaimLink(caller [20]byte, linkID uint64, secret []byte) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.gift.ClaimLink(caller, linkID, secret)
	})
}

func (n *Node) Link(id uint64) (*gift.Link, error) {
	var link *gift.Link
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		link, err = eng.gift.Link(id)
		return err
	})
	return link, err
}

// --- Airdrops ---

func (n *Node) AirdropCreate(caller, asset [20]byte, id uint64, amount *big.Int) (uint64, error) {
	var dropID uint64
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		dropID, err = eng.airdrop.Create(caller, asset, id, amount)
		return err
	})
	return dropID, err
}

func (n *Node) AirdropClaim(caller [20]byte, dropID uint64) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.airdrop.Claim(caller, dropID)
	})
}

func (n *Node) AirdropDrop(id uint64) (*airdrop.Drop, error) {
	var drop *airdrop.Drop
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		drop, err = eng.airdrop.Drop(id)
		return err
	})
	return drop, err
}

// --- Pass sale ---

func (n *Node) SaleInitialize(caller [20]byte, params sale.Params) (*sale.Sale, error) {
	if caller != n.owner {
		return nil, ErrNotOwner
	}
	var record *sale.Sale
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		record, err = eng.sale.Initialize(caller, params)
		return err
	})
	return record, err
}

func (n *Node) SaleBuy(caller [20]byte, amount uint64, value *big.Int, signature []byte) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.sale.Buy(caller, amount, value, signature)
	})
}

func (n *Node) SaleWithdraw(caller, to [20]byte) (*big.Int, error) {
	var amount *big.Int
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		amount, err = eng.sale.Withdraw(caller, to)
		return err
	})
	return amount, err
}

func (n *Node) SaleSetActive(caller [20]byte, active bool) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.sale.SetSaleActive(caller, active)
	})
}

func (n *Node) SaleSetPublic(caller [20]byte, public bool) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.sale.SetPublicSale(caller, public)
	})
}

func (n *Node) SaleTransferTokenOwnership(caller, newOwner [20]byte) error {
	return n.withEngines(func(eng *engineSet) error {
		return eng.sale.TransferTokenOwnership(caller, newOwner)
	})
}

func (n *Node) Sale() (*sale.Sale, error) {
	var record *sale.Sale
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		record, err = eng.sale.Sale()
		return err
	})
	return record, err
}

func (n *Node) SaleAllocation(addr [20]byte) (uint64, error) {
	var minted uint64
	err := n.withEngines(func(eng *engineSet) error {
		var err error
		minted, err = eng.sale.Allocation(addr)
		return err
	})
	return minted, err
}
