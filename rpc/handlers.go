package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"

	"marketchain/native/airdrop"
	"marketchain/native/gift"
	"marketchain/native/ledger"
	"marketchain/native/market"
	"marketchain/native/sale"
)

// decodeParams accepts either a bare params object or the JSON-RPC positional
// form with the object as sole element.
func decodeParams(raw json.RawMessage, out interface{}) *RPCError {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return &RPCError{Code: codeInvalidParams, Message: "params required"}
	}
	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil || len(list) != 1 {
			return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
		}
		trimmed = list[0]
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid params", Data: err.Error()}
	}
	return nil
}

func engineError(err error) *RPCError {
	return &RPCError{Code: codeServerError, Message: err.Error()}
}

func (s *Server) methodTable() map[string]methodEntry {
	return map[string]methodEntry{
		"account_balance": {module: "account", handler: handleAccountBalance},
		"account_fund":    {module: "account", auth: true, handler: handleAccountFund},

		"ledger_createCollection":            {module: "ledger", handler: handleCreateCollection},
		"ledger_createToken":                 {module: "ledger", handler: handleCreateToken},
		"ledger_balanceOf":                   {module: "ledger", handler: handleBalanceOf},
		"ledger_balanceOfBatch":              {module: "ledger", handler: handleBalanceOfBatch},
		"ledger_totalSupply":                 {module: "ledger", handler: handleTotalSupply},
		"ledger_creatorOf":                   {module: "ledger", handler: handleCreatorOf},
		"ledger_royaltyInfo":                 {module: "ledger", handler: handleRoyaltyInfo},
		"ledger_tokenURI":                    {module: "ledger", handler: handleTokenURI},
		"ledger_setApprovalForAll":           {module: "ledger", handler: handleSetApprovalForAll},
		"ledger_isApprovedForAll":            {module: "ledger", handler: handleIsApprovedForAll},
		"ledger_safeTransferFrom":            {module: "ledger", handler: handleSafeTransferFrom},
		"ledger_safeBatchTransferFrom":       {module: "ledger", handler: handleSafeBatchTransferFrom},
		"ledger_burn":                        {module: "ledger", handler: handleBurn},
		"ledger_burnBatch":                   {module: "ledger", handler: handleBurnBatch},
		"ledger_setPaused":                   {module: "ledger", handler: handleSetPaused},
		"ledger_setBaseURI":                  {module: "ledger", handler: handleSetBaseURI},
		"ledger_transferCollectionOwnership": {module: "ledger", handler: handleTransferCollectionOwnership},

		"proxy_isOperator":   {module: "proxy", handler: handleProxyIsOperator},
		"proxy_setOperator":  {module: "proxy", auth: true, handler: handleProxySetOperator},
		"proxy_setOperators": {module: "proxy", auth: true, handler: handleProxySetOperators},

		"market_openTrade":        {module: "market", handler: handleOpenTrade},
		"market_buyItem":          {module: "market", handler: handleBuyItem},
		"market_giftItem":         {module: "market", handler: handleGiftItem},
		"market_giftItemViaVault": {module: "market", handler: handleGiftItemViaVault},
		"market_giftTrade":        {module: "market", handler: handleGiftTrade},
		"market_closeTrade":       {module: "market", handler: handleCloseTrade},
		"market_changePrice":      {module: "market", handler: handleChangePrice},
		"market_getTrade":         {module: "market", handler: handleGetTrade},
		"market_serviceFee":       {module: "market", handler: handleServiceFee},
		"market_setServiceFee":    {module: "market", auth: true, handler: handleSetServiceFee},
		"market_feeBalance":       {module: "market", handler: handleFeeBalance},
		"market_withdraw":         {module: "market", auth: true, handler: handleMarketWithdraw},

		"vault_claimGiftForMyself":        {module: "vault", handler: handleVaultClaimForMyself},
		"vault_claimGiftForAnotherPerson": {module: "vault", handler: handleVaultClaimForAnother},

		"gift_send":       {module: "gift", handler: handleGiftSend},
		"gift_createLink": {module: "gift", handler: handleCreateLink},
		"gift_claimLink":  {module: "gift", handler: handleClaimLink},
		"gift_getLink":    {module: "gift", handler: handleGetLink},

		"airdrop_create": {module: "airdrop", auth: true, handler: handleAirdropCreate},
		"airdrop_claim":  {module: "airdrop", handler: handleAirdropClaim},
		"airdrop_get":    {module: "airdrop", handler: handleAirdropGet},

		"sale_initialize":             {module: "sale", auth: true, handler: handleSaleInitialize},
		"sale_buy":                    {module: "sale", handler: handleSaleBuy},
		"sale_withdraw":               {module: "sale", auth: true, handler: handleSaleWithdraw},
		"sale_setActive":              {module: "sale", auth: true, handler: handleSaleSetActive},
		"sale_setPublicSale":          {module: "sale", auth: true, handler: handleSaleSetPublic},
		"sale_transferTokenOwnership": {module: "sale", auth: true, handler: handleSaleTransferTokenOwnership},
		"sale_get":                    {module: "sale", handler: handleSaleGet},
		"sale_allocation":             {module: "sale", handler: handleSaleAllocation},
	}
}

// --- Accounts ---

func handleAccountBalance(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Address Address `json:"address"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.Balance(p.Address)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]interface{}{"address": p.Address, "balance": newBigInt(balance)}, nil
}

func handleAccountFund(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Address Address `json:"address"`
		Amount  *BigInt `json:"amount"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.FundAccount(s.node.Owner(), p.Address, p.Amount.Int()); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

// --- Asset ledger ---

type collectionResult struct {
	Address          Address `json:"address"`
	Owner            Address `json:"owner"`
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
	BaseURI          string  `json:"baseURI"`
	PubliclyMintable bool    `json:"publiclyMintable"`
	Paused           bool    `json:"paused"`
}

func newCollectionResult(c *ledger.Collection) *collectionResult {
	if c == nil {
		return nil
	}
	return &collectionResult{
		Address:          Address(c.Address),
		Owner:            Address(c.Owner),
		Name:             c.Name,
		Symbol:           c.Symbol,
		BaseURI:          c.BaseURI,
		PubliclyMintable: c.PubliclyMintable,
		Paused:           c.Paused,
	}
}

func handleCreateCollection(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Owner            Address `json:"owner"`
		Name             string  `json:"name"`
		Symbol           string  `json:"symbol"`
		BaseURI          string  `json:"baseURI"`
		PubliclyMintable bool    `json:"publiclyMintable"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	collection, err := s.node.CreateCollection(p.Owner, p.Name, p.Symbol, p.BaseURI, p.PubliclyMintable)
	if err != nil {
		return nil, engineError(err)
	}
	return newCollectionResult(collection), nil
}

type tokenResult struct {
	Asset           Address `json:"asset"`
	ID              uint64  `json:"id"`
	Creator         Address `json:"creator"`
	Supply          *BigInt `json:"supply"`
	URI             string  `json:"uri"`
	RoyaltyReceiver Address `json:"royaltyReceiver"`
	RoyaltyBps      uint32  `json:"royaltyBps"`
}

func handleCreateToken(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Caller          Address `json:"caller"`
		Asset           Address `json:"asset"`
		ID              uint64  `json:"id"`
		Supply          *BigInt `json:"supply"`
		To              Address `json:"to"`
		URI             string  `json:"uri"`
		RoyaltyReceiver Address `json:"royaltyReceiver"`
		RoyaltyBps      uint32  `json:"royaltyBps"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	token, err := s.node.CreateToken(p.Caller, p.Asset, p.ID, p.Supply.Int(), p.To, p.URI, p.RoyaltyReceiver, p.RoyaltyBps)
	if err != nil {
		return nil, engineError(err)
	}
	return &tokenResult{
		Asset:           Address(token.Asset),
		ID:              token.ID,
		Creator:         Address(token.Creator),
		Supply:          newBigInt(token.Supply),
		URI:             token.URI,
		RoyaltyReceiver: Address(token.RoyaltyReceiver),
		RoyaltyBps:      token.RoyaltyBps,
	}, nil
}

func handleBalanceOf(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Asset Address `json:"asset"`
		ID    uint64  `json:"id"`
		Owner Address `json:"owner"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.BalanceOf(p.Asset, p.ID, p.Owner)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]interface{}{"balance": newBigInt(balance)}, nil
}

func handleBalanceOfBatch(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Asset  Address   `json:"asset"`
		Owners []Address `json:"owners"`
		IDs    []uint64  `json:"ids"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	owners := make([][20]byte, len(p.Owners))
	for i, owner := range p.Owners {
		owners[i] = owner
	}
	balances, err := s.node.BalanceOfBatch(p.Asset, owners, p.IDs)
	if err != nil {
		return nil, engineError(err)
	}
	out := make([]*BigInt, len(balances))
	for i, balance := range balances {
		out[i] = newBigInt(balance)
	}
	return map[string]interface{}{"balances": out}, nil
}

func handleTotalSupply(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Asset Address `json:"asset"`
		ID    uint64  `json:"id"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	supply, err := s.node.TotalSupply(p.Asset, p.ID)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]interface{}{"supply": newBigInt(supply)}, nil
}

func handleCreatorOf(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Asset Address `json:"asset"`
		ID    uint64  `json:"id"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	creator, err := s.node.CreatorOf(p.Asset, p.ID)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]interface{}{"creator": Address(creator)}, nil
}

func handleRoyaltyInfo(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Asset Address `json:"asset"`
		ID    uint64  `json:"id"`
		Value *BigInt `json:"value"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	receiver, royalty, err := s.node.RoyaltyInfo(p.Asset, p.ID, p.Value.Int())
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]interface{}{"receiver": Address(receiver), "royalty": newBigInt(royalty)}, nil
}

func handleTokenURI(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Asset Address `json:"asset"`
		ID    uint64  `json:"id"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	uri, err := s.node.TokenURI(p.Asset, p.ID)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"uri": uri}, nil
}

func handleSetApprovalForAll(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Asset    Address `json:"asset"`
		Owner    Address `json:"owner"`
		Operator Address `json:"operator"`
		Approved bool    `json:"approved"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SetApprovalForAll(p.Asset, p.Owner, p.Operator, p.Approved); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleIsApprovedForAll(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Asset    Address `json:"asset"`
		Owner    Address `json:"owner"`
		Operator Address `json:"operator"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	approved, err := s.node.IsApprovedForAll(p.Asset, p.Owner, p.Operator)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"approved": approved}, nil
}

func handleSafeTransferFrom(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Caller Address `json:"caller"`
		Asset  Address `json:"asset"`
		From   Address `json:"from"`
		To     Address `json:"to"`
		ID     uint64  `json:"id"`
		Amount *BigInt `json:"amount"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SafeTransferFrom(p.Caller, p.Asset, p.From, p.To, p.ID, p.Amount.Int()); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleSafeBatchTransferFrom(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Caller  Address   `json:"caller"`
		Asset   Address   `json:"asset"`
		From    Address   `json:"from"`
		To      Address   `json:"to"`
		IDs     []uint64  `json:"ids"`
		Amounts []*BigInt `json:"amounts"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	amounts := make([]*big.Int, len(p.Amounts))
	for i, amount := range p.Amounts {
		amounts[i] = amount.Int()
	}
	if err := s.node.SafeBatchTransferFrom(p.Caller, p.Asset, p.From, p.To, p.IDs, amounts); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleBurn(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Caller Address `json:"caller"`
		Asset  Address `json:"asset"`
		From   Address `json:"from"`
		ID     uint64  `json:"id"`
		Amount *BigInt `json:"amount"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.Burn(p.Caller, p.Asset, p.From, p.ID, p.Amount.Int()); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleBurnBatch(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Caller  Address   `json:"caller"`
		Asset   Address   `json:"asset"`
		From    Address   `json:"from"`
		IDs     []uint64  `json:"ids"`
		Amounts []*BigInt `json:"amounts"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	amounts := make([]*big.Int, len(p.Amounts))
	for i, amount := range p.Amounts {
		amounts[i] = amount.Int()
	}
	if err := s.node.BurnBatch(p.Caller, p.Asset, p.From, p.IDs, amounts); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleSetPaused(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Caller Address `json:"caller"`
		Asset  Address `json:"asset"`
		Paused bool    `json:"paused"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SetPaused(p.Caller, p.Asset, p.Paused); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleSetBaseURI(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Caller  Address `json:"caller"`
		Asset   Address `json:"asset"`
		BaseURI string  `json:"baseURI"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SetBaseURI(p.Caller, p.Asset, p.BaseURI); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleTransferCollectionOwnership(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Caller   Address `json:"caller"`
		Asset    Address `json:"asset"`
		NewOwner Address `json:"newOwner"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.TransferCollectionOwnership(p.Caller, p.Asset, p.NewOwner); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

// --- Transfer proxy ---

func handleProxyIsOperator(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Address Address `json:"address"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	operator, err := s.node.ProxyIsOperator(p.Address)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"operator": operator}, nil
}

func handleProxySetOperator(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Operator Address `json:"operator"`
		Approved bool    `json:"approved"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.ProxySetOperator(s.node.Owner(), p.Operator, p.Approved); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleProxySetOperators(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Operators []Address `json:"operators"`
		Approved  []bool    `json:"approved"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	operators := make([][20]byte, len(p.Operators))
	for i, operator := range p.Operators {
		operators[i] = operator
	}
	if err := s.node.ProxySetOperators(s.node.Owner(), operators, p.Approved); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

// --- Market ---

type tradeResult struct {
	Asset   Address `json:"asset"`
	TokenID uint64  `json:"tokenId"`
	Seller  Address `json:"seller"`
	Price   *BigInt `json:"price"`
	Amount  *BigInt `json:"amount"`
	Open    bool    `json:"open"`
}

func newTradeResult(t *market.Trade) *tradeResult {
	if t == nil {
		return nil
	}
	return &tradeResult{
		Asset:   Address(t.Asset),
		TokenID: t.AssetID,
		Seller:  Address(t.Seller),
		Price:   newBigInt(t.Price),
		Amount:  newBigInt(t.Amount),
		Open:    t.Open(),
	}
}

func handleOpenTrade(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Seller Address `json:"seller"`
		Asset  Address `json:"asset"`
		ID     uint64  `json:"id"`
		Amount *BigInt `json:"amount"`
		Price  *BigInt `json:"price"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.OpenTrade(p.Seller, p.Asset, p.ID, p.Amount.Int(), p.Price.Int()); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleBuyItem(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Buyer  Address `json:"buyer"`
		Asset  Address `json:"asset"`
		ID     uint64  `json:"id"`
		Seller Address `json:"seller"`
		Amount *BigInt `json:"amount"`
		Value  *BigInt `json:"value"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.BuyItem(p.Buyer, p.Asset, p.ID, p.Seller, p.Amount.Int(), p.Value.Int()); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleGiftItem(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Buyer  Address `json:"buyer"`
		Asset  Address `json:"asset"`
		ID     uint64  `json:"id"`
		Seller Address `json:"seller"`
		Amount *BigInt `json:"amount"`
		Value  *BigInt `json:"value"`
		To     Address `json:"to"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.GiftItem(p.Buyer, p.Asset, p.ID, p.Seller, p.Amount.Int(), p.Value.Int(), p.To); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleGiftItemViaVault(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Buyer      Address `json:"buyer"`
		Asset      Address `json:"asset"`
		ID         uint64  `json:"id"`
		Seller     Address `json:"seller"`
		Amount     *BigInt `json:"amount"`
		Value      *BigInt `json:"value"`
		SecretHash Hash    `json:"secretHash"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.GiftItemViaVault(p.Buyer, p.Asset, p.ID, p.Seller, p.Amount.Int(), p.Value.Int(), p.SecretHash); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleGiftTrade(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Seller Address `json:"seller"`
		Asset  Address `json:"asset"`
		ID     uint64  `json:"id"`
		Amount *BigInt `json:"amount"`
		To     Address `json:"to"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.GiftTrade(p.Seller, p.Asset, p.ID, p.Amount.Int(), p.To); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleCloseTrade(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Seller Address `json:"seller"`
		Asset  Address `json:"asset"`
		ID     uint64  `json:"id"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.CloseTrade(p.Seller, p.Asset, p.ID); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleChangePrice(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Seller Address `json:"seller"`
		Asset  Address `json:"asset"`
		ID     uint64  `json:"id"`
		Price  *BigInt `json:"price"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.ChangePrice(p.Seller, p.Asset, p.ID, p.Price.Int()); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleGetTrade(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Asset  Address `json:"asset"`
		ID     uint64  `json:"id"`
		Seller Address `json:"seller"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	trade, err := s.node.Trade(p.Asset, p.ID, p.Seller)
	if err != nil {
		return nil, engineError(err)
	}
	return newTradeResult(trade), nil
}

func handleServiceFee(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	bps, err := s.node.ServiceFeeBps()
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]uint32{"feeBps": bps}, nil
}

func handleSetServiceFee(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		FeeBps uint32 `json:"feeBps"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SetServiceFee(s.node.Owner(), p.FeeBps); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleFeeBalance(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	balance, err := s.node.FeeBalance()
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]interface{}{"balance": newBigInt(balance)}, nil
}

func handleMarketWithdraw(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		To     Address `json:"to"`
		Amount *BigInt `json:"amount"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.MarketWithdraw(s.node.Owner(), p.To, p.Amount.Int()); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

// --- Vault ---

func handleVaultClaimForMyself(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Caller Address `json:"caller"`
		Secret Bytes   `json:"secret"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.VaultClaimGiftForMyself(p.Caller, p.Secret); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleVaultClaimForAnother(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Caller    Address `json:"caller"`
		Secret    Bytes   `json:"secret"`
		Recipient Address `json:"recipient"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.VaultClaimGiftForAnotherPerson(p.Caller, p.Secret, p.Recipient); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

// --- Gifts and links ---

func handleGiftSend(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		From   Address `json:"from"`
		Asset  Address `json:"asset"`
		ID     uint64  `json:"id"`
		To     Address `json:"to"`
		Amount *BigInt `json:"amount"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	giftID, err := s.node.Gift(p.From, p.Asset, p.ID, p.To, p.Amount.Int())
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]uint64{"giftId": giftID}, nil
}

func handleCreateLink(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Creator    Address `json:"creator"`
		Asset      Address `json:"asset"`
		ID         uint64  `json:"id"`
		Amount     *BigInt `json:"amount"`
		SecretHash Hash    `json:"secretHash"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	linkID, err := s.node.CreateLink(p.Creator, p.Asset, p.ID, p.Amount.Int(), p.SecretHash)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]uint64{"linkId": linkID}, nil
}

func handleClaimLink(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Caller Address `json:"caller"`
		LinkID uint64  `json:"linkId"`
		Secret Bytes   `json:"secret"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.ClaimLink(p.Caller, p.LinkID, p.Secret); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

type linkResult struct {
	ID         uint64  `json:"id"`
	Asset      Address `json:"asset"`
	TokenID    uint64  `json:"tokenId"`
	Sender     Address `json:"sender"`
	Amount     *BigInt `json:"amount"`
	SecretHash Hash    `json:"secretHash"`
}

func handleGetLink(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		LinkID uint64 `json:"linkId"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	link, err := s.node.Link(p.LinkID)
	if err != nil {
		return nil, engineError(err)
	}
	if link == nil {
		return nil, &RPCError{Code: codeServerError, Message: gift.ErrLinkNotFound.Error()}
	}
	return &linkResult{
		ID:         link.ID,
		Asset:      Address(link.Asset),
		TokenID:    link.AssetID,
		Sender:     Address(link.Sender),
		Amount:     newBigInt(link.Amount),
		SecretHash: Hash(link.SecretHash),
	}, nil
}

// --- Airdrops ---

func handleAirdropCreate(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Asset  Address `json:"asset"`
		ID     uint64  `json:"id"`
		Amount *BigInt `json:"amount"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	dropID, err := s.node.AirdropCreate(s.node.Owner(), p.Asset, p.ID, p.Amount.Int())
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]uint64{"dropId": dropID}, nil
}

func handleAirdropClaim(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Caller Address `json:"caller"`
		DropID uint64  `json:"dropId"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.AirdropClaim(p.Caller, p.DropID); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

type dropResult struct {
	ID      uint64  `json:"id"`
	Asset   Address `json:"asset"`
	TokenID uint64  `json:"tokenId"`
	Creator Address `json:"creator"`
	Amount  *BigInt `json:"amount"`
	Claimed *BigInt `json:"claimed"`
}

func handleAirdropGet(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		DropID uint64 `json:"dropId"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	drop, err := s.node.AirdropDrop(p.DropID)
	if err != nil {
		return nil, engineError(err)
	}
	if drop == nil {
		return nil, &RPCError{Code: codeServerError, Message: airdrop.ErrNotFound.Error()}
	}
	return &dropResult{
		ID:      drop.ID,
		Asset:   Address(drop.Asset),
		TokenID: drop.AssetID,
		Creator: Address(drop.Creator),
		Amount:  newBigInt(drop.Amount),
		Claimed: newBigInt(drop.Claimed),
	}, nil
}

// --- Pass sale ---

type saleResult struct {
	Collection    Address `json:"collection"`
	Owner         Address `json:"owner"`
	MaxSupply     uint64  `json:"maxSupply"`
	MaxPerAccount uint64  `json:"maxPerAccount"`
	Rewards       uint64  `json:"rewards"`
	Price         *BigInt `json:"price"`
	Signer        Address `json:"signer"`
	Cursor        uint64  `json:"cursor"`
	Active        bool    `json:"active"`
	Public        bool    `json:"public"`
}

func newSaleResult(record *sale.Sale) *saleResult {
	if record == nil {
		return nil
	}
	return &saleResult{
		Collection:    Address(record.Collection),
		Owner:         Address(record.Owner),
		MaxSupply:     record.MaxSupply,
		MaxPerAccount: record.MaxPerAccount,
		Rewards:       record.Rewards,
		Price:         newBigInt(record.Price),
		Signer:        Address(record.Signer),
		Cursor:        record.Cursor,
		Active:        record.Active,
		Public:        record.Public,
	}
}

func handleSaleInitialize(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Name          string   `json:"name"`
		Symbol        string   `json:"symbol"`
		BaseURI       string   `json:"baseURI"`
		MaxSupply     uint64   `json:"maxSupply"`
		MaxPerAccount uint64   `json:"maxPerAccount"`
		Rewards       uint64   `json:"rewards"`
		Price         *BigInt  `json:"price"`
		Signer        Address  `json:"signer"`
		RewardsTo     Address  `json:"rewardsTo"`
		URIs          []string `json:"uris"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	record, err := s.node.SaleInitialize(s.node.Owner(), sale.Params{
		Name:          p.Name,
		Symbol:        p.Symbol,
		BaseURI:       p.BaseURI,
		MaxSupply:     p.MaxSupply,
		MaxPerAccount: p.MaxPerAccount,
		Rewards:       p.Rewards,
		Price:         p.Price.Int(),
		Signer:        p.Signer,
		RewardsTo:     p.RewardsTo,
		URIs:          p.URIs,
	})
	if err != nil {
		return nil, engineError(err)
	}
	return newSaleResult(record), nil
}

func handleSaleBuy(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Caller    Address `json:"caller"`
		Amount    uint64  `json:"amount"`
		Value     *BigInt `json:"value"`
		Signature Bytes   `json:"signature"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SaleBuy(p.Caller, p.Amount, p.Value.Int(), p.Signature); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleSaleWithdraw(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		To Address `json:"to"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	amount, err := s.node.SaleWithdraw(s.node.Owner(), p.To)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]interface{}{"amount": newBigInt(amount)}, nil
}

func handleSaleSetActive(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Active bool `json:"active"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SaleSetActive(s.node.Owner(), p.Active); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleSaleSetPublic(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Public bool `json:"public"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SaleSetPublic(s.node.Owner(), p.Public); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleSaleTransferTokenOwnership(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		NewOwner Address `json:"newOwner"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SaleTransferTokenOwnership(s.node.Owner(), p.NewOwner); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleSaleGet(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	record, err := s.node.Sale()
	if err != nil {
		return nil, engineError(err)
	}
	return newSaleResult(record), nil
}

func handleSaleAllocation(s *Server, raw json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		Address Address `json:"address"`
	}
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	minted, err := s.node.SaleAllocation(p.Address)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]uint64{"minted": minted}, nil
}
