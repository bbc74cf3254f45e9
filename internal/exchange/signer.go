// Package exchange wraps the CLOB REST API: locally signed orders, L2
// authenticated requests, order-book and position snapshots, and merge
// delegation. All inputs and outputs are unit-normalized to human floats;
// the wire carries base-1e6 integers.
package exchange

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"

	"github.com/mmaker/polymarket-mm/pkg/types"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// Signer builds EIP-712 signed orders and the L2 HMAC auth headers for
// authenticated CLOB requests.
type Signer struct {
	apiKey     string
	secret     string
	passphrase string
	privateKey *ecdsa.PrivateKey
	address    string // EOA derived from the private key
	funder     string // maker/funder address (proxy wallet)
	builder    builder.ExchangeOrderBuilder
}

// SignerConfig holds construction parameters for a Signer.
type SignerConfig struct {
	APIKey        string
	Secret        string
	Passphrase    string
	PrivateKey    string
	FunderAddress string
	ChainID       int64
}

// NewSigner parses the private key and prepares the order builder.
func NewSigner(cfg *SignerConfig) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("derive public key")
	}
	address := crypto.PubkeyToAddress(*publicKey).Hex()

	funder := cfg.FunderAddress
	if funder == "" {
		funder = address
	}

	return &Signer{
		apiKey:     cfg.APIKey,
		secret:     cfg.Secret,
		passphrase: cfg.Passphrase,
		privateKey: privateKey,
		address:    address,
		funder:     funder,
		builder:    builder.NewExchangeOrderBuilderImpl(big.NewInt(cfg.ChainID), nil),
	}, nil
}

// Address returns the EOA address derived from the private key.
func (s *Signer) Address() string { return s.address }

// APIKey returns the L2 API key; the user stream and order payloads carry it.
func (s *Signer) APIKey() string { return s.apiKey }

// SignedOrder is the wire form of a locally signed order.
type SignedOrder struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// SignOrder builds and signs one limit order. price and size must already be
// quantized; negRisk selects the neg-risk exchange contract domain.
//
// For a buy the maker amount is USDC (price x size) and the taker amount is
// outcome tokens; a sell is the mirror image.
func (s *Signer) SignOrder(tokenID, side string, price, size float64, negRisk bool) (*SignedOrder, error) {
	usdc := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(size)).
		Mul(decimal.NewFromInt(types.BaseUnits)).Round(0).String()
	tokens := decimal.NewFromFloat(size).
		Mul(decimal.NewFromInt(types.BaseUnits)).Round(0).String()

	var makerAmount, takerAmount string
	var orderSide model.Side
	switch side {
	case types.SideBuy:
		makerAmount, takerAmount = usdc, tokens
		orderSide = model.BUY
	case types.SideSell:
		makerAmount, takerAmount = tokens, usdc
		orderSide = model.SELL
	default:
		return nil, fmt.Errorf("unknown side %q", side)
	}

	contract := model.CTFExchange
	if negRisk {
		contract = model.NegRiskCTFExchange
	}

	// Orders funded by the EOA itself sign as EOA; a separate funder means
	// a proxy wallet (the browser address) holds the balances.
	sigType := model.EOA
	if !strings.EqualFold(s.funder, s.address) {
		sigType = model.POLY_GNOSIS_SAFE
	}

	data := &model.OrderData{
		Maker:         s.funder,
		Taker:         zeroAddress,
		TokenId:       tokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Side:          orderSide,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        s.address,
		Expiration:    "0",
		SignatureType: sigType,
	}

	signed, err := s.builder.BuildSignedOrder(s.privateKey, data, contract)
	if err != nil {
		return nil, fmt.Errorf("build signed order: %w", err)
	}

	sideStr := types.SideBuy
	if signed.Side.Uint64() == uint64(model.SELL) {
		sideStr = types.SideSell
	}

	return &SignedOrder{
		Salt:          signed.Salt.Int64(),
		Maker:         signed.Maker.Hex(),
		Signer:        signed.Signer.Hex(),
		Taker:         signed.Taker.Hex(),
		TokenID:       signed.TokenId.String(),
		MakerAmount:   signed.MakerAmount.String(),
		TakerAmount:   signed.TakerAmount.String(),
		Side:          sideStr,
		Expiration:    signed.Expiration.String(),
		Nonce:         signed.Nonce.String(),
		FeeRateBps:    signed.FeeRateBps.String(),
		SignatureType: int(signed.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(signed.Signature),
	}, nil
}

// AuthHeaders builds the L2 HMAC headers for one request. The signature
// covers timestamp + method + path + body with the URL-safe base64 decoded
// secret as the key.
func (s *Signer) AuthHeaders(method, path string, body []byte) (map[string]string, error) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	secretBytes, err := base64.URLEncoding.DecodeString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("decode api secret: %w", err)
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(timestamp + method + path))
	h.Write(body)
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    s.address,
		"POLY_SIGNATURE":  signature,
		"POLY_TIMESTAMP":  timestamp,
		"POLY_API_KEY":    s.apiKey,
		"POLY_PASSPHRASE": s.passphrase,
	}, nil
}
