package ledger

import (
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/mrz1836/payflow/internal/fee"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type actionWire struct {
	TransactionID         string                         `json:"transactionId"`
	Token                 string                         `json:"token"`
	RecoveryCode          string                         `json:"recoveryCode"`
	IsFactorsSent         bool                           `json:"isFactorsSent"`
	RequiredFactors       []string                       `json:"requiredFactors"`
	AdditionalInformation map[string]jsoniter.RawMessage `json:"additionalInformation"`
	Message               string                         `json:"message"`
}

type estimateWire struct {
	SpendingAmount       decimal.NullDecimal `json:"spendingAmount"`
	BlockchainFee        decimal.Decimal     `json:"blockchainFee"`
	EnergyFee            decimal.Decimal     `json:"energyFee"`
	BurnFee              decimal.Decimal     `json:"burnFee"`
	BorrowFee            decimal.Decimal     `json:"borrowFee"`
	PlatformFee          decimal.Decimal     `json:"platformFee"`
	Change               decimal.Decimal     `json:"change"`
	TransactionCount     int                 `json:"transactionCount"`
	MaximumAllowedAmount decimal.NullDecimal `json:"maximumAllowedAmount"`
	Message              string              `json:"message"`
}

// DecodeReply classifies a send or login response body.
func DecodeReply(body []byte) (Reply, error) {
	var w actionWire
	if err := jsonAPI.Unmarshal(body, &w); err != nil {
		return nil, payerr.Wrap(payerr.ErrLedgerBadResponse, "decoding reply: %v", err)
	}

	switch {
	case w.IsFactorsSent:
		factors := make([]Factor, 0, len(w.RequiredFactors))
		for _, name := range w.RequiredFactors {
			factors = append(factors, Factor{Name: name, Context: contextBlob(w.AdditionalInformation[name])})
		}
		return &FactorsRequired{Factors: factors, Message: w.Message}, nil
	case w.TransactionID != "" || w.Token != "" || w.RecoveryCode != "":
		return &Accepted{TransactionID: w.TransactionID, Token: w.Token, RecoveryCode: w.RecoveryCode}, nil
	case w.Message != "":
		return &Rejected{Message: w.Message}, nil
	default:
		return nil, payerr.ErrLedgerBadResponse
	}
}

// contextBlob returns string blobs unquoted and anything else as raw JSON.
func contextBlob(raw jsoniter.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := jsonAPI.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// DecodeEstimate classifies an estimate-fee response body.
func DecodeEstimate(body []byte) (EstimateResult, error) {
	var w estimateWire
	if err := jsonAPI.Unmarshal(body, &w); err != nil {
		return nil, payerr.Wrap(payerr.ErrLedgerBadResponse, "decoding estimate: %v", err)
	}

	switch {
	case w.MaximumAllowedAmount.Valid:
		return &InsufficientFunds{MaximumAllowedAmount: w.MaximumAllowedAmount.Decimal, Message: w.Message}, nil
	case w.SpendingAmount.Valid:
		return &EstimateOK{Estimate: Estimate{
			SpendingAmount:   w.SpendingAmount.Decimal,
			BlockchainFee:    w.BlockchainFee,
			EnergyFee:        w.EnergyFee,
			BurnFee:          w.BurnFee,
			BorrowFee:        w.BorrowFee,
			PlatformFee:      w.PlatformFee,
			Change:           w.Change,
			TransactionCount: w.TransactionCount,
		}}, nil
	case w.Message != "":
		return &Rejected{Message: w.Message}, nil
	default:
		return nil, payerr.ErrLedgerBadResponse
	}
}

// DecodePresets parses a fee-presets response body. The body is either the
// JSON string "wait" or an object whose feeSuggestion keys are read in server order.
//
//nolint:gocognit // streaming decode with nested callbacks
func DecodePresets(body []byte) (*PresetsReply, error) {
	iter := jsoniter.ParseBytes(jsonAPI, body)
	reply := &PresetsReply{}

	switch iter.WhatIsNext() {
	case jsoniter.StringValue:
		if s := iter.ReadString(); strings.EqualFold(strings.TrimSpace(s), WaitSentinel) {
			reply.Wait = true
			return reply, nil
		}
		return nil, payerr.WithDetails(payerr.ErrLedgerBadResponse, map[string]string{"body": truncateBody(body)})

	case jsoniter.ObjectValue:
		var valueErr error
		iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
			switch field {
			case "feeSuggestion":
				if it.WhatIsNext() == jsoniter.StringValue {
					reply.Wait = strings.EqualFold(it.ReadString(), WaitSentinel)
					return true
				}
				it.ReadObjectCB(func(inner *jsoniter.Iterator, name string) bool {
					v, err := readDecimal(inner)
					if err != nil {
						valueErr = payerr.WithDetails(payerr.ErrLedgerBadResponse, map[string]string{"preset": name})
						return false
					}
					reply.Presets = append(reply.Presets, fee.Preset{Name: fee.PresetName(name), Value: v})
					return true
				})
			case "feeUnit":
				reply.Unit = it.ReadString()
			case "message":
				reply.Message = it.ReadString()
			default:
				it.Skip()
			}
			return valueErr == nil
		})
		if valueErr != nil {
			return nil, valueErr
		}
		if iter.Error != nil && iter.Error != io.EOF {
			return nil, payerr.Wrap(payerr.ErrLedgerBadResponse, "decoding presets: %v", iter.Error)
		}
		return reply, nil

	default:
		return nil, payerr.WithDetails(payerr.ErrLedgerBadResponse, map[string]string{"body": truncateBody(body)})
	}
}

func readDecimal(it *jsoniter.Iterator) (decimal.Decimal, error) {
	var raw string
	switch it.WhatIsNext() {
	case jsoniter.NumberValue:
		raw = string(it.ReadNumber())
	case jsoniter.StringValue:
		raw = it.ReadString()
	default:
		it.Skip()
		return decimal.Zero, payerr.ErrLedgerBadResponse
	}
	return decimal.NewFromString(raw)
}

func truncateBody(body []byte) string {
	const maxLen = 120
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// encode marshals a request payload.
func encode(v any) ([]byte, error) {
	return jsonAPI.Marshal(v)
}
