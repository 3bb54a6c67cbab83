package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

// GetBalance fetches the user's account as the ledger currently has it.
func (c *Client) GetBalance(ctx context.Context) (models.UserAccount, error) {
	body, err := c.get(ctx, "/balance", nil)
	if err != nil {
		return models.UserAccount{}, fmt.Errorf("get balance: %w", err)
	}
	acct, err := decodeAccount(body)
	if err != nil {
		return models.UserAccount{}, fmt.Errorf("get balance: %w", err)
	}
	return acct, nil
}

// ErrSubCentAmount is returned for balance changes the path cannot carry
// without rounding.
var ErrSubCentAmount = errors.New("amount is not a whole number of cents")

// AdjustBalance adds or subtracts amount from the cash balance. operator is
// "add" or "subtract". amount must be in whole cents.
func (c *Client) AdjustBalance(ctx context.Context, amount decimal.Decimal, operator string) (models.UserAccount, error) {
	if !amount.Equal(amount.Round(2)) {
		return models.UserAccount{}, fmt.Errorf("adjust balance %s %s: %w", operator, amount, ErrSubCentAmount)
	}
	path := "/balance/" + amount.StringFixed(2) + "/" + operator
	body, err := c.doRequest(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		return models.UserAccount{}, fmt.Errorf("adjust balance %s %s: %w", operator, amount.StringFixed(2), err)
	}
	acct, err := decodeAccount(body)
	if err != nil {
		return models.UserAccount{}, fmt.Errorf("adjust balance: %w", err)
	}
	return acct, nil
}

// decodeAccount accepts a bare user record or one wrapped as {"user": {...}}.
func decodeAccount(body []byte) (models.UserAccount, error) {
	var wrapped struct {
		User *models.UserAccount `json:"user"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return models.UserAccount{}, err
	}
	if wrapped.User != nil {
		return *wrapped.User, nil
	}
	var acct models.UserAccount
	if err := json.Unmarshal(body, &acct); err != nil {
		return models.UserAccount{}, err
	}
	return acct, nil
}
