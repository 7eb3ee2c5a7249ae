// Package purchase turns an operator's manual purchase request into a completed
// order in the host store: it resolves the buyer, prices the selected products,
// and submits the order.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"

	"edd-manual-purchases/internal/model"
	"edd-manual-purchases/internal/store"
)

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	numericPattern = regexp.MustCompile(`^[0-9]+$`)
)

// BuyerResolver maps the free-text buyer field to an account or a guest.
type BuyerResolver struct {
	accounts store.Accounts
}

// NewBuyerResolver creates a resolver backed by the account store.
func NewBuyerResolver(accounts store.Accounts) *BuyerResolver {
	return &BuyerResolver{accounts: accounts}
}

// Resolve looks the input up as an account id, then email, then login,
// depending on its shape. When no account matches, the buyer is a guest whose
// email is the cleaned input. Store failures other than not-found are returned.
func (r *BuyerResolver) Resolve(ctx context.Context, input string) (model.Buyer, error) {
	cleaned := CleanInput(input)
	if cleaned == "" {
		return model.Buyer{}, model.NewValidationError("user", "buyer is required")
	}

	account, err := r.lookup(ctx, cleaned)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return model.Buyer{}, fmt.Errorf("looking up buyer: %w", err)
		}
		account = nil
	}

	if account == nil {
		return model.Buyer{Email: cleaned, Discount: "none"}, nil
	}
	return model.Buyer{
		ID:        account.ID,
		Email:     account.Email,
		FirstName: account.FirstName,
		LastName:  account.LastName,
		Discount:  "none",
	}, nil
}

func (r *BuyerResolver) lookup(ctx context.Context, value string) (*model.Account, error) {
	switch {
	case IsNumeric(value):
		id, err := strconv.Atoi(value)
		if err != nil || id == 0 {
			// Out of range ids cannot belong to an account.
			return nil, nil
		}
		return r.accounts.GetAccountByID(ctx, id)
	case IsEmail(value):
		return r.accounts.GetAccountByEmail(ctx, value)
	default:
		return r.accounts.GetAccountByLogin(ctx, value)
	}
}

// CleanInput trims whitespace and strips HTML tags.
func CleanInput(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(strings.TrimSpace(s), ""))
}

// IsNumeric reports whether s is a plain run of digits.
// Decimal and exponent forms such as "1.0" or "1e3" are not ids; they are
// looked up as logins and fall back to a guest.
func IsNumeric(s string) bool {
	return numericPattern.MatchString(s)
}

// IsEmail reports whether s is a bare address with a dotted domain.
// Display-name forms ("Jo <jo@example.com>") are rejected.
func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	domain := s[at+1:]
	return at > 0 && strings.Contains(domain, ".") &&
		!strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
