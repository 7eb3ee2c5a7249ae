package purchase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edd-manual-purchases/internal/model"
	"edd-manual-purchases/internal/store"
)

var jane = &model.Account{ID: 42, Email: "jane@example.com", Login: "jane", FirstName: "Jane", LastName: "Doe"}

// accountStore answers lookups for jane only and records which lookup ran.
func accountStore(calls *[]string) *store.Mock {
	return &store.Mock{
		GetAccountByIDFunc: func(ctx context.Context, id int) (*model.Account, error) {
			*calls = append(*calls, "id")
			if id == jane.ID {
				return jane, nil
			}
			return nil, model.NewNotFoundError("account")
		},
		GetAccountByEmailFunc: func(ctx context.Context, email string) (*model.Account, error) {
			*calls = append(*calls, "email")
			if email == jane.Email {
				return jane, nil
			}
			return nil, model.NewNotFoundError("account")
		},
		GetAccountByLoginFunc: func(ctx context.Context, login string) (*model.Account, error) {
			*calls = append(*calls, "login")
			if login == jane.Login {
				return jane, nil
			}
			return nil, model.NewNotFoundError("account")
		},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantLookup string
		want       model.Buyer
	}{
		{
			name:       "numeric id of existing account",
			input:      "42",
			wantLookup: "id",
			want:       model.Buyer{ID: 42, Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", Discount: "none"},
		},
		{
			name:       "numeric id without account",
			input:      "77",
			wantLookup: "id",
			want:       model.Buyer{Email: "77", Discount: "none"},
		},
		{
			name:       "email of existing account",
			input:      "jane@example.com",
			wantLookup: "email",
			want:       model.Buyer{ID: 42, Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", Discount: "none"},
		},
		{
			name:       "unknown email becomes guest",
			input:      "buyer@example.com",
			wantLookup: "email",
			want:       model.Buyer{Email: "buyer@example.com", Discount: "none"},
		},
		{
			name:       "login of existing account",
			input:      "jane",
			wantLookup: "login",
			want:       model.Buyer{ID: 42, Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", Discount: "none"},
		},
		{
			name:       "unknown login becomes guest",
			input:      "nobody",
			wantLookup: "login",
			want:       model.Buyer{Email: "nobody", Discount: "none"},
		},
		{
			name:       "exponent form is a login, not an id",
			input:      "1e3",
			wantLookup: "login",
			want:       model.Buyer{Email: "1e3", Discount: "none"},
		},
		{
			name:       "tags and whitespace stripped",
			input:      "  <b>buyer@example.com</b> ",
			wantLookup: "email",
			want:       model.Buyer{Email: "buyer@example.com", Discount: "none"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			r := NewBuyerResolver(accountStore(&calls))

			got, err := r.Resolve(context.Background(), tt.input)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, []string{tt.wantLookup}, calls)
		})
	}
}

func TestResolveGuestKeepsNonEmptyEmail(t *testing.T) {
	var calls []string
	r := NewBuyerResolver(accountStore(&calls))

	for _, input := range []string{"1", "99999999999999999999999", "x", "a@b"} {
		got, err := r.Resolve(context.Background(), input)
		require.NoError(t, err)
		assert.True(t, got.IsGuest(), input)
		assert.Equal(t, input, got.Email)
	}
}

func TestResolveEmptyInput(t *testing.T) {
	var calls []string
	r := NewBuyerResolver(accountStore(&calls))

	_, err := r.Resolve(context.Background(), "  <br/> ")

	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	assert.Empty(t, calls)
}

func TestResolveUpstreamFailure(t *testing.T) {
	r := NewBuyerResolver(&store.Mock{
		GetAccountByEmailFunc: func(ctx context.Context, email string) (*model.Account, error) {
			return nil, model.NewUpstreamError("EDD", errors.New("timeout"))
		},
	})

	_, err := r.Resolve(context.Background(), "buyer@example.com")

	assert.ErrorIs(t, err, model.ErrUpstreamError)
}

func TestIsEmail(t *testing.T) {
	valid := []string{"buyer@example.com", "first.last+tag@sub.example.org"}
	invalid := []string{"buyer", "buyer@", "@example.com", "a@b", "Jo <jo@example.com>", "jo@example.", "jo@.com"}

	for _, s := range valid {
		assert.True(t, IsEmail(s), s)
	}
	for _, s := range invalid {
		assert.False(t, IsEmail(s), s)
	}
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("0"))
	assert.True(t, IsNumeric("123"))
	assert.False(t, IsNumeric(""))
	assert.False(t, IsNumeric("12a"))
	assert.False(t, IsNumeric("-5"))
	assert.False(t, IsNumeric("1.5"))
	assert.False(t, IsNumeric("1.0"))
	assert.False(t, IsNumeric("1e3"))
}
