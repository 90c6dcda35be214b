package payments

import (
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v76"
)

func TestMapStripeErrorCategories(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		category  Category
		retryable bool
	}{
		{
			name:      "card declined",
			err:       &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined, Msg: "Your card was declined."},
			category:  CategoryDeclined,
			retryable: false,
		},
		{
			name:      "invalid request",
			err:       &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "No such payment_intent"},
			category:  CategoryInvalidRequest,
			retryable: false,
		},
		{
			name:      "api error",
			err:       &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "An error occurred"},
			category:  CategoryUnavailable,
			retryable: true,
		},
		{
			name:      "plain network error",
			err:       errors.New("dial tcp: connection refused"),
			category:  CategoryConnection,
			retryable: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := mapStripeError("capture", tc.err)
			if mapped.Category != tc.category {
				t.Fatalf("category = %s, want %s", mapped.Category, tc.category)
			}
			if mapped.Retryable() != tc.retryable {
				t.Fatalf("retryable = %v, want %v", mapped.Retryable(), tc.retryable)
			}
			if !errors.Is(mapped, tc.err) && mapped.Err != tc.err {
				t.Fatalf("mapped error does not wrap the original")
			}
		})
	}
}

func TestCategoryOfUntyped(t *testing.T) {
	if got := CategoryOf(errors.New("boom")); got != CategoryConnection {
		t.Fatalf("CategoryOf untyped = %s, want %s", got, CategoryConnection)
	}
	gerr := &Error{Category: CategoryDeclined}
	if got := CategoryOf(gerr); got != CategoryDeclined {
		t.Fatalf("CategoryOf typed = %s, want %s", got, CategoryDeclined)
	}
}
