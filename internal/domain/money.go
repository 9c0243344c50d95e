package domain

// Money is a fixed-point amount in the currency's minor unit.
type Money struct {
	Amount   int64
	Currency string
}

func NewMoney(amount int64, currency string) (Money, error) {
	if amount <= 0 {
		return Money{}, NewInvalidAmountError(amount)
	}
	if len(currency) != 3 {
		return Money{}, NewMissingRequiredFieldError("currency")
	}
	return Money{Amount: amount, Currency: currency}, nil
}
