package gateway

type createOrderRequest struct {
	MerchantOrderID string `json:"merchant_order_id"`
	MerchantID      string `json:"merchant_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	CustomerID      string `json:"customer_id"`
	Description     string `json:"description,omitempty"`
}

type refundRequest struct {
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
}

type orderResponse struct {
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	PaymentURL    string `json:"payment_url,omitempty"`
}

type errorResponse struct {
	Err     string `json:"error"`
	Message string `json:"message"`
}
