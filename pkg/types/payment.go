package types

import "fmt"

// PaymentMethod enumerates the supported (simulated) payment options.
type PaymentMethod string

const (
	// PaymentMethodCard settles synchronously with the checkout call.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodBankTransfer also settles synchronously; the transfer
	// itself happens out of band.
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	// PaymentMethodRedirect models third-party providers whose confirmation
	// arrives through an external callback after a redirect.
	PaymentMethodRedirect PaymentMethod = "redirect"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodRedirect:
		return true
	}
	return false
}

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	method := PaymentMethod(raw)
	if !method.Valid() {
		return "", fmt.Errorf("unknown payment method %q", raw)
	}
	return method, nil
}
