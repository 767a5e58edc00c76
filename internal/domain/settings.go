package domain

// Settings is the per-account business profile and numbering configuration.
type Settings struct {
	BusinessName        string  `json:"businessName"`
	BusinessEmail       string  `json:"businessEmail"`
	BusinessPhone       string  `json:"businessPhone"`
	BusinessAddress     string  `json:"businessAddress"`
	BusinessLogo        *string `json:"businessLogo"`
	DefaultCurrency     string  `json:"defaultCurrency"`
	DefaultTaxRate      float64 `json:"defaultTaxRate"`
	InvoicePrefix       string  `json:"invoicePrefix"`
	InvoiceNextNumber   int     `json:"invoiceNextNumber"`
	QuotationPrefix     string  `json:"quotationPrefix"`
	QuotationNextNumber int     `json:"quotationNextNumber"`
	PaymentTerms        int     `json:"paymentTerms"`
}

// DefaultSettings returns the settings a new or signed-out account starts with.
func DefaultSettings() Settings {
	return Settings{
		BusinessName:        "Your Business",
		DefaultCurrency:     "USD",
		DefaultTaxRate:      10,
		InvoicePrefix:       "INV",
		InvoiceNextNumber:   1001,
		QuotationPrefix:     "QUO",
		QuotationNextNumber: 1001,
		PaymentTerms:        30,
	}
}

// Currency is a supported document currency.
type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Currencies returns the supported currencies in display order.
func Currencies() []Currency {
	return []Currency{
		{Code: "USD", Symbol: "$", Name: "US Dollar"},
		{Code: "EUR", Symbol: "€", Name: "Euro"},
		{Code: "GBP", Symbol: "£", Name: "British Pound"},
		{Code: "INR", Symbol: "₹", Name: "Indian Rupee"},
		{Code: "CAD", Symbol: "C$", Name: "Canadian Dollar"},
		{Code: "AUD", Symbol: "A$", Name: "Australian Dollar"},
	}
}

// CurrencySymbol returns the symbol for code, or the code itself when unknown.
func CurrencySymbol(code string) string {
	for _, c := range Currencies() {
		if c.Code == code {
			return c.Symbol
		}
	}
	return code
}

// SupportedCurrency reports whether code is one of Currencies.
func SupportedCurrency(code string) bool {
	for _, c := range Currencies() {
		if c.Code == code {
			return true
		}
	}
	return false
}
