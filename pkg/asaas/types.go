package asaas

// CustomerPayload is the body of POST /customers
type CustomerPayload struct {
	Name              string `json:"name"`
	CpfCnpj           string `json:"cpfCnpj,omitempty"`
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	MobilePhone       string `json:"mobilePhone,omitempty"`
	PostalCode        string `json:"postalCode,omitempty"`
	Address           string `json:"address,omitempty"`
	AddressNumber     string `json:"addressNumber,omitempty"`
	City              string `json:"city,omitempty"`
	State             string `json:"state,omitempty"`
	ExternalReference string `json:"externalReference,omitempty"`
}

// Customer as returned by the API
type Customer struct {
	ID                string `json:"id"`
	DateCreated       string `json:"dateCreated"`
	Name              string `json:"name"`
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	MobilePhone       string `json:"mobilePhone,omitempty"`
	CpfCnpj           string `json:"cpfCnpj,omitempty"`
	ExternalReference string `json:"externalReference,omitempty"`
	PersonType        string `json:"personType,omitempty"`
}

// PaymentPayload is the body of POST /payments
type PaymentPayload struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	Description       string  `json:"description,omitempty"`
	ExternalReference string  `json:"externalReference,omitempty"`
	InstallmentCount  int     `json:"installmentCount,omitempty"`
	InstallmentValue  float64 `json:"installmentValue,omitempty"`
}

// Payment as returned by the API and embedded in webhooks
type Payment struct {
	ID                string  `json:"id"`
	Customer          string  `json:"customer"`
	Subscription      string  `json:"subscription,omitempty"`
	Installment       string  `json:"installment,omitempty"`
	Value             float64 `json:"value"`
	NetValue          float64 `json:"netValue"`
	Status            string  `json:"status"`
	BillingType       string  `json:"billingType"`
	DueDate           string  `json:"dueDate"`
	PaymentDate       string  `json:"paymentDate,omitempty"`
	ConfirmedDate     string  `json:"confirmedDate,omitempty"`
	InvoiceURL        string  `json:"invoiceUrl,omitempty"`
	BankSlipURL       string  `json:"bankSlipUrl,omitempty"`
	ExternalReference string  `json:"externalReference,omitempty"`
	Description       string  `json:"description,omitempty"`
	InstallmentNumber int     `json:"installmentNumber,omitempty"`
}

// Subscription as embedded in webhooks
type Subscription struct {
	ID          string  `json:"id"`
	Customer    string  `json:"customer"`
	Value       float64 `json:"value"`
	Cycle       string  `json:"cycle"`
	Status      string  `json:"status"`
	NextDueDate string  `json:"nextDueDate,omitempty"`
	Description string  `json:"description,omitempty"`
}

// PaymentList is a paginated listing
type PaymentList struct {
	Object     string    `json:"object"`
	HasMore    bool      `json:"hasMore"`
	TotalCount int       `json:"totalCount"`
	Limit      int       `json:"limit"`
	Offset     int       `json:"offset"`
	Data       []Payment `json:"data"`
}

// WebhookPayload is the envelope Asaas posts to /webhooks/asaas
type WebhookPayload struct {
	ID           string        `json:"id,omitempty"`
	Event        string        `json:"event"`
	Payment      *Payment      `json:"payment,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
	Customer     *Customer     `json:"customer,omitempty"`
}

type apiErrorBody struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}
