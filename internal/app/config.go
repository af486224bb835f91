package app

// PaymentConfig holds the store-configurable order statuses and email policy.
type PaymentConfig struct {
	ConfirmedStatus     string
	PreAuthorizedStatus string
	PendingStatus       string
	CanceledStatus      string
	SendOrderEmail      bool
}

// DefaultPaymentConfig mirrors the statuses installed with the MONEI module.
func DefaultPaymentConfig() PaymentConfig {
	return PaymentConfig{
		ConfirmedStatus:     "processing",
		PreAuthorizedStatus: "monei_authorized",
		PendingStatus:       "monei_pending",
		CanceledStatus:      "canceled",
		SendOrderEmail:      true,
	}
}

func (c PaymentConfig) withDefaults() PaymentConfig {
	d := DefaultPaymentConfig()
	if c.ConfirmedStatus == "" {
		c.ConfirmedStatus = d.ConfirmedStatus
	}
	if c.PreAuthorizedStatus == "" {
		c.PreAuthorizedStatus = d.PreAuthorizedStatus
	}
	if c.PendingStatus == "" {
		c.PendingStatus = d.PendingStatus
	}
	if c.CanceledStatus == "" {
		c.CanceledStatus = d.CanceledStatus
	}
	return c
}
