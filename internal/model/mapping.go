package model

import "time"

// SupplierMapping remembers which PCM account a cabinet's supplier resolved
// to the last time one of its invoices was validated. It is the persistent
// memory of the classification feedback loop: the classifier reads it, the
// validation step writes it.
type SupplierMapping struct {
	CabinetID   int64
	SupplierICE string
	AccountCode string
	LastUpdated time.Time
	UseCount    int
}
