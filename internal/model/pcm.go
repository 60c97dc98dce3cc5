package model

// AccountType is the broad PCM account family.
type AccountType string

// PCM account families.
const (
	AccountCharge  AccountType = "CHARGE"
	AccountProduit AccountType = "PRODUIT"
	AccountActif   AccountType = "ACTIF"
	AccountPassif  AccountType = "PASSIF"
	AccountTiers   AccountType = "TIERS"
)

// VATKind distinguishes VAT sub-accounts.
type VATKind string

// VAT account kinds.
const (
	VATCollectee      VATKind = "COLLECTEE"
	VATRecuperable    VATKind = "RECUPERABLE"
	VATImmobilisation VATKind = "IMMOBILISATION"
)

// PcmAccount is one account of the Moroccan chart of accounts (Plan
// Comptable Marocain). Read-only reference data at pipeline runtime.
type PcmAccount struct {
	Code      string
	Label     string
	Class     int
	GroupCode string
	Type      AccountType
	IsVAT     bool
	VATKind   VATKind
}
