package pcm

import "github.com/kasbahsoft/comptaflow/internal/model"

// Default returns the built-in CGNC chart subset the pipeline ships with.
// Cabinets can extend it in storage; these are the accounts the generator
// and classifier need to exist.
func Default() *Chart {
	return NewChart(defaultAccounts())
}

func defaultAccounts() []model.PcmAccount {
	return []model.PcmAccount{
		// Classe 2 - immobilisations
		{Code: "2332", Label: "Matériel et outillage", Class: 2, GroupCode: "23", Type: model.AccountActif},
		{Code: "2340", Label: "Matériel de transport", Class: 2, GroupCode: "23", Type: model.AccountActif},
		{Code: "2351", Label: "Mobilier de bureau", Class: 2, GroupCode: "23", Type: model.AccountActif},
		{Code: "2355", Label: "Matériel informatique", Class: 2, GroupCode: "23", Type: model.AccountActif},

		// Classe 3 - créances et TVA récupérable
		{Code: AccountClients, Label: "Clients", Class: 3, GroupCode: "34", Type: model.AccountTiers},
		{Code: AccountVATFixedAssets, Label: "État - TVA récupérable sur immobilisations", Class: 3, GroupCode: "34", Type: model.AccountActif, IsVAT: true, VATKind: model.VATImmobilisation},
		{Code: AccountVATRecoverable, Label: "État - TVA récupérable sur charges", Class: 3, GroupCode: "34", Type: model.AccountActif, IsVAT: true, VATKind: model.VATRecuperable},

		// Classe 4 - dettes et TVA facturée
		{Code: AccountFournisseurs, Label: "Fournisseurs", Class: 4, GroupCode: "44", Type: model.AccountTiers},
		{Code: AccountVATCollected, Label: "État - TVA facturée", Class: 4, GroupCode: "44", Type: model.AccountPassif, IsVAT: true, VATKind: model.VATCollectee},

		// Classe 5 - trésorerie
		{Code: "5141", Label: "Banques", Class: 5, GroupCode: "51", Type: model.AccountActif},
		{Code: "5161", Label: "Caisses", Class: 5, GroupCode: "51", Type: model.AccountActif},

		// Classe 6 - charges
		{Code: "6111", Label: "Achats de marchandises", Class: 6, GroupCode: "61", Type: model.AccountCharge},
		{Code: "6121", Label: "Achats de matières premières", Class: 6, GroupCode: "61", Type: model.AccountCharge},
		{Code: "6125", Label: "Achats non stockés de matières et fournitures", Class: 6, GroupCode: "61", Type: model.AccountCharge},
		{Code: "6131", Label: "Locations et charges locatives", Class: 6, GroupCode: "61", Type: model.AccountCharge},
		{Code: "6133", Label: "Entretien et réparations", Class: 6, GroupCode: "61", Type: model.AccountCharge},
		{Code: "6134", Label: "Primes d'assurances", Class: 6, GroupCode: "61", Type: model.AccountCharge},
		{Code: "6136", Label: "Rémunérations du personnel extérieur à l'entreprise", Class: 6, GroupCode: "61", Type: model.AccountCharge},
		{Code: "6141", Label: "Transports", Class: 6, GroupCode: "61", Type: model.AccountCharge},
		{Code: "6142", Label: "Déplacements, missions et réceptions", Class: 6, GroupCode: "61", Type: model.AccountCharge},
		{Code: "6144", Label: "Publicité, publications et relations publiques", Class: 6, GroupCode: "61", Type: model.AccountCharge},
		{Code: "6145", Label: "Frais postaux et frais de télécommunications", Class: 6, GroupCode: "61", Type: model.AccountCharge},
		{Code: "6147", Label: "Services bancaires", Class: 6, GroupCode: "61", Type: model.AccountCharge},
		{Code: "6161", Label: "Impôts et taxes directs", Class: 6, GroupCode: "61", Type: model.AccountCharge},
		{Code: "6171", Label: "Rémunérations du personnel", Class: 6, GroupCode: "61", Type: model.AccountCharge},

		// Classe 7 - produits
		{Code: "7111", Label: "Ventes de marchandises au Maroc", Class: 7, GroupCode: "71", Type: model.AccountProduit},
		{Code: "7121", Label: "Ventes de biens produits au Maroc", Class: 7, GroupCode: "71", Type: model.AccountProduit},
		{Code: "7124", Label: "Ventes de services produits au Maroc", Class: 7, GroupCode: "71", Type: model.AccountProduit},
		{Code: "7127", Label: "Ventes de produits accessoires", Class: 7, GroupCode: "71", Type: model.AccountProduit},
	}
}
