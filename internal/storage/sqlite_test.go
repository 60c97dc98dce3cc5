package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasbahsoft/comptaflow/internal/common"
	"github.com/kasbahsoft/comptaflow/internal/model"
	"github.com/kasbahsoft/comptaflow/internal/service"
)

func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func testInvoice() *model.Invoice {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	return &model.Invoice{
		ID:            uuid.NewString(),
		SocieteID:     100,
		CabinetID:     10,
		Status:        model.StatusImported,
		FileRef:       "/tmp/facture.pdf",
		OriginalName:  "facture.pdf",
		InvoiceNumber: "FA-2026-001",
		InvoiceDate:   &date,
		SupplierName:  "Maroc Telecom",
		SupplierICE:   "001234567000089",
		InvoiceType:   model.TypeAchat,
		TotalHT:       nullDec("1000.00"),
		TotalTVA:      nullDec("200.00"),
		TotalTTC:      nullDec("1200.00"),
	}
}

func TestSQLiteStorage_InvoiceRoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	inv := testInvoice()
	inv.ComplianceFlags = []model.ComplianceFlag{
		{Code: "IF_MISSING", Message: "Identifiant fiscal manquant", Severity: model.SeverityWarning, Field: "supplier_if"},
	}
	if err := store.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	got, err := store.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.SupplierName != inv.SupplierName {
		t.Errorf("SupplierName = %q, want %q", got.SupplierName, inv.SupplierName)
	}
	if !got.TotalTTC.Valid || !got.TotalTTC.Decimal.Equal(dec("1200.00")) {
		t.Errorf("TotalTTC = %v", got.TotalTTC)
	}
	if got.InvoiceDate == nil || !got.InvoiceDate.Equal(*inv.InvoiceDate) {
		t.Errorf("InvoiceDate = %v, want %v", got.InvoiceDate, inv.InvoiceDate)
	}
	if len(got.ComplianceFlags) != 1 || got.ComplianceFlags[0].Code != "IF_MISSING" {
		t.Errorf("ComplianceFlags = %v", got.ComplianceFlags)
	}
	if got.Status != model.StatusImported {
		t.Errorf("Status = %s", got.Status)
	}
}

func TestSQLiteStorage_GetInvoiceNotFound(t *testing.T) {
	store := createTestStorage(t)
	_, err := store.GetInvoice(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_StatusTransitions(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	inv := testInvoice()
	if err := store.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if err := store.UpdateInvoiceStatus(ctx, inv.ID, model.StatusExtracted); err != nil {
		t.Fatalf("UpdateInvoiceStatus: %v", err)
	}
	got, _ := store.GetInvoice(ctx, inv.ID)
	if got.Status != model.StatusExtracted {
		t.Errorf("Status = %s, want EXTRACTED", got.Status)
	}

	at := time.Now()
	if err := store.MarkInvoiceValidated(ctx, inv.ID, "agent.test", at); err != nil {
		t.Fatalf("MarkInvoiceValidated: %v", err)
	}
	got, _ = store.GetInvoice(ctx, inv.ID)
	if got.Status != model.StatusValidated || got.ValidatedBy != "agent.test" || got.ValidatedAt == nil {
		t.Errorf("validated invoice = %+v", got)
	}

	inv2 := testInvoice()
	inv2.InvoiceNumber = "FA-2026-002"
	inv2.InvoiceDate = nil
	if err := store.CreateInvoice(ctx, inv2); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if err := store.MarkInvoiceRejected(ctx, inv2.ID, "document illisible"); err != nil {
		t.Fatalf("MarkInvoiceRejected: %v", err)
	}
	got, _ = store.GetInvoice(ctx, inv2.ID)
	if got.Status != model.StatusError || got.RejectReason != "document illisible" {
		t.Errorf("rejected invoice = %+v", got)
	}
}

func TestSQLiteStorage_ListInvoices(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		inv := testInvoice()
		inv.InvoiceDate = nil
		if i == 2 {
			inv.SocieteID = 200
		}
		if err := store.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("CreateInvoice: %v", err)
		}
	}

	invoices, err := store.ListInvoices(ctx, 100, service.InvoiceFilter{})
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(invoices) != 2 {
		t.Errorf("expected 2 invoices for société 100, got %d", len(invoices))
	}

	invoices, err = store.ListInvoices(ctx, 100, service.InvoiceFilter{Status: model.StatusValidated})
	if err != nil {
		t.Fatalf("ListInvoices filtered: %v", err)
	}
	if len(invoices) != 0 {
		t.Errorf("expected no VALIDATED invoices, got %d", len(invoices))
	}
}

func TestSQLiteStorage_FindDuplicateInvoice(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	existing := testInvoice()
	if err := store.CreateInvoice(ctx, existing); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	cand := service.DuplicateCandidate{
		SocieteID:   100,
		ExcludeID:   "other-id",
		InvoiceDate: existing.InvoiceDate,
		TotalTTC:    existing.TotalTTC,
		SupplierICE: existing.SupplierICE,
	}

	dup, err := store.FindDuplicateInvoice(ctx, cand)
	if err != nil {
		t.Fatalf("FindDuplicateInvoice: %v", err)
	}
	if dup == nil || dup.ID != existing.ID {
		t.Fatalf("expected duplicate %s, got %+v", existing.ID, dup)
	}

	// The invoice itself is excluded.
	cand.ExcludeID = existing.ID
	dup, err = store.FindDuplicateInvoice(ctx, cand)
	if err != nil {
		t.Fatalf("FindDuplicateInvoice: %v", err)
	}
	if dup != nil {
		t.Errorf("invoice must not match itself")
	}

	// Different société never matches.
	cand.ExcludeID = "other-id"
	cand.SocieteID = 200
	dup, _ = store.FindDuplicateInvoice(ctx, cand)
	if dup != nil {
		t.Errorf("duplicate check must be scoped per société")
	}

	// Name fallback when ICE is absent.
	cand.SocieteID = 100
	cand.SupplierICE = ""
	cand.SupplierName = "Maroc Telecom"
	dup, _ = store.FindDuplicateInvoice(ctx, cand)
	if dup == nil {
		t.Errorf("expected name-based duplicate match")
	}

	// Missing date or TTC disables detection.
	cand.InvoiceDate = nil
	dup, _ = store.FindDuplicateInvoice(ctx, cand)
	if dup != nil {
		t.Errorf("missing date must disable duplicate detection")
	}

	// TTC matching is numeric, not textual: a stored "1200.00" still
	// matches a candidate carrying "1200".
	if _, err := store.db.ExecContext(ctx,
		`UPDATE invoices SET total_ttc = '1200.00' WHERE id = ?`, existing.ID); err != nil {
		t.Fatalf("rewrite total_ttc: %v", err)
	}
	cand.InvoiceDate = existing.InvoiceDate
	cand.SupplierICE = existing.SupplierICE
	cand.SupplierName = ""
	cand.TotalTTC = nullDec("1200")
	dup, err = store.FindDuplicateInvoice(ctx, cand)
	if err != nil {
		t.Fatalf("FindDuplicateInvoice: %v", err)
	}
	if dup == nil {
		t.Errorf("trailing zeros in the stored total must not defeat the match")
	}
}

func TestSQLiteStorage_InvoiceLines(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	inv := testInvoice()
	if err := store.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	lines := []model.InvoiceLine{
		{Description: "Abonnement", Quantity: dec("1"), AmountHT: dec("600.00"), VATRate: dec("20"), VATAmount: dec("120.00"), AmountTTC: dec("720.00")},
		{Description: "Options", Quantity: dec("2"), AmountHT: dec("400.00"), VATRate: dec("20"), VATAmount: dec("80.00"), AmountTTC: dec("480.00")},
	}
	if err := store.ReplaceInvoiceLines(ctx, inv.ID, lines); err != nil {
		t.Fatalf("ReplaceInvoiceLines: %v", err)
	}

	got, err := store.GetInvoiceLines(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoiceLines: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got))
	}
	if got[0].LineNumber != 1 || got[1].LineNumber != 2 {
		t.Errorf("line numbers = %d, %d", got[0].LineNumber, got[1].LineNumber)
	}
	if !got[0].AmountHT.Equal(dec("600.00")) {
		t.Errorf("AmountHT = %s", got[0].AmountHT)
	}

	// Replacement starts from a clean slate.
	if err := store.ReplaceInvoiceLines(ctx, inv.ID, lines[:1]); err != nil {
		t.Fatalf("ReplaceInvoiceLines: %v", err)
	}
	got, _ = store.GetInvoiceLines(ctx, inv.ID)
	if len(got) != 1 {
		t.Errorf("expected 1 line after replacement, got %d", len(got))
	}

	// Classification update.
	got[0].PcmClass = 6
	got[0].PcmAccountCode = "6125"
	got[0].Confidence = 0.9
	if err := store.UpdateLineClassification(ctx, &got[0]); err != nil {
		t.Fatalf("UpdateLineClassification: %v", err)
	}
	line, err := store.GetInvoiceLine(ctx, got[0].ID)
	if err != nil {
		t.Fatalf("GetInvoiceLine: %v", err)
	}
	if line.PcmAccountCode != "6125" || line.Confidence != 0.9 {
		t.Errorf("classification not persisted: %+v", line)
	}
}

func TestSQLiteStorage_PatchInvoiceLine(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	inv := testInvoice()
	if err := store.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	lines := []model.InvoiceLine{{Description: "Abonnement", AmountHT: dec("1000.00")}}
	if err := store.ReplaceInvoiceLines(ctx, inv.ID, lines); err != nil {
		t.Fatalf("ReplaceInvoiceLines: %v", err)
	}

	newHT := dec("1100.00")
	account := "6144"
	patch := model.LinePatch{AmountHT: &newHT, CorrectedAccountCode: &account}
	if err := store.PatchInvoiceLine(ctx, lines[0].ID, patch); err != nil {
		t.Fatalf("PatchInvoiceLine: %v", err)
	}

	got, err := store.GetInvoiceLine(ctx, lines[0].ID)
	if err != nil {
		t.Fatalf("GetInvoiceLine: %v", err)
	}
	if !got.AmountHT.Equal(newHT) {
		t.Errorf("AmountHT = %s, want 1100.00", got.AmountHT)
	}
	if got.Description != "Abonnement" {
		t.Errorf("untouched field changed: %q", got.Description)
	}
	if !got.IsCorrected || got.CorrectedAccountCode != "6144" {
		t.Errorf("correction not persisted: %+v", got)
	}
}

func TestSQLiteStorage_JournalEntries(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	inv := testInvoice()
	if err := store.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	entry := &model.JournalEntry{
		ID:          uuid.NewString(),
		InvoiceID:   inv.ID,
		JournalCode: model.JournalAchats,
		EntryDate:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Reference:   "FA-2026-001",
		Description: "Facture Maroc Telecom",
		TotalDebit:  dec("1200.00"),
		TotalCredit: dec("1200.00"),
		Lines: []model.EntryLine{
			{AccountCode: "6111", AccountLabel: "Achats de marchandises", Debit: dec("1000.00")},
			{AccountCode: "34552", Debit: dec("200.00")},
			{AccountCode: "4411", Credit: dec("1200.00"), Counterparty: "Maroc Telecom"},
		},
	}
	if err := store.SaveJournalEntry(ctx, entry); err != nil {
		t.Fatalf("SaveJournalEntry: %v", err)
	}

	entries, err := store.GetEntriesByInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetEntriesByInvoice: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if len(entries[0].Lines) != 3 {
		t.Fatalf("expected 3 entry lines, got %d", len(entries[0].Lines))
	}
	if entries[0].Lines[0].Position != 1 || entries[0].Lines[2].Position != 3 {
		t.Errorf("positions = %d, %d", entries[0].Lines[0].Position, entries[0].Lines[2].Position)
	}
	if !entries[0].TotalDebit.Equal(dec("1200.00")) {
		t.Errorf("TotalDebit = %s", entries[0].TotalDebit)
	}

	// Draft deletion leaves validated entries untouched.
	if err := store.MarkEntriesValidated(ctx, inv.ID, "agent.test", time.Now()); err != nil {
		t.Fatalf("MarkEntriesValidated: %v", err)
	}

	draft := &model.JournalEntry{
		ID:          uuid.NewString(),
		InvoiceID:   inv.ID,
		JournalCode: model.JournalAchats,
		EntryDate:   time.Now(),
		Lines:       []model.EntryLine{{AccountCode: "6111", Debit: dec("10.00")}},
	}
	if err := store.SaveJournalEntry(ctx, draft); err != nil {
		t.Fatalf("SaveJournalEntry draft: %v", err)
	}

	if err := store.DeleteDraftEntries(ctx, inv.ID); err != nil {
		t.Fatalf("DeleteDraftEntries: %v", err)
	}
	entries, _ = store.GetEntriesByInvoice(ctx, inv.ID)
	if len(entries) != 1 {
		t.Fatalf("expected the validated entry to survive, got %d entries", len(entries))
	}
	if !entries[0].IsValidated {
		t.Errorf("surviving entry should be the validated one")
	}
}

func TestSQLiteStorage_EntryWellFormedGuard(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	entry := &model.JournalEntry{
		ID:          uuid.NewString(),
		InvoiceID:   "inv-x",
		JournalCode: model.JournalAchats,
		Lines: []model.EntryLine{
			{AccountCode: "6111", Debit: dec("10.00"), Credit: dec("5.00")},
		},
	}
	if err := store.SaveJournalEntry(ctx, entry); err == nil {
		t.Error("two-sided entry line must be rejected")
	}
}

func TestSQLiteStorage_SupplierMappings(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	mapping := &model.SupplierMapping{
		CabinetID:   10,
		SupplierICE: "001234567000089",
		AccountCode: "6111",
		UseCount:    1,
	}
	if err := store.SaveSupplierMapping(ctx, mapping); err != nil {
		t.Fatalf("SaveSupplierMapping: %v", err)
	}

	got, err := store.GetSupplierMapping(ctx, 10, "001234567000089")
	if err != nil {
		t.Fatalf("GetSupplierMapping: %v", err)
	}
	if got.AccountCode != "6111" {
		t.Errorf("AccountCode = %s", got.AccountCode)
	}

	// Upsert replaces the account.
	mapping.AccountCode = "6144"
	mapping.UseCount = 5
	if err := store.SaveSupplierMapping(ctx, mapping); err != nil {
		t.Fatalf("SaveSupplierMapping upsert: %v", err)
	}
	got, _ = store.GetSupplierMapping(ctx, 10, "001234567000089")
	if got.AccountCode != "6144" || got.UseCount != 5 {
		t.Errorf("upsert not applied: %+v", got)
	}

	// Cabinet isolation.
	if _, err := store.GetSupplierMapping(ctx, 99, "001234567000089"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("mapping must be scoped per cabinet, got %v", err)
	}

	mappings, err := store.ListSupplierMappings(ctx, 10)
	if err != nil {
		t.Fatalf("ListSupplierMappings: %v", err)
	}
	if len(mappings) != 1 {
		t.Errorf("expected 1 mapping, got %d", len(mappings))
	}

	if err := store.DeleteSupplierMapping(ctx, 10, "001234567000089"); err != nil {
		t.Fatalf("DeleteSupplierMapping: %v", err)
	}
	if _, err := store.GetSupplierMapping(ctx, 10, "001234567000089"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteStorage_MappingCache(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	mapping := &model.SupplierMapping{CabinetID: 10, SupplierICE: "001234567000089", AccountCode: "6111"}
	if err := store.SaveSupplierMapping(ctx, mapping); err != nil {
		t.Fatalf("SaveSupplierMapping: %v", err)
	}

	// First read populates the cache; mutate the DB behind its back.
	if _, err := store.GetSupplierMapping(ctx, 10, "001234567000089"); err != nil {
		t.Fatalf("GetSupplierMapping: %v", err)
	}
	if _, err := store.db.Exec(`UPDATE supplier_mappings SET account_code = '9999'`); err != nil {
		t.Fatalf("raw update: %v", err)
	}
	got, _ := store.GetSupplierMapping(ctx, 10, "001234567000089")
	if got.AccountCode != "6111" {
		t.Errorf("expected cached value 6111, got %s", got.AccountCode)
	}

	// Committing a transaction drops the cache.
	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, _ = store.GetSupplierMapping(ctx, 10, "001234567000089")
	if got.AccountCode != "9999" {
		t.Errorf("expected fresh value after invalidation, got %s", got.AccountCode)
	}
}

func TestSQLiteStorage_PcmAccounts(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	account, err := store.GetPcmAccount(ctx, "4455")
	if err != nil {
		t.Fatalf("GetPcmAccount: %v", err)
	}
	if !account.IsVAT || account.VATKind != model.VATCollectee {
		t.Errorf("4455 = %+v", account)
	}

	if _, err := store.GetPcmAccount(ctx, "0000"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	accounts, err := store.ListPcmAccounts(ctx)
	if err != nil {
		t.Fatalf("ListPcmAccounts: %v", err)
	}
	if len(accounts) == 0 {
		t.Fatal("migration should seed the default chart")
	}
	for i := 1; i < len(accounts); i++ {
		if accounts[i-1].Code > accounts[i].Code {
			t.Errorf("accounts not sorted: %s before %s", accounts[i-1].Code, accounts[i].Code)
		}
	}
}

func TestSQLiteStorage_TransactionRollback(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	inv := testInvoice()
	if err := tx.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice in tx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if _, err := store.GetInvoice(ctx, inv.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("rolled back invoice must not exist, got %v", err)
	}
}

func TestSQLiteStorage_TransactionCommit(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	inv := testInvoice()
	if err := tx.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice in tx: %v", err)
	}
	if err := tx.UpdateInvoiceStatus(ctx, inv.ID, model.StatusExtracted); err != nil {
		t.Fatalf("UpdateInvoiceStatus in tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := store.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.Status != model.StatusExtracted {
		t.Errorf("Status = %s, want EXTRACTED", got.Status)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := createTestStorage(t)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second migration must be a no-op: %v", err)
	}
	version, err := store.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, ExpectedSchemaVersion)
	}
}

func TestSQLiteStorage_PatchEntryLine(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	inv := testInvoice()
	if err := store.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	entry := &model.JournalEntry{
		ID:          uuid.NewString(),
		InvoiceID:   inv.ID,
		JournalCode: model.JournalAchats,
		EntryDate:   time.Now(),
		TotalDebit:  dec("1200.00"),
		TotalCredit: dec("1200.00"),
		Lines: []model.EntryLine{
			{AccountCode: "6111", Debit: dec("1000.00")},
			{AccountCode: "34552", Debit: dec("200.00")},
			{AccountCode: "4411", Credit: dec("1200.00")},
		},
	}
	if err := store.SaveJournalEntry(ctx, entry); err != nil {
		t.Fatalf("SaveJournalEntry: %v", err)
	}

	got, err := store.GetJournalEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetJournalEntry: %v", err)
	}
	if len(got.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(got.Lines))
	}

	if _, err := store.GetJournalEntry(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("missing entry error = %v, want ErrNotFound", err)
	}

	account := "6144"
	debit := dec("900.00")
	err = store.PatchEntryLine(ctx, entry.Lines[0].ID, model.EntryLinePatch{
		AccountCode: &account,
		Debit:       &debit,
	})
	if err != nil {
		t.Fatalf("PatchEntryLine: %v", err)
	}

	line, err := store.GetEntryLine(ctx, entry.Lines[0].ID)
	if err != nil {
		t.Fatalf("GetEntryLine: %v", err)
	}
	if line.AccountCode != "6144" || !line.Debit.Equal(dec("900.00")) {
		t.Errorf("patched line = %s %s", line.AccountCode, line.Debit)
	}

	// Stored totals follow the lines.
	got, err = store.GetJournalEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetJournalEntry after patch: %v", err)
	}
	if !got.TotalDebit.Equal(dec("1100.00")) {
		t.Errorf("TotalDebit = %s, want 1100", got.TotalDebit)
	}
	if !got.TotalCredit.Equal(dec("1200.00")) {
		t.Errorf("TotalCredit = %s, want 1200", got.TotalCredit)
	}

	// A patch creating a two-sided line is rejected.
	credit := dec("50.00")
	err = store.PatchEntryLine(ctx, entry.Lines[0].ID, model.EntryLinePatch{Credit: &credit})
	if err == nil {
		t.Error("two-sided patch must be rejected")
	}

	if _, err := store.GetEntryLine(ctx, 987654); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("missing line error = %v, want ErrNotFound", err)
	}
}
