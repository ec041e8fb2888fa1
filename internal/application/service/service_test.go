package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/application/dispatcher"
	"github.com/garyjia/faktura/internal/domain/event"
	"github.com/garyjia/faktura/internal/invoice"
	"github.com/garyjia/faktura/internal/ksef"
	"github.com/garyjia/faktura/internal/models"
	"github.com/garyjia/faktura/internal/repository"
)

var testNow = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	sellers  SellerService
	buyers   BuyerService
	invoices InvoiceService
	ksef     *ksefServiceImpl
	gateway  *mockGateway
	events   *[]event.Type

	buyerRepo   *repository.BuyerRepository
	invoiceRepo *repository.InvoiceRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithBackend(t, repository.NewMemoryBackend())
}

func newTestEnvWithBackend(t *testing.T, backend repository.Backend) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	sellerRepo := repository.NewSellerRepository(backend, logger)
	buyerRepo := repository.NewBuyerRepository(backend, logger)
	invoiceRepo := repository.NewInvoiceRepository(backend, logger)
	configRepo := repository.NewKSeFConfigRepository(backend, logger)

	d := dispatcher.NewDispatcher()
	events := []event.Type{}
	for _, typ := range []event.Type{
		event.TypeSellerSaved, event.TypeBuyerCreated, event.TypeBuyerUpdated, event.TypeBuyerDeleted,
		event.TypeInvoiceCreated, event.TypeInvoiceUpdated, event.TypeInvoiceDeleted,
		event.TypeInvoicesImported, event.TypeKSeFStatusChanged,
	} {
		d.Subscribe(typ, func(_ context.Context, evt *event.Event) error {
			events = append(events, evt.Type)
			return nil
		})
	}

	sequencer := invoice.NewSequencer(func() time.Time { return testNow }, logger)
	gateway := &mockGateway{}
	ksefSvc := NewKSeFService(gateway, configRepo, invoiceRepo, d, logger).(*ksefServiceImpl)
	ksefSvc.now = func() time.Time { return testNow }

	return &testEnv{
		sellers:     NewSellerService(sellerRepo, d, logger),
		buyers:      NewBuyerService(buyerRepo, d, logger),
		invoices:    NewInvoiceService(invoiceRepo, buyerRepo, sellerRepo, sequencer, DefaultInvoiceDefaults(), d, logger),
		ksef:        ksefSvc,
		gateway:     gateway,
		events:      &events,
		buyerRepo:   buyerRepo,
		invoiceRepo: invoiceRepo,
	}
}

type mockGateway struct {
	configured  *models.KSeFConfig
	sendFunc    func(ctx context.Context, inv *models.Invoice) ksef.SendResult
	statusFunc  func(ctx context.Context, ref string) (ksef.StatusResult, error)
	sentNumbers []string
}

func (m *mockGateway) Configure(cfg models.KSeFConfig) error {
	if cfg.Environment != models.KSeFEnvironmentTest && cfg.Environment != models.KSeFEnvironmentProduction {
		return ksef.ErrInvalidEnvironment
	}
	m.configured = &cfg
	return nil
}

func (m *mockGateway) IsConfigured() bool {
	return m.configured != nil
}

func (m *mockGateway) SendInvoice(ctx context.Context, inv *models.Invoice) ksef.SendResult {
	m.sentNumbers = append(m.sentNumbers, inv.InvoiceNumber)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, inv)
	}
	return ksef.SendResult{Success: true, ReferenceNumber: "REF_1"}
}

func (m *mockGateway) CheckStatus(ctx context.Context, ref string) (ksef.StatusResult, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx, ref)
	}
	return ksef.StatusResult{Status: models.KSeFStatusPending}, nil
}

func (m *mockGateway) DownloadUPO(_ context.Context, ref string) (string, error) {
	return "<UPO>" + ref + "</UPO>", nil
}

func validSeller() models.SellerData {
	return models.SellerData{
		Name:        "Firma Sp. z o.o.",
		Address:     "ul. Długa 1",
		City:        "00-001 Warszawa",
		NIP:         "7393864444",
		BankAccount: "PL41114020040000320282962689",
	}
}

func validBuyer() models.Buyer {
	return models.Buyer{
		Name:    "Klient S.A.",
		NIP:     "5260250274",
		Address: "ul. Krótka 2",
		City:    "31-002 Kraków",
	}
}

func vatDraft() models.Invoice {
	return models.Invoice{
		DocumentType: models.DocumentTypeVAT,
		IssueDate:    "15-01-2025",
		SaleDate:     "15-01-2025",
		VatRate:      23,
		Seller:       validSeller().Snapshot(),
		Buyer:        validBuyer(),
		Items:        []models.InvoiceItem{{Name: "Usługa", Quantity: 2, Unit: "szt", UnitPrice: 100}},
	}
}

func assertValidationError(t *testing.T, err error, field string) {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, field, verr.Field)
}

func TestSellerService_Save(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.SellerData)
		wantField string
	}{
		{name: "valid", mutate: func(*models.SellerData) {}},
		{name: "no bank account", mutate: func(s *models.SellerData) { s.BankAccount = "" }},
		{name: "missing name", mutate: func(s *models.SellerData) { s.Name = "  " }, wantField: "name"},
		{name: "missing address", mutate: func(s *models.SellerData) { s.Address = "" }, wantField: "address"},
		{name: "city without postal code", mutate: func(s *models.SellerData) { s.City = "Warszawa" }, wantField: "city"},
		{name: "bad NIP checksum", mutate: func(s *models.SellerData) { s.NIP = "7393864445" }, wantField: "nip"},
		{name: "bad bank account", mutate: func(s *models.SellerData) { s.BankAccount = "PL00114020040000320282962689" }, wantField: "bankAccount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			seller := validSeller()
			tt.mutate(&seller)
			saved, err := env.sellers.Save(ctx, seller)

			has, hasErr := env.sellers.HasSeller(ctx)
			require.NoError(t, hasErr)

			if tt.wantField != "" {
				assertValidationError(t, err, tt.wantField)
				assert.False(t, has)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.SellerRecordID, saved.ID)
			assert.True(t, has)
			assert.Equal(t, []event.Type{event.TypeSellerSaved}, *env.events)
		})
	}
}

func TestBuyerService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.buyers.Add(ctx, models.Buyer{Name: "Bez NIP", Address: "ul. A 1", City: "00-001 Warszawa"})
	assertValidationError(t, err, "nip")

	added, err := env.buyers.Add(ctx, validBuyer())
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)

	found, err := env.buyers.FindByNIP(ctx, "526-025-02-74")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, added.ID, found.ID)

	badCity := "Kraków"
	_, err = env.buyers.Update(ctx, added.ID, models.BuyerPatch{City: &badCity})
	assertValidationError(t, err, "city")

	name := "Klient Nowy S.A."
	updated, err := env.buyers.Update(ctx, added.ID, models.BuyerPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, "31-002 Kraków", updated.City)

	results, err := env.buyers.Search(ctx, "nowy")
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = env.buyers.Update(ctx, "missing", models.BuyerPatch{Name: &name})
	assert.ErrorIs(t, err, ErrBuyerNotFound)

	require.NoError(t, env.buyers.Delete(ctx, added.ID))
	assert.ErrorIs(t, env.buyers.Delete(ctx, added.ID), ErrBuyerNotFound)

	assert.Equal(t, []event.Type{event.TypeBuyerCreated, event.TypeBuyerUpdated, event.TypeBuyerDeleted}, *env.events)
}

func TestInvoiceService_NewDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.invoices.NewDraft(ctx, "receipt")
	assertValidationError(t, err, "documentType")

	draft, err := env.invoices.NewDraft(ctx, models.DocumentTypeProforma)
	require.NoError(t, err)
	assert.Equal(t, "PRO/1/1/2025", draft.InvoiceNumber)
	assert.Equal(t, "15-01-2025", draft.IssueDate)
	assert.Equal(t, "15-01-2025", draft.PaymentDue)
	assert.Equal(t, "Warszawa", draft.IssuePlace)
	assert.Equal(t, "Przelew", draft.PaymentMethod)
	assert.Equal(t, models.Amount(23), draft.VatRate)
	assert.Empty(t, draft.Seller.Name)
	assert.Empty(t, draft.ID)
	assert.Nil(t, draft.CreatedAt)
	require.Len(t, draft.Items, 1)
	assert.Equal(t, "godz.", draft.Items[0].Unit)

	_, err = env.sellers.Save(ctx, validSeller())
	require.NoError(t, err)

	draft, err = env.invoices.NewDraft(ctx, models.DocumentTypeVAT)
	require.NoError(t, err)
	assert.Equal(t, "1/1/2025", draft.InvoiceNumber)
	assert.Equal(t, validSeller().Snapshot(), draft.Seller)
	assert.Equal(t, "PL41114020040000320282962689", draft.BankAccount)
}

func TestInvoiceService_Save(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	noBuyer := vatDraft()
	noBuyer.Buyer.NIP = ""
	_, err := env.invoices.Save(ctx, noBuyer)
	assertValidationError(t, err, "buyer.nip")

	first, err := env.invoices.Save(ctx, vatDraft())
	require.NoError(t, err)
	assert.Equal(t, "1/1/2025", first.InvoiceNumber)
	assert.NotEmpty(t, first.ID)
	assert.NotNil(t, first.CreatedAt)

	second := vatDraft()
	second.Buyer.NIP = "526-025-02-74"
	saved, err := env.invoices.Save(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "2/1/2025", saved.InvoiceNumber)

	manual := vatDraft()
	manual.InvoiceNumber = "FV-RECZNA"
	saved, err = env.invoices.Save(ctx, manual)
	require.NoError(t, err)
	assert.Equal(t, "FV-RECZNA", saved.InvoiceNumber)

	next, err := env.invoices.NextNumber(ctx, models.DocumentTypeVAT)
	require.NoError(t, err)
	assert.Equal(t, "3/1/2025", next)

	buyers, err := env.buyerRepo.List(ctx)
	require.NoError(t, err)
	require.Len(t, buyers, 1, "known NIP is not inserted twice")
	assert.Equal(t, "5260250274", buyers[0].NIP)

	assert.Equal(t, []event.Type{event.TypeInvoiceCreated, event.TypeInvoiceCreated, event.TypeInvoiceCreated}, *env.events)
}

func TestInvoiceService_ListFilterAndOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	at := func(h int) *time.Time {
		ts := testNow.Add(time.Duration(h) * time.Hour)
		return &ts
	}
	stored := []models.Invoice{
		{ID: "a", DocumentType: models.DocumentTypeVAT, InvoiceNumber: "1/1/2025", CreatedAt: at(1)},
		{ID: "b", DocumentType: models.DocumentTypeProforma, InvoiceNumber: "PRO/1/1/2025", CreatedAt: at(3)},
		{ID: "c", DocumentType: models.DocumentTypeVAT, InvoiceNumber: "2/1/2025", CreatedAt: at(2)},
		{ID: "d", DocumentType: models.DocumentTypeVAT, InvoiceNumber: "legacy"},
	}
	data, err := json.Marshal(stored)
	require.NoError(t, err)
	count, err := env.invoices.ImportJSON(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	ids := func(invoices []models.Invoice) []string {
		out := make([]string, 0, len(invoices))
		for _, inv := range invoices {
			out = append(out, inv.ID)
		}
		return out
	}

	tests := []struct {
		filter Filter
		want   []string
	}{
		{filter: "", want: []string{"b", "c", "a", "d"}},
		{filter: FilterAll, want: []string{"b", "c", "a", "d"}},
		{filter: FilterVAT, want: []string{"c", "a", "d"}},
		{filter: FilterProforma, want: []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.filter), func(t *testing.T) {
			invoices, err := env.invoices.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(invoices))
		})
	}

	_, err = env.invoices.List(ctx, "paid")
	assertValidationError(t, err, "type")
}

func TestInvoiceService_ConvertToVAT(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := vatDraft()
	draft.DocumentType = models.DocumentTypeProforma
	proforma, err := env.invoices.Save(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, "PRO/1/1/2025", proforma.InvoiceNumber)

	vat, err := env.invoices.ConvertToVAT(ctx, proforma.ID)
	require.NoError(t, err)
	assert.NotEqual(t, proforma.ID, vat.ID)
	assert.Equal(t, models.DocumentTypeVAT, vat.DocumentType)
	assert.Equal(t, "1/1/2025", vat.InvoiceNumber)
	assert.Equal(t, "PRO/1/1/2025", vat.ProformaReference)
	assert.Equal(t, proforma.Items, vat.Items)

	unchanged, err := env.invoices.Get(ctx, proforma.ID)
	require.NoError(t, err)
	assert.Equal(t, *proforma, *unchanged)

	_, err = env.invoices.ConvertToVAT(ctx, vat.ID)
	assertValidationError(t, err, "documentType")

	_, err = env.invoices.ConvertToVAT(ctx, "missing")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestInvoiceService_TotalsAndWords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := vatDraft()
	inv.PaidAmount = 46
	saved, err := env.invoices.Save(ctx, inv)
	require.NoError(t, err)

	totals, err := env.invoices.Totals(ctx, saved.ID)
	require.NoError(t, err)
	assert.InDelta(t, 200, totals.TotalNet, 1e-9)
	assert.InDelta(t, 46, totals.TotalVat, 1e-9)
	assert.InDelta(t, 246, totals.TotalGross, 1e-9)
	assert.InDelta(t, 200, totals.Remaining, 1e-9)

	words, err := env.invoices.AmountInWords(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "dwieście czterdzieści sześć PLN", words)

	_, err = env.invoices.Totals(ctx, "missing")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestInvoiceService_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	saved, err := env.invoices.Save(ctx, vatDraft())
	require.NoError(t, err)

	place := "Kraków"
	updated, err := env.invoices.Update(ctx, saved.ID, models.InvoicePatch{IssuePlace: &place})
	require.NoError(t, err)
	assert.Equal(t, place, updated.IssuePlace)
	assert.Equal(t, saved.InvoiceNumber, updated.InvoiceNumber)

	_, err = env.invoices.Update(ctx, "missing", models.InvoicePatch{IssuePlace: &place})
	assert.ErrorIs(t, err, ErrInvoiceNotFound)

	require.NoError(t, env.invoices.Delete(ctx, saved.ID))
	_, err = env.invoices.Get(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
	assert.ErrorIs(t, env.invoices.Delete(ctx, saved.ID), ErrInvoiceNotFound)
}

func TestInvoiceService_ExportXML(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	vat, err := env.invoices.Save(ctx, vatDraft())
	require.NoError(t, err)

	doc, err := env.invoices.ExportXML(ctx, vat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Faktura_FA2_1_1_2025.xml", doc.FileName)
	assert.Contains(t, string(doc.Content), "<tns:NumerFaktury>1/1/2025</tns:NumerFaktury>")

	draft := vatDraft()
	draft.DocumentType = models.DocumentTypeProforma
	proforma, err := env.invoices.Save(ctx, draft)
	require.NoError(t, err)

	_, err = env.invoices.ExportXML(ctx, proforma.ID)
	assert.ErrorIs(t, err, ksef.ErrProformaNotAllowed)
}

func TestInvoiceService_ImportRejectsMalformed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.invoices.Save(ctx, vatDraft())
	require.NoError(t, err)

	_, err = env.invoices.ImportJSON(ctx, []byte(`{"not": "a list"}`))
	assert.ErrorIs(t, err, repository.ErrInvalidImport)

	invoices, err := env.invoices.List(ctx, FilterAll)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}
