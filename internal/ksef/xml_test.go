package ksef

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/faktura/internal/models"
)

func vatInvoice() *models.Invoice {
	return &models.Invoice{
		ID:            "inv-1",
		DocumentType:  models.DocumentTypeVAT,
		InvoiceNumber: "3/1/2025",
		IssueDate:     "15-01-2025",
		SaleDate:      "2025-01-14",
		PaymentDue:    "29-01-2025",
		IssuePlace:    "Warszawa",
		PaymentMethod: "Przelew",
		VatRate:       23,
		Seller: models.Seller{
			Name:    "Firma Sp. z o.o.",
			Address: "ul. Długa 1",
			City:    "00-001 Warszawa",
			NIP:     "7393864444",
		},
		Buyer: models.Buyer{
			Name:    "Klient S.A.",
			NIP:     "5260250274",
			Address: "ul. Krótka 2/4",
			City:    "Kraków 31-002",
		},
		Items: []models.InvoiceItem{
			{Name: "Konsultacje", Quantity: 2, Unit: "godz", UnitPrice: 100},
			{Name: "Licencja", Quantity: 1.5, UnitPrice: 33.33},
		},
		PaidAmount:  100,
		BankAccount: "PL41114020040000320282962689",
	}
}

func TestBuildXML_Structure(t *testing.T) {
	out, err := BuildXML(vatInvoice())
	require.NoError(t, err)
	doc := string(out)

	assert.True(t, strings.HasPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, doc, `<tns:Faktura xmlns:tns="http://crd.gov.pl/wzor/2021/11/29/11089/">`)

	for _, want := range []string{
		"<tns:KodWaluty>PLN</tns:KodWaluty>",
		"<tns:NumerFaktury>3/1/2025</tns:NumerFaktury>",
		"<tns:DataWystawienia>2025-01-15</tns:DataWystawienia>",
		"<tns:DataSprzedazy>2025-01-14</tns:DataSprzedazy>",
		"<tns:MiejsceWystawienia>Warszawa</tns:MiejsceWystawienia>",
		"<tns:FormaPlatnosci>Przelew</tns:FormaPlatnosci>",
		"<tns:TerminPlatnosci>2025-01-29</tns:TerminPlatnosci>",
		"<tns:KodPocztowy>00-001</tns:KodPocztowy>",
		"<tns:Miejscowosc>Warszawa</tns:Miejscowosc>",
		"<tns:KodPocztowy>31-002</tns:KodPocztowy>",
		"<tns:Miejscowosc>Kraków</tns:Miejscowosc>",
		"<tns:RachunekBankowy>PL41114020040000320282962689</tns:RachunekBankowy>",
		"<tns:JednostkaMiary>godz</tns:JednostkaMiary>",
		"<tns:JednostkaMiary>szt</tns:JednostkaMiary>",
		"<tns:Ilosc>1.50</tns:Ilosc>",
		"<tns:CenaJednostkowaNetto>33.33</tns:CenaJednostkowaNetto>",
		"<tns:StawkaVAT>23</tns:StawkaVAT>",
		"<tns:KwotaVAT>46.00</tns:KwotaVAT>",
		"<tns:WartoscBrutto>246.00</tns:WartoscBrutto>",
		"<tns:WartoscNetto>50.00</tns:WartoscNetto>",
		"<tns:SumaNetto>250.00</tns:SumaNetto>",
		"<tns:SumaVAT>57.50</tns:SumaVAT>",
		"<tns:SumaBrutto>307.49</tns:SumaBrutto>",
		"<tns:KwotaDoZaplaty>207.49</tns:KwotaDoZaplaty>",
		"<tns:InformacjeDodatkowe>Faktura bez podpisu odbiorcy</tns:InformacjeDodatkowe>",
	} {
		assert.Contains(t, doc, want)
	}

	assert.Equal(t, 1, strings.Count(doc, "<tns:RachunekBankowy>"), "buyer block carries no account")
	assert.Equal(t, 2, strings.Count(doc, "<tns:Pozycja>"))
	assert.Equal(t, 1, strings.Count(doc, "<tns:Stawka>"))
	assert.Contains(t, doc, "<tns:Lp>1</tns:Lp>")
	assert.Contains(t, doc, "<tns:Lp>2</tns:Lp>")
}

func TestBuildXML_ElementOrder(t *testing.T) {
	out, err := BuildXML(vatInvoice())
	require.NoError(t, err)

	order := []string{
		"<tns:Naglowek>", "<tns:KodWaluty>", "<tns:NumerFaktury>", "<tns:DataWystawienia>",
		"<tns:DataSprzedazy>", "<tns:MiejsceWystawienia>", "<tns:FormaPlatnosci>",
		"<tns:TerminPlatnosci>", "<tns:Podmiot1>", "<tns:Podmiot2>", "<tns:Fa>",
		"<tns:Pozycje>", "<tns:StawkiPodsumowanie>", "<tns:Podsumowanie>", "<tns:Stopka>",
	}

	doc := string(out)
	last := -1
	for _, tag := range order {
		idx := strings.Index(doc, tag)
		require.Greater(t, idx, last, "%s out of order", tag)
		last = idx
	}
}

func TestBuildXML_OptionalFieldsAndDefaults(t *testing.T) {
	inv := vatInvoice()
	inv.IssuePlace = ""
	inv.PaymentDue = ""
	inv.PaymentMethod = ""
	inv.BankAccount = ""
	inv.Items = nil

	out, err := BuildXML(inv)
	require.NoError(t, err)
	doc := string(out)

	assert.NotContains(t, doc, "MiejsceWystawienia")
	assert.NotContains(t, doc, "TerminPlatnosci")
	assert.NotContains(t, doc, "RachunekBankowy")
	assert.Contains(t, doc, "<tns:FormaPlatnosci>przelew</tns:FormaPlatnosci>")
	assert.Contains(t, doc, "<tns:Pozycje></tns:Pozycje>")
	assert.Contains(t, doc, "<tns:SumaNetto>0.00</tns:SumaNetto>")
}

func TestBuildXML_EscapesText(t *testing.T) {
	inv := vatInvoice()
	inv.Buyer.Name = `Kowalski & Syn "Best" <sp.j.>`
	inv.Items[0].Name = `Usługa 'premium'`

	out, err := BuildXML(inv)
	require.NoError(t, err)
	doc := string(out)

	assert.Contains(t, doc, "Kowalski &amp; Syn &#34;Best&#34; &lt;sp.j.&gt;")
	assert.Contains(t, doc, "Usługa &#39;premium&#39;")
	assert.NotContains(t, doc, "<sp.j.>")

	// The document stays well formed
	dec := xml.NewDecoder(bytes.NewReader(out))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
}

func TestBuildXML_RejectsProforma(t *testing.T) {
	inv := vatInvoice()
	inv.DocumentType = models.DocumentTypeProforma

	out, err := BuildXML(inv)
	assert.ErrorIs(t, err, ErrProformaNotAllowed)
	assert.Nil(t, out)
}

func TestXMLFileName(t *testing.T) {
	tests := []struct {
		number string
		want   string
	}{
		{number: "3/1/2025", want: "Faktura_FA2_3_1_2025.xml"},
		{number: "FV 2025 / 01", want: "Faktura_FA2_FV_2025_01.xml"},
		{number: "A-1_b", want: "Faktura_FA2_A-1_b.xml"},
		{number: "", want: "Faktura_FA2_brak.xml"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, XMLFileName(tt.number))
	}
}
