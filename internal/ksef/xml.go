// Package ksef serializes invoices into the KSeF FA(2) schema and talks to the KSeF gateway.
package ksef

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/garyjia/faktura/internal/format"
	"github.com/garyjia/faktura/internal/invoice"
	"github.com/garyjia/faktura/internal/models"
	"github.com/garyjia/faktura/pkg/utils"
)

// Namespace is the FA(2) schema namespace bound to the tns prefix
const Namespace = "http://crd.gov.pl/wzor/2021/11/29/11089/"

const (
	currencyCode         = "PLN"
	countryCode          = "PL"
	defaultPaymentMethod = "przelew"
	defaultUnit          = "szt"
	footerNote           = "Faktura bez podpisu odbiorcy"
)

// ErrProformaNotAllowed is returned when a proforma is serialized or sent. Proformas carry
// no tax standing and never leave the application in the gateway schema.
var ErrProformaNotAllowed = errors.New("proforma cannot be exported to KSeF")

var unsafeFileChars = regexp.MustCompile(`[^\w-]+`)

type fakturaXML struct {
	XMLName  xml.Name    `xml:"tns:Faktura"`
	NS       string      `xml:"xmlns:tns,attr"`
	Naglowek naglowekXML `xml:"tns:Naglowek"`
	Podmiot1 podmiotXML  `xml:"tns:Podmiot1"`
	Podmiot2 podmiotXML  `xml:"tns:Podmiot2"`
	Fa       faXML       `xml:"tns:Fa"`
	Stopka   stopkaXML   `xml:"tns:Stopka"`
}

type naglowekXML struct {
	KodWaluty          string `xml:"tns:KodWaluty"`
	NumerFaktury       string `xml:"tns:NumerFaktury"`
	DataWystawienia    string `xml:"tns:DataWystawienia"`
	DataSprzedazy      string `xml:"tns:DataSprzedazy"`
	MiejsceWystawienia string `xml:"tns:MiejsceWystawienia,omitempty"`
	FormaPlatnosci     string `xml:"tns:FormaPlatnosci"`
	TerminPlatnosci    string `xml:"tns:TerminPlatnosci,omitempty"`
}

type podmiotXML struct {
	DaneIdentyfikacyjne daneXML  `xml:"tns:DaneIdentyfikacyjne"`
	Adres               adresXML `xml:"tns:Adres"`
	RachunekBankowy     string   `xml:"tns:RachunekBankowy,omitempty"`
}

type daneXML struct {
	NIP        string `xml:"tns:NIP"`
	PelnaNazwa string `xml:"tns:PelnaNazwa"`
}

type adresXML struct {
	Ulica       string `xml:"tns:Ulica"`
	KodPocztowy string `xml:"tns:KodPocztowy"`
	Miejscowosc string `xml:"tns:Miejscowosc"`
	Kraj        string `xml:"tns:Kraj"`
}

type faXML struct {
	Pozycje            pozycjeXML `xml:"tns:Pozycje"`
	StawkiPodsumowanie stawkiXML  `xml:"tns:StawkiPodsumowanie"`
	Podsumowanie       sumyXML    `xml:"tns:Podsumowanie"`
}

// pozycjeXML stays a wrapper so an invoice without items still emits an empty Pozycje
type pozycjeXML struct {
	Pozycja []pozycjaXML `xml:"tns:Pozycja"`
}

type stawkiXML struct {
	Stawka stawkaXML `xml:"tns:Stawka"`
}

type pozycjaXML struct {
	Lp                   int    `xml:"tns:Lp"`
	NazwaTowaruUslugi    string `xml:"tns:NazwaTowaruUslugi"`
	JednostkaMiary       string `xml:"tns:JednostkaMiary"`
	Ilosc                string `xml:"tns:Ilosc"`
	CenaJednostkowaNetto string `xml:"tns:CenaJednostkowaNetto"`
	StawkaVAT            string `xml:"tns:StawkaVAT"`
	KwotaVAT             string `xml:"tns:KwotaVAT"`
	WartoscNetto         string `xml:"tns:WartoscNetto"`
	WartoscBrutto        string `xml:"tns:WartoscBrutto"`
}

type stawkaXML struct {
	StawkaVAT     string `xml:"tns:StawkaVAT"`
	WartoscNetto  string `xml:"tns:WartoscNetto"`
	KwotaVAT      string `xml:"tns:KwotaVAT"`
	WartoscBrutto string `xml:"tns:WartoscBrutto"`
}

type sumyXML struct {
	SumaNetto      string `xml:"tns:SumaNetto"`
	SumaVAT        string `xml:"tns:SumaVAT"`
	SumaBrutto     string `xml:"tns:SumaBrutto"`
	KwotaDoZaplaty string `xml:"tns:KwotaDoZaplaty"`
}

type stopkaXML struct {
	InformacjeDodatkowe string `xml:"tns:InformacjeDodatkowe"`
}

// BuildXML renders a VAT invoice as an FA(2) document. Amounts are written with two
// decimals and a dot regardless of locale; every text field is XML-escaped.
func BuildXML(inv *models.Invoice) ([]byte, error) {
	if inv == nil {
		return nil, errors.New("invoice is nil")
	}
	if inv.IsProforma() {
		return nil, ErrProformaNotAllowed
	}

	doc := fakturaXML{
		NS: Namespace,
		Naglowek: naglowekXML{
			KodWaluty:          currencyCode,
			NumerFaktury:       inv.InvoiceNumber,
			DataWystawienia:    format.NormalizeDate(inv.IssueDate),
			DataSprzedazy:      format.NormalizeDate(inv.SaleDate),
			MiejsceWystawienia: inv.IssuePlace,
			FormaPlatnosci:     orDefault(inv.PaymentMethod, defaultPaymentMethod),
			TerminPlatnosci:    format.NormalizeDate(inv.PaymentDue),
		},
		Podmiot1: party(inv.Seller.NIP, inv.Seller.Name, inv.Seller.Address, inv.Seller.City),
		Podmiot2: party(inv.Buyer.NIP, inv.Buyer.Name, inv.Buyer.Address, inv.Buyer.City),
		Stopka:   stopkaXML{InformacjeDodatkowe: footerNote},
	}
	doc.Podmiot1.RachunekBankowy = inv.BankAccount

	rate := vatRateText(inv.VatRate)
	totals := invoice.CalculateTotals(inv)

	doc.Fa.Pozycje.Pozycja = make([]pozycjaXML, 0, len(inv.Items))
	for i, item := range inv.Items {
		line := invoice.LineTotals(item, inv.VatRate)
		doc.Fa.Pozycje.Pozycja = append(doc.Fa.Pozycje.Pozycja, pozycjaXML{
			Lp:                   i + 1,
			NazwaTowaruUslugi:    item.Name,
			JednostkaMiary:       orDefault(item.Unit, defaultUnit),
			Ilosc:                format.Decimal2(item.Quantity.Float64()),
			CenaJednostkowaNetto: format.Decimal2(item.UnitPrice.Float64()),
			StawkaVAT:            rate,
			KwotaVAT:             format.Decimal2(line.Vat),
			WartoscNetto:         format.Decimal2(line.Net),
			WartoscBrutto:        format.Decimal2(line.Gross),
		})
	}

	doc.Fa.StawkiPodsumowanie.Stawka = stawkaXML{
		StawkaVAT:     rate,
		WartoscNetto:  format.Decimal2(totals.TotalNet),
		KwotaVAT:      format.Decimal2(totals.TotalVat),
		WartoscBrutto: format.Decimal2(totals.TotalGross),
	}
	doc.Fa.Podsumowanie = sumyXML{
		SumaNetto:      format.Decimal2(totals.TotalNet),
		SumaVAT:        format.Decimal2(totals.TotalVat),
		SumaBrutto:     format.Decimal2(totals.TotalGross),
		KwotaDoZaplaty: format.Decimal2(totals.Remaining),
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode invoice XML: %w", err)
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

// party decomposes the free-text city into postal code and town
func party(nip, name, address, city string) podmiotXML {
	postalCode, town := utils.ExtractPostalCode(city)
	return podmiotXML{
		DaneIdentyfikacyjne: daneXML{NIP: nip, PelnaNazwa: name},
		Adres: adresXML{
			Ulica:       address,
			KodPocztowy: postalCode,
			Miejscowosc: town,
			Kraj:        countryCode,
		},
	}
}

func vatRateText(rate models.Amount) string {
	return strconv.FormatFloat(rate.Float64(), 'f', -1, 64)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// XMLFileName returns the download name for an invoice's XML, e.g.
// "1/1/2025" -> "Faktura_FA2_1_1_2025.xml"
func XMLFileName(invoiceNumber string) string {
	if invoiceNumber == "" {
		invoiceNumber = "brak"
	}
	return "Faktura_FA2_" + unsafeFileChars.ReplaceAllString(invoiceNumber, "_") + ".xml"
}
