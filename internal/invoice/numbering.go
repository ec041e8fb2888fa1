package invoice

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/models"
)

const proformaPrefix = "PRO"

// NumberParts are the positional segments of a document number
type NumberParts struct {
	Sequence int
	Month    string
	Year     string
}

// ParseNumber splits a document number into its sequence, month and year segments.
// VAT numbers look like "{n}/{month}/{year}" and proformas like "PRO/{n}/{month}/{year}".
// The split is purely positional. ok is false when the number has too few segments or its
// sequence segment does not start with an integer; such numbers count as sequence 0.
func ParseNumber(docType models.DocumentType, number string) (parts NumberParts, ok bool) {
	segments := strings.Split(number, "/")

	offset := 0
	if docType == models.DocumentTypeProforma {
		offset = 1
	}
	if len(segments) < offset+3 {
		return NumberParts{}, false
	}

	parts.Month = segments[offset+1]
	parts.Year = segments[offset+2]

	seq, ok := leadingInt(segments[offset])
	if !ok {
		return parts, false
	}
	parts.Sequence = seq
	return parts, true
}

// leadingInt reads an optionally signed integer prefix after leading whitespace and
// ignores whatever follows it
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r\v\f")

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, false
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextNumber returns the next document number of docType for the month and year of now.
// Only invoices of the same type whose month and year segments equal the current ones
// (compared as unpadded strings) are considered.
func NextNumber(docType models.DocumentType, invoices []models.Invoice, now time.Time) string {
	next, _ := nextNumber(docType, invoices, now)
	return next
}

func nextNumber(docType models.DocumentType, invoices []models.Invoice, now time.Time) (string, []string) {
	month := strconv.Itoa(int(now.Month()))
	year := strconv.Itoa(now.Year())

	var anomalies []string
	maxSeq := 0
	for i := range invoices {
		inv := &invoices[i]
		if inv.DocumentType != docType {
			continue
		}

		parts, ok := ParseNumber(docType, inv.InvoiceNumber)
		if !ok {
			anomalies = append(anomalies, inv.InvoiceNumber)
			continue
		}
		if parts.Month != month || parts.Year != year {
			continue
		}
		if parts.Sequence > maxSeq {
			maxSeq = parts.Sequence
		}
	}

	if docType == models.DocumentTypeProforma {
		return fmt.Sprintf("%s/%d/%s/%s", proformaPrefix, maxSeq+1, month, year), anomalies
	}
	return fmt.Sprintf("%d/%s/%s", maxSeq+1, month, year), anomalies
}

// Sequencer assigns document numbers against a clock and logs numbers it cannot parse
type Sequencer struct {
	now    func() time.Time
	logger *zap.Logger
}

// NewSequencer creates a sequencer. A nil clock means time.Now.
func NewSequencer(now func() time.Time, logger *zap.Logger) *Sequencer {
	if now == nil {
		now = time.Now
	}
	return &Sequencer{now: now, logger: logger}
}

// Next returns the next number of docType given every stored invoice
func (s *Sequencer) Next(docType models.DocumentType, invoices []models.Invoice) string {
	next, anomalies := nextNumber(docType, invoices, s.now())
	for _, number := range anomalies {
		s.logger.Debug("Unparseable document number counted as 0",
			zap.String("document_type", string(docType)),
			zap.String("invoice_number", number))
	}
	return next
}

// Now returns the sequencer's current time
func (s *Sequencer) Now() time.Time {
	return s.now()
}
