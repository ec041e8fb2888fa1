// Package registry looks up companies in the national court register (KRS).
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/pkg/utils"
)

// DefaultBaseURL is the public KRS API
const DefaultBaseURL = "https://api-krs.ms.gov.pl/api/krs"

const maxResponseBytes = 4 << 20

var (
	// ErrCompanyNotFound is returned when the registry has no entry for the number
	ErrCompanyNotFound = errors.New("company not found in KRS")
	// ErrInvalidKRSNumber is returned for numbers that are not 1 to 10 digits
	ErrInvalidKRSNumber = errors.New("invalid KRS number")
)

// Company is the subset of a registry entry used to fill in a buyer
type Company struct {
	Name       string `json:"name"`
	NIP        string `json:"nip"`
	REGON      string `json:"regon,omitempty"`
	KRS        string `json:"krs,omitempty"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode,omitempty"`
	Province   string `json:"province,omitempty"`
}

// KRSClient queries the current-extract endpoint of the KRS API
type KRSClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewKRSClient creates a client. An empty baseURL selects DefaultBaseURL.
func NewKRSClient(baseURL string, timeout time.Duration, logger *zap.Logger) *KRSClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &KRSClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type odpisResponse struct {
	Odpis struct {
		NaglowekA struct {
			NumerKRS string `json:"numerKRS"`
		} `json:"naglowekA"`
		Dane struct {
			Dzial1 struct {
				DanePodmiotu struct {
					Nazwa          string `json:"nazwa"`
					Identyfikatory struct {
						NIP   string `json:"nip"`
						REGON string `json:"regon"`
					} `json:"identyfikatory"`
				} `json:"danePodmiotu"`
				SiedzibaIAdres struct {
					Adres struct {
						Ulica       string `json:"ulica"`
						NrDomu      string `json:"nrDomu"`
						NrLokalu    string `json:"nrLokalu"`
						KodPocztowy string `json:"kodPocztowy"`
						Miejscowosc string `json:"miejscowosc"`
					} `json:"adres"`
					Siedziba struct {
						Wojewodztwo string `json:"wojewodztwo"`
					} `json:"siedziba"`
				} `json:"siedzibaIAdres"`
			} `json:"dzial1"`
		} `json:"dane"`
	} `json:"odpis"`
}

// GetDetails fetches the current extract of the entity with krsNumber
func (c *KRSClient) GetDetails(ctx context.Context, krsNumber string) (*Company, error) {
	number, err := normalizeKRS(krsNumber)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/odpisaktualny/%s?rejestr=P&format=json", c.baseURL, number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create KRS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query KRS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("KRS lookup returned no entity",
			zap.String("krs", number),
			zap.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("%w: %s (HTTP %d)", ErrCompanyNotFound, number, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read KRS response: %w", err)
	}

	var odpis odpisResponse
	if err := json.Unmarshal(body, &odpis); err != nil {
		return nil, fmt.Errorf("failed to decode KRS response: %w", err)
	}

	company := odpis.company()
	if company.KRS == "" {
		company.KRS = number
	}
	c.logger.Info("KRS entity fetched", zap.String("krs", number), zap.String("nip", company.NIP))
	return company, nil
}

func (r *odpisResponse) company() *Company {
	subject := r.Odpis.Dane.Dzial1.DanePodmiotu
	seat := r.Odpis.Dane.Dzial1.SiedzibaIAdres
	addr := seat.Adres

	street := strings.TrimSpace(addr.Ulica + " " + addr.NrDomu)
	if addr.NrLokalu != "" {
		street += "/" + addr.NrLokalu
	}

	return &Company{
		Name:       subject.Nazwa,
		NIP:        subject.Identyfikatory.NIP,
		REGON:      subject.Identyfikatory.REGON,
		KRS:        r.Odpis.NaglowekA.NumerKRS,
		Address:    street,
		City:       strings.TrimSpace(addr.KodPocztowy + " " + addr.Miejscowosc),
		PostalCode: addr.KodPocztowy,
		Province:   seat.Siedziba.Wojewodztwo,
	}
}

// normalizeKRS left-pads a KRS number to its ten-digit form
func normalizeKRS(krsNumber string) (string, error) {
	trimmed := strings.TrimSpace(krsNumber)
	digits := utils.DigitsOnly(trimmed)
	if digits == "" || len(digits) != len(trimmed) || len(digits) > 10 {
		return "", fmt.Errorf("%w: %q", ErrInvalidKRSNumber, krsNumber)
	}
	return strings.Repeat("0", 10-len(digits)) + digits, nil
}
