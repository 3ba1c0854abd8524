// Package oppdrag maps payment requests to the settlement ledger's XML wire
// format and decodes the kvittering it sends back. Element order and naming are
// fixed by the ledger's schema.
package oppdrag

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
)

const (
	Namespace = "http://www.trygdeetaten.no/skjema/oppdrag"

	dateFormat      = "2006-01-02"
	timestampFormat = "2006-01-02-15.04.05.000000"
	legacyEpochDate = "1900-01-01"

	kodeAksjonSend     = "1"
	kodeEndringNew     = "NY"
	kodeEndringAmend   = "ENDR"
	kodeStatusOpphoer  = "OPPH"
	frequencyMonthly   = "MND"
	enhetTypeBosted    = "BOS"
	enhetNAVEtterlatte = "4819"
	fradragTillegg     = "T"
	brukKjoreplanNei   = "N"
)

type oppdragXML struct {
	XMLName    xml.Name      `xml:"http://www.trygdeetaten.no/skjema/oppdrag oppdrag"`
	Oppdrag110 oppdrag110XML `xml:"oppdrag-110"`
}

type oppdrag110XML struct {
	KodeAksjon            string           `xml:"kodeAksjon"`
	KodeEndring           string           `xml:"kodeEndring"`
	KodeFagomraade        string           `xml:"kodeFagomraade"`
	FagsystemID           string           `xml:"fagsystemId"`
	UtbetFrekvens         string           `xml:"utbetFrekvens"`
	OppdragGjelderID      string           `xml:"oppdragGjelderId"`
	DatoOppdragGjelderFom string           `xml:"datoOppdragGjelderFom"`
	SaksbehID             string           `xml:"saksbehId"`
	Avstemming115         avstemming115XML `xml:"avstemming-115"`
	OppdragsEnhet120      enhet120XML      `xml:"oppdrags-enhet-120"`
	OppdragsLinje150      []linje150XML    `xml:"oppdrags-linje-150"`
}

type avstemming115XML struct {
	KodeKomponent    string `xml:"kodeKomponent"`
	NokkelAvstemming string `xml:"nokkelAvstemming"`
	TidspktMelding   string `xml:"tidspktMelding"`
}

type enhet120XML struct {
	TypeEnhet    string `xml:"typeEnhet"`
	Enhet        string `xml:"enhet"`
	DatoEnhetFom string `xml:"datoEnhetFom"`
}

type linje150XML struct {
	KodeEndringLinje string          `xml:"kodeEndringLinje"`
	KodeStatusLinje  string          `xml:"kodeStatusLinje,omitempty"`
	DatoStatusFom    string          `xml:"datoStatusFom,omitempty"`
	VedtakID         string          `xml:"vedtakId"`
	DelytelseID      string          `xml:"delytelseId"`
	KodeKlassifik    string          `xml:"kodeKlassifik"`
	DatoVedtakFom    string          `xml:"datoVedtakFom"`
	DatoVedtakTom    string          `xml:"datoVedtakTom,omitempty"`
	Sats             string          `xml:"sats"`
	FradragTillegg   string          `xml:"fradragTillegg"`
	TypeSats         string          `xml:"typeSats"`
	BrukKjoreplan    string          `xml:"brukKjoreplan"`
	SaksbehID        string          `xml:"saksbehId"`
	UtbetalesTilID   string          `xml:"utbetalesTilId"`
	Henvisning       string          `xml:"henvisning"`
	Attestant180     attestant180XML `xml:"attestant-180"`
}

type attestant180XML struct {
	AttestantID string `xml:"attestantId"`
}

// Codec is the stateless ledger wire codec.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

// ReconciliationKey truncates ts to the microsecond precision the ledger stores.
func ReconciliationKey(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Microsecond)
}

// NokkelAvstemming renders a reconciliation key as the ledger's numeric key.
func NokkelAvstemming(key time.Time) string {
	return strconv.FormatInt(key.UnixNano(), 10)
}

// Tidspunkt renders t in the ledger's timestamp format.
func Tidspunkt(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

// Encode renders req as an oppdrag stamped with the reconciliation key derived from ts.
// The same request and ts always produce the same bytes.
func (c *Codec) Encode(req *domain.PaymentRequest, ts time.Time) (*domain.PaymentOrder, error) {
	codes, err := domain.CodesFor(req.CaseType)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateLines(req.Lines); err != nil {
		return nil, err
	}

	key := ReconciliationKey(ts)
	ref := domain.CorrelationKey(req.ID)

	kodeEndring := kodeEndringAmend
	if req.FirstForCase {
		kodeEndring = kodeEndringNew
	}

	doc := oppdragXML{
		Oppdrag110: oppdrag110XML{
			KodeAksjon:            kodeAksjonSend,
			KodeEndring:           kodeEndring,
			KodeFagomraade:        codes.RoutingCode,
			FagsystemID:           strconv.FormatInt(req.CaseID, 10),
			UtbetFrekvens:         frequencyMonthly,
			OppdragGjelderID:      req.BeneficiaryID,
			DatoOppdragGjelderFom: legacyEpochDate,
			SaksbehID:             req.Saksbehandler,
			Avstemming115: avstemming115XML{
				KodeKomponent:    codes.ClassificationCode,
				NokkelAvstemming: NokkelAvstemming(key),
				TidspktMelding:   Tidspunkt(key),
			},
			OppdragsEnhet120: enhet120XML{
				TypeEnhet:    enhetTypeBosted,
				Enhet:        enhetNAVEtterlatte,
				DatoEnhetFom: legacyEpochDate,
			},
			OppdragsLinje150: make([]linje150XML, 0, len(req.Lines)),
		},
	}

	for _, line := range req.Lines {
		doc.Oppdrag110.OppdragsLinje150 = append(doc.Oppdrag110.OppdragsLinje150, encodeLine(req, line, codes, ref))
	}

	payload, err := marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode oppdrag for request %s: %w", req.ID, err)
	}

	return &domain.PaymentOrder{
		Request:            req,
		RoutingCode:        codes.RoutingCode,
		ClassificationCode: codes.ClassificationCode,
		ReconciliationKey:  key,
		CorrelationKey:     ref,
		CrossReference:     ref,
		Payload:            payload,
	}, nil
}

func encodeLine(req *domain.PaymentRequest, line domain.PaymentLine, codes domain.CaseTypeCodes, ref string) linje150XML {
	classification := line.ClassificationCode
	if classification == "" {
		classification = codes.LineClassificationCode
	}

	l := linje150XML{
		KodeEndringLinje: kodeEndringNew,
		VedtakID:         strconv.FormatInt(req.DecisionID, 10),
		DelytelseID:      strconv.FormatInt(line.ID, 10),
		KodeKlassifik:    classification,
		DatoVedtakFom:    line.PeriodFrom.FirstDay().Format(dateFormat),
		Sats:             formatAmount(line),
		FradragTillegg:   fradragTillegg,
		TypeSats:         frequencyMonthly,
		BrukKjoreplan:    brukKjoreplanNei,
		SaksbehID:        req.Saksbehandler,
		UtbetalesTilID:   req.BeneficiaryID,
		Henvisning:       ref,
		Attestant180:     attestant180XML{AttestantID: req.Attestant},
	}
	if line.PeriodTo != nil {
		l.DatoVedtakTom = line.PeriodTo.LastDay().Format(dateFormat)
	}
	if line.Kind == domain.LineKindTermination {
		l.KodeStatusLinje = kodeStatusOpphoer
		l.DatoStatusFom = line.PeriodFrom.FirstDay().Format(dateFormat)
	}
	return l
}

func formatAmount(line domain.PaymentLine) string {
	if !line.Amount.Valid {
		return "0.00"
	}
	return line.Amount.Decimal.StringFixed(2)
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
