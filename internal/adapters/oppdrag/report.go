package oppdrag

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/shopspring/decimal"
)

const (
	avleverendeKomponent  = "ETTERLAT"
	mottakendeKomponent   = "OS"
	kildeTypeAvlevert     = "AVLEV"
	avstemmingGrensesnitt = "GRSN"
	avstemmingKonsistens  = "KONS"
	aksjonData            = "DATA"
	periodeFormat         = "2006010215"

	detaljAvvist  = "AVVI"
	detaljVarsel  = "VARS"
	detaljMangler = "MANG"
)

type aksjonXML struct {
	AksjonType               string `xml:"aksjonType"`
	KildeType                string `xml:"kildeType"`
	AvstemmingType           string `xml:"avstemmingType"`
	AvleverendeKomponentKode string `xml:"avleverendeKomponentKode"`
	MottakendeKomponentKode  string `xml:"mottakendeKomponentKode"`
	UnderkomponentKode       string `xml:"underkomponentKode"`
	NokkelFom                string `xml:"nokkelFom,omitempty"`
	NokkelTom                string `xml:"nokkelTom,omitempty"`
	TidspunktAvstemmingTom   string `xml:"tidspunktAvstemmingTom,omitempty"`
	AvleverendeAvstemmingID  string `xml:"avleverendeAvstemmingId"`
	BrukerID                 string `xml:"brukerId"`
}

type segmentXML struct {
	Nummer int `xml:"nummer"`
	Antall int `xml:"antall"`
}

type totalXML struct {
	TotalAntall int    `xml:"totalAntall"`
	TotalBelop  string `xml:"totalBelop"`
	Fortegn     string `xml:"fortegn"`
}

type grensesnittXML struct {
	XMLName  xml.Name    `xml:"avstemmingsdata"`
	Aksjon   aksjonXML   `xml:"aksjon"`
	Segment  segmentXML  `xml:"segment"`
	Total    totalXML    `xml:"total"`
	Periode  periodeXML  `xml:"periode"`
	Grunnlag grunnlagXML `xml:"grunnlag"`
	Detaljer []detaljXML `xml:"detalj"`
}

type periodeXML struct {
	DatoAvstemtFom string `xml:"datoAvstemtFom"`
	DatoAvstemtTom string `xml:"datoAvstemtTom"`
}

type grunnlagXML struct {
	GodkjentAntall int `xml:"godkjentAntall"`
	VarselAntall   int `xml:"varselAntall"`
	AvvistAntall   int `xml:"avvistAntall"`
	FeiletAntall   int `xml:"feiletAntall"`
	ManglerAntall  int `xml:"manglerAntall"`
}

type detaljXML struct {
	DetaljType                   string `xml:"detaljType"`
	Offnr                        string `xml:"offnr"`
	AvleverendeTransaksjonNokkel string `xml:"avleverendeTransaksjonNokkel"`
	Meldingskode                 string `xml:"meldingKode,omitempty"`
	Tidspunkt                    string `xml:"tidspunkt"`
}

type konsistensXML struct {
	XMLName   xml.Name         `xml:"konsistensavstemmingsdata"`
	Aksjon    aksjonXML        `xml:"aksjonsdata"`
	Segment   segmentXML       `xml:"segment"`
	Oppdrag   []konsOppdragXML `xml:"oppdragsdataListe"`
	Totaldata totalXML         `xml:"totaldata"`
}

type konsOppdragXML struct {
	FagomradeKode       string         `xml:"fagomradeKode"`
	FagsystemID         string         `xml:"fagsystemId"`
	Utbetalingsfrekvens string         `xml:"utbetalingsfrekvens"`
	OppdragGjelderID    string         `xml:"oppdragGjelderId"`
	OppdragGjelderFom   string         `xml:"oppdragGjelderFom"`
	Linjer              []konsLinjeXML `xml:"oppdragslinjeListe"`
}

type konsLinjeXML struct {
	VedtakID           string `xml:"vedtakId"`
	DelytelseID        string `xml:"delytelseId"`
	KlassifikasjonKode string `xml:"klassifikasjonKode"`
	Fom                string `xml:"vedtakPeriode>fom"`
	Tom                string `xml:"vedtakPeriode>tom,omitempty"`
	Sats               string `xml:"sats"`
	SatstypeKode       string `xml:"satstypeKode"`
	FradragTillegg     string `xml:"fradragTillegg"`
	BrukKjoreplan      string `xml:"brukKjoreplan"`
	UtbetalesTilID     string `xml:"utbetalesTilId"`
	AttestantID        string `xml:"attestantListe>attestantId"`
}

// EncodeGrensesnitt renders one grensesnittavstemming segment.
func (c *Codec) EncodeGrensesnitt(seg domain.ReportSegment) ([]byte, error) {
	doc := grensesnittXML{
		Aksjon: aksjonXML{
			AksjonType:               aksjonData,
			KildeType:                kildeTypeAvlevert,
			AvstemmingType:           avstemmingGrensesnitt,
			AvleverendeKomponentKode: avleverendeKomponent,
			MottakendeKomponentKode:  mottakendeKomponent,
			UnderkomponentKode:       seg.RoutingCode,
			NokkelFom:                NokkelAvstemming(ReconciliationKey(seg.Period.From)),
			NokkelTom:                NokkelAvstemming(ReconciliationKey(seg.Period.To)),
			AvleverendeAvstemmingID:  seg.CorrelationID,
			BrukerID:                 avleverendeKomponent,
		},
		Segment: segmentXML{Nummer: seg.Index, Antall: seg.Total},
		Total: totalXML{
			TotalAntall: seg.OrderCount(),
			TotalBelop:  seg.Amount.StringFixed(2),
			Fortegn:     fradragTillegg,
		},
		Periode: periodeXML{
			DatoAvstemtFom: seg.Period.From.UTC().Format(periodeFormat),
			DatoAvstemtTom: seg.Period.To.UTC().Format(periodeFormat),
		},
		Grunnlag: grunnlagXML{
			GodkjentAntall: seg.Totals.Accepted,
			VarselAntall:   seg.Totals.Warning,
			AvvistAntall:   seg.Totals.Rejected,
			FeiletAntall:   seg.Totals.Failed,
			ManglerAntall:  seg.Totals.Missing,
		},
	}

	for _, req := range seg.Orders {
		detaljType, ok := detaljTypeFor(req.Status)
		if !ok {
			continue
		}
		d := detaljXML{
			DetaljType:                   detaljType,
			Offnr:                        req.BeneficiaryID,
			AvleverendeTransaksjonNokkel: strconv.FormatInt(req.CaseID, 10),
		}
		if req.Receipt != nil {
			d.Meldingskode = req.Receipt.Severity
		}
		if req.ReconciliationKey != nil {
			d.Tidspunkt = Tidspunkt(*req.ReconciliationKey)
		}
		doc.Detaljer = append(doc.Detaljer, d)
	}

	body, err := marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode grensesnittavstemming segment %d/%d: %w", seg.Index, seg.Total, err)
	}
	return body, nil
}

// detaljTypeFor reports which orders the ledger needs itemised: anything it
// did not cleanly accept.
func detaljTypeFor(status domain.Status) (string, bool) {
	switch status {
	case domain.StatusAcceptedWithWarning:
		return detaljVarsel, true
	case domain.StatusRejected, domain.StatusFailed:
		return detaljAvvist, true
	case domain.StatusSent:
		return detaljMangler, true
	default:
		return "", false
	}
}

// EncodeKonsistens renders one konsistensavstemming segment.
func (c *Codec) EncodeKonsistens(seg domain.ConsistencySegment) ([]byte, error) {
	doc := konsistensXML{
		Aksjon: aksjonXML{
			AksjonType:               aksjonData,
			KildeType:                kildeTypeAvlevert,
			AvstemmingType:           avstemmingKonsistens,
			AvleverendeKomponentKode: avleverendeKomponent,
			MottakendeKomponentKode:  mottakendeKomponent,
			UnderkomponentKode:       seg.RoutingCode,
			TidspunktAvstemmingTom:   Tidspunkt(ReconciliationKey(seg.At)),
			AvleverendeAvstemmingID:  seg.CorrelationID,
			BrukerID:                 avleverendeKomponent,
		},
		Segment: segmentXML{Nummer: seg.Index, Antall: seg.Total},
	}

	total := decimal.Zero
	for _, ac := range seg.Cases {
		o := konsOppdragXML{
			FagomradeKode:       seg.RoutingCode,
			FagsystemID:         strconv.FormatInt(ac.CaseID, 10),
			Utbetalingsfrekvens: frequencyMonthly,
			OppdragGjelderID:    ac.BeneficiaryID,
			OppdragGjelderFom:   legacyEpochDate,
		}
		for _, line := range ac.Lines {
			if line.Kind != domain.LineKindPayment {
				continue
			}
			l := konsLinjeXML{
				VedtakID:           strconv.FormatInt(ac.DecisionID, 10),
				DelytelseID:        strconv.FormatInt(line.ID, 10),
				KlassifikasjonKode: line.ClassificationCode,
				Fom:                line.PeriodFrom.FirstDay().Format(dateFormat),
				Sats:               formatAmount(line),
				SatstypeKode:       frequencyMonthly,
				FradragTillegg:     fradragTillegg,
				BrukKjoreplan:      brukKjoreplanNei,
				UtbetalesTilID:     ac.BeneficiaryID,
				AttestantID:        ac.Attestant,
			}
			if line.PeriodTo != nil {
				l.Tom = line.PeriodTo.LastDay().Format(dateFormat)
			}
			if line.Amount.Valid {
				total = total.Add(line.Amount.Decimal)
			}
			o.Linjer = append(o.Linjer, l)
		}
		doc.Oppdrag = append(doc.Oppdrag, o)
	}
	doc.Totaldata = totalXML{
		TotalAntall: len(seg.Cases),
		TotalBelop:  total.StringFixed(2),
		Fortegn:     fradragTillegg,
	}

	body, err := marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode konsistensavstemming segment %d/%d: %w", seg.Index, seg.Total, err)
	}
	return body, nil
}

// SegmentName is the archive object name for a serialized segment.
func SegmentName(kind domain.BatchKind, correlationID string, index int, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s-%03d.xml", kind, at.UTC().Format(dateFormat), correlationID, index)
}

func (c *Codec) SegmentName(kind domain.BatchKind, correlationID string, index int, at time.Time) string {
	return SegmentName(kind, correlationID, index, at)
}
