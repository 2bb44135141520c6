package filing

import (
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Position is a holding block normalized across filing vocabularies.
type Position struct {
	IssuerName *string
	CUSIP      *string
	Value      float64
	Shares     float64
}

// HoldingBlock is one holding record as it appears in a filing. The concrete
// type is either IntegerBlock (13F informationTable) or FloatBlock (NPORT).
type HoldingBlock interface {
	Position() Position
	isHoldingBlock()
}

// IntegerBlock is a 13F infoTable entry; value and share amounts are integers.
type IntegerBlock struct {
	IssuerName *string
	CUSIP      *string
	Value      int64
	Shares     int64
}

// Position implements HoldingBlock.
func (b IntegerBlock) Position() Position {
	return Position{IssuerName: b.IssuerName, CUSIP: b.CUSIP, Value: float64(b.Value), Shares: float64(b.Shares)}
}

func (IntegerBlock) isHoldingBlock() {}

// FloatBlock is an NPORT invstOrSec entry; value and balance are decimals.
type FloatBlock struct {
	IssuerName *string
	CUSIP      *string
	Value      float64
	Shares     float64
}

// Position implements HoldingBlock.
func (b FloatBlock) Position() Position {
	return Position{IssuerName: b.IssuerName, CUSIP: b.CUSIP, Value: b.Value, Shares: b.Shares}
}

func (FloatBlock) isHoldingBlock() {}

// BlockError describes a holding block that was skipped.
type BlockError struct {
	Index int
	Err   error
}

func (e BlockError) Error() string {
	return "block " + strconv.Itoa(e.Index) + ": " + e.Err.Error()
}

// blockVocabulary names the tags of one filing family. Each field lists the
// accepted tag names in lookup order; the HTML parser lowercases all of them.
type blockVocabulary struct {
	block  string
	name   string
	cusip  string
	value  string
	shares string
	build  func(name, cusip *string, value, shares string) (HoldingBlock, error)
}

var vocabularies = []blockVocabulary{
	{
		block:  `infotable, ns1\:infotable`,
		name:   `nameofissuer, ns1\:nameofissuer`,
		cusip:  `cusip, ns1\:cusip`,
		value:  `value, ns1\:value`,
		shares: `sshprnamt, ns1\:sshprnamt`,
		build:  buildIntegerBlock,
	},
	{
		block:  `invstorsec`,
		name:   `name`,
		cusip:  `cusip`,
		value:  `valusd`,
		shares: `balance`,
		build:  buildFloatBlock,
	},
}

func buildIntegerBlock(name, cusip *string, value, shares string) (HoldingBlock, error) {
	b := IntegerBlock{IssuerName: name, CUSIP: cusip}
	var err error
	if value != "" {
		if b.Value, err = strconv.ParseInt(value, 10, 64); err != nil {
			return nil, eris.Wrapf(err, "parse value %q", value)
		}
	}
	if shares != "" {
		if b.Shares, err = strconv.ParseInt(shares, 10, 64); err != nil {
			return nil, eris.Wrapf(err, "parse sshprnamt %q", shares)
		}
	}
	return b, nil
}

func buildFloatBlock(name, cusip *string, value, shares string) (HoldingBlock, error) {
	b := FloatBlock{IssuerName: name, CUSIP: cusip}
	var err error
	if value != "" {
		if b.Value, err = parseFinite(value); err != nil {
			return nil, eris.Wrapf(err, "parse valusd %q", value)
		}
	}
	if shares != "" {
		if b.Shares, err = parseFinite(shares); err != nil {
			return nil, eris.Wrapf(err, "parse balance %q", shares)
		}
	}
	return b, nil
}

// parseFinite is strconv.ParseFloat without NaN or the infinities, which
// ParseFloat accepts as literals.
func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.New("not a finite number")
	}
	return f, nil
}

// ExtractBlocks returns every holding block in doc, 13F entries first, then
// NPORT entries, each in document order. Blocks whose numbers fail to parse
// are returned as BlockErrors and excluded from the result.
func ExtractBlocks(doc *goquery.Document) ([]HoldingBlock, []BlockError) {
	var (
		blocks []HoldingBlock
		errs   []BlockError
		index  int
	)
	for _, vocab := range vocabularies {
		doc.Find(vocab.block).Each(func(_ int, s *goquery.Selection) {
			b, err := vocab.build(
				optionalText(s, vocab.name),
				optionalText(s, vocab.cusip),
				firstText(s, vocab.value),
				firstText(s, vocab.shares),
			)
			if err != nil {
				errs = append(errs, BlockError{Index: index, Err: err})
			} else {
				blocks = append(blocks, b)
			}
			index++
		})
	}
	return blocks, errs
}

func firstText(s *goquery.Selection, selector string) string {
	sel := s.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(sel.Text())
}

func optionalText(s *goquery.Selection, selector string) *string {
	v := firstText(s, selector)
	if v == "" {
		return nil
	}
	return &v
}
