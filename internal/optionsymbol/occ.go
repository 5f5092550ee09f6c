// Package optionsymbol encodes and decodes OCC option symbols:
// <ROOT><YYMMDD><C|P><STRIKE x 1000, 8-digit zero-padded>.
package optionsymbol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zerotype19/gekko3/internal/model"
)

// Encode builds the OCC symbol for a leg, e.g. SPY 416 PUT 2024-01-16 ->
// "SPY240116P00416000".
func Encode(root string, expiration time.Time, optType model.OptionType, strike float64) (string, error) {
	if strike <= 0 {
		return "", fmt.Errorf("optionsymbol: strike must be positive, got %v", strike)
	}
	cp := "C"
	if optType == model.OptionPut {
		cp = "P"
	} else if optType != model.OptionCall {
		return "", fmt.Errorf("optionsymbol: unknown option type %q", optType)
	}

	strikeThousandths := int64(strike*1000 + 0.5) // round to nearest thousandth
	strikeField := fmt.Sprintf("%08d", strikeThousandths)
	if len(strikeField) != 8 {
		return "", fmt.Errorf("optionsymbol: strike %v overflows 8-digit field", strike)
	}

	return fmt.Sprintf("%s%s%s%s", strings.ToUpper(root), expiration.Format("060102"), cp, strikeField), nil
}

// Decoded is the parsed form of an OCC symbol.
type Decoded struct {
	Root       string
	Expiration time.Time
	Type       model.OptionType
	Strike     float64
}

// Decode parses an OCC symbol back into its parts; the last 8 digits
// are read as strike*1000.
func Decode(symbol string) (Decoded, error) {
	if len(symbol) < 15 {
		return Decoded{}, fmt.Errorf("optionsymbol: %q too short to be an OCC symbol", symbol)
	}
	strikeField := symbol[len(symbol)-8:]
	cpField := symbol[len(symbol)-9 : len(symbol)-8]
	dateField := symbol[len(symbol)-15 : len(symbol)-9]
	root := symbol[:len(symbol)-15]

	strikeThousandths, err := strconv.ParseInt(strikeField, 10, 64)
	if err != nil {
		return Decoded{}, fmt.Errorf("optionsymbol: invalid strike field %q: %w", strikeField, err)
	}

	exp, err := time.Parse("060102", dateField)
	if err != nil {
		return Decoded{}, fmt.Errorf("optionsymbol: invalid date field %q: %w", dateField, err)
	}

	var optType model.OptionType
	switch cpField {
	case "C":
		optType = model.OptionCall
	case "P":
		optType = model.OptionPut
	default:
		return Decoded{}, fmt.Errorf("optionsymbol: invalid call/put field %q", cpField)
	}

	return Decoded{
		Root:       root,
		Expiration: exp,
		Type:       optType,
		Strike:     float64(strikeThousandths) / 1000.0,
	}, nil
}
