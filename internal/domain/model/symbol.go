package model

import "regexp"

// SymbolType values offered to the host.
const SymbolTypeCrypto = "crypto"

// ========== Symbol Identity ==========

// SymbolIdentity decomposes a full symbol "EXCHANGE:FROM/TO".
type SymbolIdentity struct {
	Exchange  string `json:"exchange"`
	FromAsset string `json:"fromAsset"`
	ToAsset   string `json:"toAsset"`
}

// Short returns "FROM/TO".
func (s SymbolIdentity) Short() string {
	return s.FromAsset + "/" + s.ToAsset
}

// Full returns "EXCHANGE:FROM/TO".
func (s SymbolIdentity) Full() string {
	return s.Exchange + ":" + s.Short()
}

// GeneratedSymbol holds both canonical forms of a pair.
type GeneratedSymbol struct {
	Short string
	Full  string
}

// GenerateSymbol builds the short and full symbol names of a pair on an exchange.
// Asset names are not validated here; ParseFullSymbol enforces the charset.
func GenerateSymbol(exchange, fromAsset, toAsset string) GeneratedSymbol {
	short := fromAsset + "/" + toAsset
	return GeneratedSymbol{
		Short: short,
		Full:  exchange + ":" + short,
	}
}

var fullSymbolRe = regexp.MustCompile(`^(\w+):(\w+)/(\w+)$`)

// ParseFullSymbol splits "EXCHANGE:FROM/TO". ok is false on anything else.
func ParseFullSymbol(full string) (SymbolIdentity, bool) {
	m := fullSymbolRe.FindStringSubmatch(full)
	if m == nil {
		return SymbolIdentity{}, false
	}
	return SymbolIdentity{Exchange: m[1], FromAsset: m[2], ToAsset: m[3]}, true
}

// ========== Catalog ==========

// SymbolDescriptor is one tradable pair on one exchange.
type SymbolDescriptor struct {
	Symbol      string `json:"symbol"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Exchange    string `json:"exchange"`
	Type        string `json:"type"`
}

// SymbolInfo is what the host receives for a resolved symbol.
type SymbolInfo struct {
	Name                 string   `json:"name"`
	FullName             string   `json:"full_name"`
	Ticker               string   `json:"ticker"`
	Description          string   `json:"description"`
	Type                 string   `json:"type"`
	Session              string   `json:"session"`
	Timezone             string   `json:"timezone"`
	Exchange             string   `json:"exchange"`
	MinMov               int      `json:"minmov"`
	PriceScale           int      `json:"pricescale"`
	HasIntraday          bool     `json:"has_intraday"`
	HasNoVolume          bool     `json:"has_no_volume"`
	HasWeeklyAndMonthly  bool     `json:"has_weekly_and_monthly"`
	SupportedResolutions []string `json:"supported_resolutions"`
	VolumePrecision      int      `json:"volume_precision"`
	DataStatus           string   `json:"data_status"`
}
