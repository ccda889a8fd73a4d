package rules

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load reads a rules file (.json, .yaml or .yml) and compiles it.
// Top-level tables missing from the file are taken from the defaults, so a
// file may override only the categories, for example.
func Load(path string) (*Ruleset, error) {
	spec, err := LoadSpec(path)
	if err != nil {
		return nil, err
	}
	rs, err := Compile(spec)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", path, err)
	}
	return rs, nil
}

// LoadSpec reads a rules file and merges it over DefaultSpec without compiling.
func LoadSpec(path string) (Spec, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		parser = json.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	default:
		return Spec{}, fmt.Errorf("%w: unsupported rules file extension %q", ErrInvalidRules, filepath.Ext(path))
	}

	// Keys like "paid to" never appear as map keys, only as values, so the
	// default "." delimiter is safe.
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return Spec{}, fmt.Errorf("loading rules file %s: %w", path, err)
	}

	var override Spec
	if err := k.UnmarshalWithConf("", &override, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return Spec{}, fmt.Errorf("decoding rules file %s: %w", path, err)
	}
	return merge(DefaultSpec(), override), nil
}

func merge(base, o Spec) Spec {
	if o.BankSenders != nil {
		base.BankSenders = o.BankSenders
	}
	if o.SenderPattern != "" {
		base.SenderPattern = o.SenderPattern
	}
	if o.AmountPatterns != nil {
		base.AmountPatterns = o.AmountPatterns
	}
	if o.DebitKeywords != nil {
		base.DebitKeywords = o.DebitKeywords
	}
	if o.CreditKeywords != nil {
		base.CreditKeywords = o.CreditKeywords
	}
	if o.CardPattern != (PatternSpec{}) {
		base.CardPattern = o.CardPattern
	}
	if o.UPIPattern != (PatternSpec{}) {
		base.UPIPattern = o.UPIPattern
	}
	if o.BalancePattern != (PatternSpec{}) {
		base.BalancePattern = o.BalancePattern
	}
	if o.DatePattern != (PatternSpec{}) {
		base.DatePattern = o.DatePattern
	}
	if o.MerchantPatterns != nil {
		base.MerchantPatterns = o.MerchantPatterns
	}
	if o.PaymentModes != nil {
		base.PaymentModes = o.PaymentModes
	}
	if o.DefaultPaymentMode != "" {
		base.DefaultPaymentMode = o.DefaultPaymentMode
	}
	if o.Categories != nil {
		base.Categories = o.Categories
	}
	if o.MerchantMaxLength != 0 {
		base.MerchantMaxLength = o.MerchantMaxLength
	}
	return base
}
