package parsing

import (
	"regexp"
	"slices"
	"strings"
)

// Rule extracts one candidate substring from a text. Rules are tried in the
// order they appear in their list and the first match wins.
type Rule struct {
	Name  string
	Match func(text string) (string, bool)
}

func matchFirst(rules []Rule, text string) (string, bool) {
	for _, rule := range rules {
		if m, ok := rule.Match(text); ok {
			return m, true
		}
	}
	return "", false
}

// leadingRule matches a token anchored at the start of the text, optionally
// followed by a dash separator. Only the token itself is returned.
func leadingRule(name, token string) Rule {
	return anchoredRule(name, regexp.MustCompile(`^(`+token+`)\s*-?`))
}

func anchoredRule(name string, re *regexp.Regexp) Rule {
	return Rule{
		Name: name,
		Match: func(text string) (string, bool) {
			m := re.FindStringSubmatch(text)
			if m == nil {
				return "", false
			}
			return strings.TrimSpace(m[1]), true
		},
	}
}

func findRule(name, expr string) Rule {
	re := regexp.MustCompile(expr)
	return Rule{
		Name: name,
		Match: func(text string) (string, bool) {
			m := strings.TrimSpace(re.FindString(text))
			return m, m != ""
		},
	}
}

// captureRule returns the first capture group, matched against the upper-cased text.
func captureRule(name, expr string) Rule {
	re := regexp.MustCompile(expr)
	return Rule{
		Name: name,
		Match: func(text string) (string, bool) {
			m := re.FindStringSubmatch(strings.ToUpper(text))
			if m == nil || m[1] == "" {
				return "", false
			}
			return m[1], true
		},
	}
}

var LeadingTokenRules = []Rule{
	leadingRule("pgeletr", `(?:Pg\s+)?PGELETR\s+\d+`),
	leadingRule("fatura", `FATURA\s+\d+`),
	leadingRule("aviso-debito", `Ref\. AV DÉB\s+\d+`),
	leadingRule("autorizacao-pagamento", `AP/\d+`),
	leadingRule("contrato", `CONTRATO`),
	leadingRule("irrf-nf-bracket", `Valor ref\. IRRF s/ NF\s*<\d+>`),
	leadingRule("irrf-nf", `Valor ref\. IRRF s/ NF`),
	leadingRule("valor-nf-ref", `Valor ref\. NF_REF[\s\-]*\d+`),
	leadingRule("iss-nfes", `ISS retido conf\. NFES[\s\-]*\d+`),
	leadingRule("pis-cofins-csll-nfes", `Pis, Cofins e Csll sobre NFES[\s\-]*\d+`),
	leadingRule("apolice", `APÓLICE[\s\-]*\d+`),
}

// DateTokenRule is the fallback leading token: a date followed by a number and
// a mandatory dash.
var DateTokenRule = anchoredRule("date-number", regexp.MustCompile(`^(\d{2}/\d{2}/\d{4}\s+\d+)\s*-`))

var SecondaryReferenceRules = []Rule{
	findRule("bracket", `<\d+>`),
	findRule("nfes", `NFES[\s\-]*\d+`),
	findRule("nf-ref", `NF_REF[\s\-]*\d+`),
	findRule("nfeletr", `NFELETR[\s\-]*\d+`),
	findRule("apolice", `APÓLICE[\s\-]*\d+`),
	findRule("boleto", `BOLETO[\s\-]?\d*`),
}

var companyNamePattern = func() *regexp.Regexp {
	re := regexp.MustCompile(`(?i)[A-ZÀ-ÿ][A-ZÀ-ÿ\s\-&.,]*?(?:\bLTDA\b\.?|S/A|S\.A\.|ME\b|EPP\b|SOCIEDADE(?: INDIVIDUAL DE ADVOCACIA)?|COMPANHIA)`)
	re.Longest()
	return re
}()

// CounterpartyRule finds the longest uppercase-led phrase ending in a
// legal-entity suffix.
var CounterpartyRule = Rule{
	Name: "counterparty",
	Match: func(text string) (string, bool) {
		m := strings.Trim(companyNamePattern.FindString(text), " -")
		return m, m != ""
	},
}

// BracketReferenceRule has the highest priority when resolving document ids
// and is also applied to the joined segment text.
var BracketReferenceRule = captureRule("bracket", `(?:NF\s*)?<(\d+)>`)

var (
	datePattern   = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	numberPattern = regexp.MustCompile(`\d+`)

	documentKeywords = []string{"FATURA", "NFES", "BOLETO", "DÉB", "CONTRATO", "APÓLICE"}
)

// keywordNumberRule returns the first run of digits, but only for text that
// looks like a document reference.
var keywordNumberRule = Rule{
	Name: "keyword-number",
	Match: func(text string) (string, bool) {
		upper := strings.ToUpper(text)
		flagged := strings.Contains(upper, "NFELETR") || datePattern.MatchString(text)
		flagged = flagged || slices.ContainsFunc(documentKeywords, func(kw string) bool {
			return strings.Contains(upper, kw)
		})
		if !flagged {
			return "", false
		}
		m := numberPattern.FindString(text)
		return m, m != ""
	},
}

var DocumentIDRules = []Rule{
	BracketReferenceRule,
	captureRule("date-number", `\d{2}/\d{2}/\d{4}\s+(\d+)`),
	captureRule("nfes", `NFES[\s\-]*(\d+)`),
	captureRule("nf-ref", `NF_REF[\s\-]*(\d+)`),
	captureRule("nfeletr", `NFELETR[\s\-]*(\d+)`),
	captureRule("apolice", `APÓLICE[\s\-]*(\d+)`),
	keywordNumberRule,
}

// CounterpartyKeywords mark a sub-segment as naming a legal entity.
var CounterpartyKeywords = []string{"LTDA", "S/A", "S.A", "SOCIEDADE", "COMPANHIA", "ME", "EPP"}
