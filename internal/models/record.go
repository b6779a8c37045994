package models

// Source identifies where a record came from.
type Source string

const (
	SourceLedger           Source = "ledger"
	SourceContractRegister Source = "contract-register"
)

// Tolerance is the single threshold used for every float comparison in
// grouping and reconciliation.
const Tolerance = 0.01

// RawRecord is one row as read from a ledger sheet or a contract register.
// Ledger rows carry Debit/Credit, register rows carry Amount and Reference.
type RawRecord struct {
	Source      Source
	Sheet       string
	Row         int
	Description string
	Debit       *float64
	Credit      *float64
	Amount      *float64
	Reference   string
}

// EnrichedRecord is a RawRecord after parsing and reference resolution.
// Empty DocumentID or Counterparty means the value could not be resolved.
type EnrichedRecord struct {
	RawRecord
	Segments     []string
	DocumentID   string
	Counterparty string
	NetAmount    *float64
	GroupTotal   *float64
}

// Groupable reports whether both grouping keys were resolved.
func (r EnrichedRecord) Groupable() bool {
	return r.DocumentID != "" && r.Counterparty != ""
}

type Rule string

const (
	RuleSingleRecord                  Rule = "single_record"
	RuleEqualValuesDivision           Rule = "equal_values_division"
	RuleDifferentValuesSum            Rule = "different_values_sum"
	RuleDifferentValuesSumDiscrepancy Rule = "different_values_sum_discrepancy"
)

// GroupedRecord is the output of grouping one (counterparty, document) partition.
// Records that survive reconciliation are emitted as-is.
type GroupedRecord struct {
	DocumentID   string  `json:"document_id"`
	Counterparty string  `json:"counterparty"`
	UnitValue    float64 `json:"unit_value"`
	TotalValue   float64 `json:"total_value"`
	Source       Source  `json:"source"`
	Sheet        string  `json:"sheet"`
	Rule         Rule    `json:"rule"`
}

func (g GroupedRecord) Discrepancy() bool {
	return g.Rule == RuleDifferentValuesSumDiscrepancy
}

// Sheet is one named sheet of a workbook, in workbook order.
type Sheet struct {
	Name    string
	Records []RawRecord
}
