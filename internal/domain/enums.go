package domain

// IntegrationMode selects which FBR endpoint a business's invoices are
// submitted to.
type IntegrationMode string

const (
	ModeLocal      IntegrationMode = "local"
	ModeSandbox    IntegrationMode = "sandbox"
	ModeProduction IntegrationMode = "production"
)

// ValidIntegrationModes enumerates the accepted integration modes.
var ValidIntegrationModes = map[IntegrationMode]bool{
	ModeLocal:      true,
	ModeSandbox:    true,
	ModeProduction: true,
}

// InvoiceStatus is the submission lifecycle state of an invoice. Status is
// only ever mutated through Invoice.TransitionTo.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusSubmitted InvoiceStatus = "submitted"
	InvoiceStatusValidated InvoiceStatus = "validated"
	InvoiceStatusFailed    InvoiceStatus = "failed"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// FailureKind records why a submission failed, so operators can tell
// "fix your data" apart from "token expired" and "transient, retryable".
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureValidation FailureKind = "validation"
	FailureTransient  FailureKind = "transient"
	FailureAuth       FailureKind = "auth"
)

// BatchStatus is the processing lifecycle of a bulk upload.
type BatchStatus string

const (
	BatchStatusUploading  BatchStatus = "uploading"
	BatchStatusParsing    BatchStatus = "parsing"
	BatchStatusValidating BatchStatus = "validating"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusComplete   BatchStatus = "complete"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusCancelled  BatchStatus = "cancelled"
)

// BatchValidationStatus summarizes row validation across a batch.
type BatchValidationStatus string

const (
	BatchValidationPending   BatchValidationStatus = "pending"
	BatchValidationValidated BatchValidationStatus = "validated"
	BatchValidationFailed    BatchValidationStatus = "failed"
)

// RowStage is the ordered progress stage of one batch row. It replaces the
// independent progress booleans of the upload format: a row can only ever be
// at one stage, so combinations like "production submitted but never sandbox
// validated" are unrepresentable.
type RowStage string

const (
	StageIngested            RowStage = "ingested"
	StageValidated           RowStage = "validated"
	StageSandboxSubmitted    RowStage = "sandbox_submitted"
	StageProductionSubmitted RowStage = "production_submitted"
	StageFailed              RowStage = "failed"
)

var rowStageRank = map[RowStage]int{
	StageIngested:            0,
	StageValidated:           1,
	StageSandboxSubmitted:    2,
	StageProductionSubmitted: 3,
}

// Rank returns the position of s in the progress order. StageFailed has no
// rank; it is terminal from any stage.
func (s RowStage) Rank() int {
	return rowStageRank[s]
}

// Terminal reports whether a row at this stage needs no further processing
// for a business with the given production setting.
func (s RowStage) Terminal(productionEnabled bool) bool {
	switch s {
	case StageFailed, StageProductionSubmitted:
		return true
	case StageSandboxSubmitted:
		return !productionEnabled
	default:
		return false
	}
}

// DataValid reports the derived "row passed validation" view of the stage.
func (s RowStage) DataValid() bool {
	return s != StageFailed && s.Rank() >= rowStageRank[StageValidated]
}

// SandboxSubmitted reports the derived "row reached sandbox" view.
func (s RowStage) SandboxSubmitted() bool {
	return s != StageFailed && s.Rank() >= rowStageRank[StageSandboxSubmitted]
}
