package printing

// DocType represents the type of business document that can be printed
type DocType string

const (
	// Sales documents
	DocTypeSalesOrder     DocType = "SALES_ORDER"     // Sales order
	DocTypeInvoice        DocType = "INVOICE"         // Fiscal invoice
	DocTypeSalesReturn    DocType = "SALES_RETURN"    // Credit note for returned goods
	DocTypeDeliveryReport DocType = "DELIVERY_REPORT" // Transport/delivery report

	// Financial documents
	DocTypeCollectionReceipt DocType = "COLLECTION_RECEIPT" // Receipt for a collected payment

	// Purchase documents
	DocTypePurchaseOrder DocType = "PURCHASE_ORDER"
)

// IsValid checks if the DocType is a valid value
func (d DocType) IsValid() bool {
	switch d {
	case DocTypeSalesOrder, DocTypeInvoice, DocTypeSalesReturn, DocTypeDeliveryReport,
		DocTypeCollectionReceipt, DocTypePurchaseOrder:
		return true
	}
	return false
}

// String returns the string representation of DocType
func (d DocType) String() string {
	return string(d)
}

// DisplayName returns the human readable title printed on the document
func (d DocType) DisplayName() string {
	switch d {
	case DocTypeSalesOrder:
		return "Sales Order"
	case DocTypeInvoice:
		return "Invoice"
	case DocTypeSalesReturn:
		return "Credit Note"
	case DocTypeDeliveryReport:
		return "Delivery Report"
	case DocTypeCollectionReceipt:
		return "Collection Receipt"
	case DocTypePurchaseOrder:
		return "Purchase Order"
	default:
		return string(d)
	}
}

// IsReceipt returns true for document types printed on thermal receipt paper by default
func (d DocType) IsReceipt() bool {
	return d == DocTypeCollectionReceipt
}

// AllDocTypes returns all valid DocType values
func AllDocTypes() []DocType {
	return []DocType{
		DocTypeSalesOrder, DocTypeInvoice, DocTypeSalesReturn, DocTypeDeliveryReport,
		DocTypeCollectionReceipt, DocTypePurchaseOrder,
	}
}

// PaperSize represents the paper size for printing
type PaperSize string

const (
	PaperSizeA4            PaperSize = "A4"             // 210mm x 297mm
	PaperSizeA5            PaperSize = "A5"             // 148mm x 210mm
	PaperSizeLetter        PaperSize = "LETTER"         // 216mm x 279mm
	PaperSizeReceipt58MM   PaperSize = "RECEIPT_58MM"   // 58mm thermal receipt
	PaperSizeReceipt80MM   PaperSize = "RECEIPT_80MM"   // 80mm thermal receipt
	PaperSizeContinuous241 PaperSize = "CONTINUOUS_241" // 241mm continuous paper (dot matrix)
)

// IsValid checks if the PaperSize is a valid value
func (p PaperSize) IsValid() bool {
	switch p {
	case PaperSizeA4, PaperSizeA5, PaperSizeLetter, PaperSizeReceipt58MM, PaperSizeReceipt80MM, PaperSizeContinuous241:
		return true
	}
	return false
}

// String returns the string representation of PaperSize
func (p PaperSize) String() string {
	return string(p)
}

// Dimensions returns the paper dimensions in millimeters (width, height)
// For receipt paper, width is the paper width and height is variable
func (p PaperSize) Dimensions() (width, height int) {
	switch p {
	case PaperSizeA4:
		return 210, 297
	case PaperSizeA5:
		return 148, 210
	case PaperSizeLetter:
		return 216, 279
	case PaperSizeReceipt58MM:
		return 58, 0 // Height is variable for receipt paper
	case PaperSizeReceipt80MM:
		return 80, 0 // Height is variable for receipt paper
	case PaperSizeContinuous241:
		return 241, 0 // Height is variable for continuous paper
	default:
		return 210, 297 // Default to A4
	}
}

// IsReceipt returns true if this is a receipt paper size
func (p PaperSize) IsReceipt() bool {
	return p == PaperSizeReceipt58MM || p == PaperSizeReceipt80MM
}

// IsContinuous returns true if this is continuous feed paper
func (p PaperSize) IsContinuous() bool {
	return p == PaperSizeContinuous241
}

// HasVariableHeight returns true when the page height follows the content
func (p PaperSize) HasVariableHeight() bool {
	return p.IsReceipt() || p.IsContinuous()
}

// AllPaperSizes returns all valid PaperSize values
func AllPaperSizes() []PaperSize {
	return []PaperSize{
		PaperSizeA4, PaperSizeA5, PaperSizeLetter, PaperSizeReceipt58MM, PaperSizeReceipt80MM, PaperSizeContinuous241,
	}
}

// Orientation represents the page orientation for printing
type Orientation string

const (
	OrientationPortrait  Orientation = "PORTRAIT"
	OrientationLandscape Orientation = "LANDSCAPE"
)

// IsValid checks if the Orientation is a valid value
func (o Orientation) IsValid() bool {
	switch o {
	case OrientationPortrait, OrientationLandscape:
		return true
	}
	return false
}

// String returns the string representation of Orientation
func (o Orientation) String() string {
	return string(o)
}

// RenderStrategy identifies which renderer path produced the mounted content
type RenderStrategy string

const (
	RenderStrategyTemplate RenderStrategy = "TEMPLATE" // Themed template mounted into the surface
	RenderStrategyFallback RenderStrategy = "FALLBACK" // HTML synthesized from document fields
)

// String returns the string representation of RenderStrategy
func (s RenderStrategy) String() string {
	return string(s)
}

// DeliveryMethod identifies how an artifact reached the user
type DeliveryMethod string

const (
	DeliveryMethodShare    DeliveryMethod = "SHARE"
	DeliveryMethodDownload DeliveryMethod = "DOWNLOAD"
	DeliveryMethodPrint    DeliveryMethod = "PRINT"
)

// String returns the string representation of DeliveryMethod
func (m DeliveryMethod) String() string {
	return string(m)
}

// SessionState represents the lifecycle state of a print session
type SessionState string

const (
	SessionStateIdle               SessionState = "IDLE"
	SessionStateLoading            SessionState = "LOADING"
	SessionStateRendering          SessionState = "RENDERING"
	SessionStateAwaitingUserAction SessionState = "AWAITING_USER_ACTION" // Print dialog open
	SessionStateCompleted          SessionState = "COMPLETED"
	SessionStateCancelled          SessionState = "CANCELLED"
	SessionStateFailed             SessionState = "FAILED"
)

// IsValid checks if the SessionState is a valid value
func (s SessionState) IsValid() bool {
	switch s {
	case SessionStateIdle, SessionStateLoading, SessionStateRendering, SessionStateAwaitingUserAction,
		SessionStateCompleted, SessionStateCancelled, SessionStateFailed:
		return true
	}
	return false
}

// String returns the string representation of SessionState
func (s SessionState) String() string {
	return string(s)
}

// IsTerminal returns true for the per-document terminal states.
// A completed document in a batch may still advance to the next document.
func (s SessionState) IsTerminal() bool {
	return s == SessionStateCompleted || s == SessionStateCancelled || s == SessionStateFailed
}

// CanTransitionTo checks if the state can transition to the target state
func (s SessionState) CanTransitionTo(target SessionState) bool {
	if target == SessionStateFailed {
		return !s.IsTerminal()
	}
	switch s {
	case SessionStateIdle:
		return target == SessionStateLoading || target == SessionStateCancelled
	case SessionStateLoading:
		return target == SessionStateRendering || target == SessionStateCancelled
	case SessionStateRendering:
		return target == SessionStateAwaitingUserAction || target == SessionStateCancelled
	case SessionStateAwaitingUserAction:
		return target == SessionStateCompleted || target == SessionStateCancelled
	case SessionStateCompleted:
		// Batch mode: the next queued document starts loading
		return target == SessionStateLoading
	case SessionStateCancelled, SessionStateFailed:
		return false
	}
	return false
}

// CompletionTrigger records what moved a document out of AwaitingUserAction
type CompletionTrigger string

const (
	CompletionTriggerSignal   CompletionTrigger = "SIGNAL"   // The print mechanism reported completion
	CompletionTriggerTimer    CompletionTrigger = "TIMER"    // Fallback timer elapsed without a signal
	CompletionTriggerDelivery CompletionTrigger = "DELIVERY" // Artifact was handed over without a dialog
)

// JobStatus represents the status of a recorded print job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRendering JobStatus = "RENDERING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusCancelled JobStatus = "CANCELLED"
	JobStatusFailed    JobStatus = "FAILED"
)

// IsValid checks if the JobStatus is a valid value
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRendering, JobStatusCompleted, JobStatusCancelled, JobStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this is a terminal status (no further transitions)
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled || s == JobStatusFailed
}

// CanTransitionTo checks if the status can transition to the target status
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	switch s {
	case JobStatusPending:
		return target == JobStatusRendering || target == JobStatusCancelled || target == JobStatusFailed
	case JobStatusRendering:
		return target == JobStatusCompleted || target == JobStatusCancelled || target == JobStatusFailed
	case JobStatusCompleted, JobStatusCancelled, JobStatusFailed:
		return false // Terminal states
	}
	return false
}
