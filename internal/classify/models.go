package classify

// Intent is the classifier's categorical judgment of an inbound message.
type Intent string

const (
	IntentSalesOpportunity Intent = "sales_opportunity"
	IntentSupportIssue     Intent = "support_issue"
	IntentSimpleInquiry    Intent = "simple_inquiry"
	IntentUnclassifiable   Intent = "unclassifiable"
)

func ValidIntent(i Intent) bool {
	switch i {
	case IntentSalesOpportunity, IntentSupportIssue, IntentSimpleInquiry, IntentUnclassifiable:
		return true
	default:
		return false
	}
}

// Result is the outcome of classifying one inbound message. It is ephemeral:
// produced and consumed within a single routing decision, never persisted on
// its own.
//
// A degraded Result (unclassifiable, zero confidence) is a normal value, not
// an error; callers must treat it as reduced-confidence routing input.
type Result struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`

	// AutoReply is optional generated reply text, only meaningful for
	// simple-inquiry results.
	AutoReply string `json:"auto_reply,omitempty"`
}

// Degraded is the fallback result for every failure path: short input, the
// concurrency cap, network errors, bad status codes, unparseable output.
func Degraded() Result {
	return Result{Intent: IntentUnclassifiable, Confidence: 0}
}
