package internal

type CatalogProduct struct {
	Name      string  `json:"name" yaml:"name"`
	Code      string  `json:"code" yaml:"code"`
	Brand     string  `json:"brand,omitempty" yaml:"brand,omitempty"`
	Category  string  `json:"category,omitempty" yaml:"category,omitempty"`
	UnitPrice float64 `json:"unitPrice" yaml:"unitPrice"`
	TaxRate   float64 `json:"taxRate" yaml:"taxRate"`
}

type EmailDocument struct {
	ID      string
	Subject string
	Body    string
}

type ProductMatch struct {
	Product      CatalogProduct `json:"product"`
	MatchScore   float64        `json:"matchScore"`
	MatchedTerms []string       `json:"matchedTerms"`
}

// GenericProductRef marks a quantity that could not be tied to a detected product.
const GenericProductRef = "generic"

type QuantityMention struct {
	ProductRef string  `json:"productRef"`
	Quantity   int     `json:"quantity"`
	Confidence float64 `json:"confidence"`
}

type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

type Category string

const (
	CategoryQuoteRequest    Category = "quote_request"
	CategoryGeneralEmail    Category = "general_email"
	CategorySpecificProduct Category = "specific_product"
	CategoryGeneralInquiry  Category = "general_inquiry"
	CategoryUrgent          Category = "urgent"
	CategoryBulkOrder       Category = "bulk_order"
)

type ClassificationResult struct {
	EmailID             string            `json:"emailId,omitempty"`
	IsQuoteRequest      bool              `json:"isQuoteRequest"`
	ConfidenceTier      ConfidenceTier    `json:"confidenceTier"`
	Score               float64           `json:"score"`
	DetectedProducts    []ProductMatch    `json:"detectedProducts"`
	ExtractedQuantities []QuantityMention `json:"extractedQuantities"`
	Reasoning           string            `json:"reasoning"`
	Categories          []Category        `json:"categories"`
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type ClassificationExportRow struct {
	EmailID        int
	Provider       string
	MessageID      string
	Subject        string
	Sender         string
	ReceivedAt     string
	IsQuoteRequest bool
	ConfidenceTier string
	Score          float64
	Categories     string
	Reasoning      string
	TopProductCode *string
	TopProductName *string
	TopMatchScore  *float64
	Quantities     string
}
