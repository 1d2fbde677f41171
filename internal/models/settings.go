package models

// ReceiptTemplate selects the receipt layout.
type ReceiptTemplate string

const (
	ReceiptStandard ReceiptTemplate = "standard"
	ReceiptCompact  ReceiptTemplate = "compact"
)

// SystemSettings is process-wide, shared by every tenant.
type SystemSettings struct {
	AppName          string          `json:"appName"`
	AppSubtitle      string          `json:"appSubtitle"`
	ReceiptTemplate  ReceiptTemplate `json:"receiptTemplate"`
	AutoPrintReceipt bool            `json:"autoPrintReceipt"`
}

// DefaultSettings is used until settings are saved or restored.
func DefaultSettings() SystemSettings {
	return SystemSettings{
		AppName:          "FoodCore",
		AppSubtitle:      "RMS",
		ReceiptTemplate:  ReceiptCompact,
		AutoPrintReceipt: false,
	}
}
