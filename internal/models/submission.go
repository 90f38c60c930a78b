package models

// Submission represents a paid message sent through a paywall link.
// A row is only written after settlement succeeded, so Paid is true and the
// settlement metadata is present on every stored submission.
type Submission struct {
	// ID is the opaque unique identifier of the submission.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// PaywallID references the link the message was sent through.
	PaywallID string `json:"paywallId" gorm:"column:paywall_id;index;not null"`
	// Name is the optional display name of the sender.
	Name string `json:"name,omitempty" gorm:"column:name"`
	// Contact is how the creator can reach the sender back.
	Contact string `json:"contact" gorm:"column:contact;not null"`
	// Message is the message body.
	Message string `json:"message" gorm:"column:message;not null;type:text"`
	// TxHash is the settlement transaction reference.
	TxHash string `json:"txHash,omitempty" gorm:"column:tx_hash"`
	// WalletAddress is the payer's wallet address, stored lowercase.
	WalletAddress string `json:"walletAddress,omitempty" gorm:"column:wallet_address;index"`
	// Paid indicates the associated settlement succeeded.
	Paid bool `json:"paid" gorm:"column:paid;index"`
	// CreatedAt is the Unix timestamp when the submission was recorded.
	CreatedAt int64 `json:"createdAt" gorm:"column:created_at;index"`
}

// SubmissionWithPaywall is a submission joined with identifying fields of its
// paywall, as returned by the creator inbox listing.
type SubmissionWithPaywall struct {
	Submission
	// PaywallTitle is the title of the owning link.
	PaywallTitle string `json:"paywallTitle" gorm:"column:paywall_title"`
	// PaywallPrice is the price of the owning link.
	PaywallPrice string `json:"paywallPrice" gorm:"column:paywall_price"`
	// PaywallCurrency is the currency of the owning link.
	PaywallCurrency string `json:"paywallCurrency" gorm:"column:paywall_currency"`
}
