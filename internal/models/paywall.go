package models

// Paywall represents a payable contact link created by a creator.
type Paywall struct {
	// ID is the opaque unique identifier of the link, generated at creation.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// CreatorAddress is the wallet address of the creator who owns the link.
	CreatorAddress string `json:"creatorAddress" gorm:"column:creator_address;index;not null"`
	// PayToAddress is an optional distinct payout address.
	// When empty, payments go to CreatorAddress (delegated payout support).
	PayToAddress string `json:"payToAddress,omitempty" gorm:"column:pay_to_address"`
	// Title is an optional human-readable name for the link.
	Title string `json:"title,omitempty" gorm:"column:title"`
	// Price is the amount a sender has to pay, as a decimal string (e.g. "0.05").
	Price string `json:"price" gorm:"column:price;not null"`
	// Currency is the ticker of the settlement asset (e.g. "USDC").
	Currency string `json:"currency" gorm:"column:currency"`
	// Email is the creator's contact email, used for forwarding submissions.
	Email string `json:"email" gorm:"column:email;not null"`
	// Description is shown to senders and embedded in the payment requirements.
	Description string `json:"description" gorm:"column:description"`
	// CreatedAt is the Unix timestamp of link creation.
	CreatedAt int64 `json:"createdAt" gorm:"column:created_at;index"`
}

// RecipientAddress returns the address that should receive the payment
// for this link: the payout address when set, the creator otherwise.
func (p *Paywall) RecipientAddress() string {
	if p.PayToAddress != "" {
		return p.PayToAddress
	}
	return p.CreatorAddress
}
