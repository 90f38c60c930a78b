package models

type Repository interface {
	CreatePaywall(*Paywall) error
	GetPaywall(id string) (*Paywall, error)
	ListAllPaywalls() ([]*Paywall, error)
	ListPaywallsByCreator(creatorAddress string) ([]*Paywall, error)

	CreateSubmission(*Submission) error
	ListAllSubmissions() ([]*Submission, error)
	ListSubmissionsByCreator(creatorAddress string) ([]*SubmissionWithPaywall, error)
	ListSubmissionsByWallet(walletAddress string) ([]*Submission, error)

	Close() error
}
