package identity

import (
	"time"
)

type SessionStatus string

const (
	StatusPending SessionStatus = "pending"
	StatusSuccess SessionStatus = "success"
	StatusFailed  SessionStatus = "failed"
)

// Terminal reports whether the status can no longer change. A session moves
// from pending to exactly one terminal status.
func (s SessionStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ExtractedIdentity is the subset of the provider result persisted on a
// successful session. CI and DI are the provider-issued linkage values, not
// raw national ID numbers.
type ExtractedIdentity struct {
	UserName  string `json:"userName"`
	UserPhone string `json:"userPhone"`
	CI        string `json:"ci"`
	DI        string `json:"di"`
}

// VerificationSession is one handshake attempt, keyed by transaction ID.
type VerificationSession struct {
	TransactionID string             `json:"transactionId"`
	UserID        string             `json:"userId"`
	Status        SessionStatus      `json:"status"`
	CreatedAt     time.Time          `json:"createdAt"`
	CompletedAt   *time.Time         `json:"completedAt,omitempty"`
	Identity      *ExtractedIdentity `json:"extractedIdentity,omitempty"`
}

// OutboundRequest is the provider-ready request object returned to the front
// end. It is never persisted. Field names follow the provider wire contract.
type OutboundRequest struct {
	UsageCode     string `json:"usageCode"`
	ServiceID     string `json:"serviceId"`
	EncryptedTxID string `json:"encryptReqClientInfo"`
	ServiceType   string `json:"serviceType"`
	TransferMode  string `json:"retTransferType"`
	ReturnURL     string `json:"returnUrl"`
}

type Gender int

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
)

// ParseGender maps the provider's wire value ("1" male, "2" female).
func ParseGender(wire string) Gender {
	switch wire {
	case "1":
		return GenderMale
	case "2":
		return GenderFemale
	default:
		return GenderUnknown
	}
}

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	default:
		return "unknown"
	}
}

type Nation int

const (
	NationUnknown Nation = iota
	NationDomestic
	NationForeign
)

// ParseNation maps the provider's wire value ("0" domestic, "1" foreign).
func ParseNation(wire string) Nation {
	switch wire {
	case "0":
		return NationDomestic
	case "1":
		return NationForeign
	default:
		return NationUnknown
	}
}

func (n Nation) String() string {
	switch n {
	case NationDomestic:
		return "domestic"
	case NationForeign:
		return "foreign"
	default:
		return "unknown"
	}
}

// Result is the decrypted, normalized identity payload. Every field except
// IssueDate is optional; absent fields stay zero-valued. ClientTxID is the
// transaction ID this gateway issued and is the session lookup key.
type Result struct {
	UserName     string
	SiteID       string
	ClientTxID   string
	TxID         string
	ProviderID   string
	ServiceType  string
	CI           string
	DI           string
	UserPhone    string
	UserBirthday string
	Gender       Gender
	Nation       Nation
	ReqAuthType  string
	ReqDate      string
	Issuer       string
	IssueDate    string // YYYYMMDDHHMMSS, drives the validity window
}
