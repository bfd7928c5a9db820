package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"identity_api_gateway/internal/config"
	"identity_api_gateway/internal/crypto"
	"identity_api_gateway/internal/identity"
	"identity_api_gateway/internal/messaging"
	"identity_api_gateway/internal/provider"
	"identity_api_gateway/internal/repository"
	"identity_api_gateway/internal/txid"
)

// resultValidity is the provider's window between issuing a result and our
// reconciliation of it.
const resultValidity = 10 * time.Minute

// VerificationService orchestrates the verification handshake: issuing the
// outbound request and processing the provider callback end to end.
type VerificationService interface {
	CreateRequest(ctx context.Context, userID, origin string) (*identity.OutboundRequest, error)
	HandleCallback(ctx context.Context, rawBody string) (*CallbackResult, error)
}

// CallbackResult carries the public-safe outcome of a successful handshake.
type CallbackResult struct {
	UserName string
}

type verificationService struct {
	sessions repository.SessionRepository
	profiles repository.ProfileRepository
	crypto   crypto.Gateway
	provider provider.Client
	events   messaging.Publisher
	cfg      config.ProviderConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewVerificationService wires the orchestrator. gateway may be nil when key
// material failed to initialize at startup; issuance then fails cleanly with
// identity.ErrEncryptionUnavailable instead of crashing the process.
func NewVerificationService(
	sessions repository.SessionRepository,
	profiles repository.ProfileRepository,
	gateway crypto.Gateway,
	providerClient provider.Client,
	events messaging.Publisher,
	cfg config.ProviderConfig,
	logger *zap.Logger,
) VerificationService {
	return &verificationService{
		sessions: sessions,
		profiles: profiles,
		crypto:   gateway,
		provider: providerClient,
		events:   events,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateRequest issues a transaction, persists the pending session and
// returns the provider-ready request object. The session is created before
// returning so a callback can never race ahead of it, and only after
// encryption succeeds so no partial session is left behind.
func (s *verificationService) CreateRequest(ctx context.Context, userID, origin string) (*identity.OutboundRequest, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	if s.crypto == nil {
		return nil, fmt.Errorf("%w: key material not initialized", identity.ErrEncryptionUnavailable)
	}

	transactionID := txid.New(s.cfg.ClientPrefix, s.now())

	encrypted, err := s.crypto.Encrypt(transactionID)
	if err != nil {
		s.logger.Error("failed to encrypt transaction id", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", identity.ErrEncryptionUnavailable, err)
	}

	session := &identity.VerificationSession{
		TransactionID: transactionID,
		UserID:        userID,
		Status:        identity.StatusPending,
		CreatedAt:     s.now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create verification session: %w", err)
	}

	s.logger.Info("verification request issued",
		zap.String("transaction_id", transactionID),
		zap.String("user_id", userID),
		zap.String("origin", origin))

	return &identity.OutboundRequest{
		UsageCode:     s.cfg.UsageCode,
		ServiceID:     s.crypto.ServiceID(),
		EncryptedTxID: encrypted,
		ServiceType:   s.cfg.ServiceType,
		TransferMode:  s.cfg.TransferMode,
		ReturnURL:     s.cfg.ResolveCallbackURL(origin),
	}, nil
}

// HandleCallback runs the callback half of the handshake sequentially:
// envelope unwrap, result fetch, decrypt+normalize, reconcile, expiry check.
// Any returned error means the handshake failed; the caller redirects either
// way.
func (s *verificationService) HandleCallback(ctx context.Context, rawBody string) (*CallbackResult, error) {
	token, err := extractResultToken(rawBody)
	if err != nil {
		return nil, err
	}

	payload, err := s.provider.FetchResult(ctx, token)
	if err != nil {
		return nil, err
	}

	result, err := s.decryptResult(payload)
	if err != nil {
		return nil, err
	}

	if err := s.reconcile(ctx, result); err != nil {
		return nil, err
	}

	return &CallbackResult{UserName: result.UserName}, nil
}

// extractResultToken normalizes the provider's callback body to the one-time
// result token. The body arrives either form-encoded ("data=...") or as a
// structured body with a "data" field.
func extractResultToken(rawBody string) (string, error) {
	body := strings.TrimSpace(rawBody)
	if body == "" {
		return "", identity.ErrEmptyCallbackBody
	}

	var raw string
	if values, err := url.ParseQuery(body); err == nil {
		raw = values.Get("data")
	}
	if raw == "" {
		var structured struct {
			Data string `json:"data"`
		}
		if err := json.Unmarshal([]byte(body), &structured); err == nil {
			raw = structured.Data
		}
	}
	if raw == "" {
		return "", identity.ErrMissingDataParameter
	}

	// The provider double-encodes the data field. Apply exactly one extra
	// decode pass; decoding until stable would mask malformed input.
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: data parameter is not decodable: %v", identity.ErrMissingResultToken, err)
	}

	var envelope struct {
		Token string `json:"encryptMOKKeyToken"`
	}
	if err := json.Unmarshal([]byte(decoded), &envelope); err != nil {
		return "", fmt.Errorf("%w: callback payload is not valid JSON: %v", identity.ErrMissingResultToken, err)
	}
	if envelope.Token == "" {
		return "", identity.ErrMissingResultToken
	}

	return envelope.Token, nil
}

// resultWire mirrors the provider's decrypted result document. Every field
// is optional on the wire; absent fields stay empty.
type resultWire struct {
	UserName     string `json:"userName"`
	SiteID       string `json:"siteId"`
	ClientTxID   string `json:"clientTxId"`
	TxID         string `json:"txId"`
	ProviderID   string `json:"providerId"`
	ServiceType  string `json:"serviceType"`
	CI           string `json:"ci"`
	DI           string `json:"di"`
	UserPhone    string `json:"userPhone"`
	UserBirthday string `json:"userBirthday"`
	UserGender   string `json:"userGender"`
	UserNation   string `json:"userNation"`
	ReqAuthType  string `json:"reqAuthType"`
	ReqDate      string `json:"reqDate"`
	Issuer       string `json:"issuer"`
	IssueDate    string `json:"issueDate"`
}

func (s *verificationService) decryptResult(payload string) (*identity.Result, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, identity.ErrMissingEncryptedPayload
	}

	if s.crypto == nil {
		return nil, fmt.Errorf("%w: key material not initialized", identity.ErrDecryptionFailed)
	}

	plain, err := s.crypto.Decrypt(payload)
	if err != nil {
		s.logger.Error("failed to decrypt identity payload", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", identity.ErrDecryptionFailed, err)
	}

	var wire resultWire
	if err := json.Unmarshal([]byte(plain), &wire); err != nil {
		return nil, fmt.Errorf("%w: decrypted payload is not valid JSON: %v", identity.ErrDecryptionFailed, err)
	}

	return &identity.Result{
		UserName:     wire.UserName,
		SiteID:       wire.SiteID,
		ClientTxID:   wire.ClientTxID,
		TxID:         wire.TxID,
		ProviderID:   wire.ProviderID,
		ServiceType:  wire.ServiceType,
		CI:           wire.CI,
		DI:           wire.DI,
		UserPhone:    wire.UserPhone,
		UserBirthday: wire.UserBirthday,
		Gender:       identity.ParseGender(wire.UserGender),
		Nation:       identity.ParseNation(wire.UserNation),
		ReqAuthType:  wire.ReqAuthType,
		ReqDate:      wire.ReqDate,
		Issuer:       wire.Issuer,
		IssueDate:    wire.IssueDate,
	}, nil
}

// reconcile matches the result to its session and commits the single
// pending-to-terminal transition. The expiry check runs before any mutation,
// so an expired result never touches the user profile.
func (s *verificationService) reconcile(ctx context.Context, result *identity.Result) error {
	if result.ClientTxID == "" {
		return fmt.Errorf("%w: result carries no client transaction id", identity.ErrSessionNotFound)
	}

	session, err := s.sessions.Get(ctx, result.ClientTxID)
	if err != nil {
		return err
	}

	if session.Status.Terminal() {
		return fmt.Errorf("%w: status is already %s", identity.ErrSessionCompleted, session.Status)
	}

	if err := s.checkValidity(result.IssueDate); err != nil {
		s.failSession(ctx, session, err)
		return err
	}

	now := s.now()
	session.Status = identity.StatusSuccess
	session.CompletedAt = &now
	session.Identity = &identity.ExtractedIdentity{
		UserName:  result.UserName,
		UserPhone: result.UserPhone,
		CI:        result.CI,
		DI:        result.DI,
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to update verification session: %w", err)
	}

	// Propagation is best-effort: the verification itself already succeeded.
	if err := s.profiles.ApplyVerifiedIdentity(ctx, session.UserID, *session.Identity); err != nil {
		s.logger.Warn("failed to propagate verified identity to user profile",
			zap.Error(err),
			zap.String("user_id", session.UserID),
			zap.String("transaction_id", session.TransactionID))
	}

	s.publishCompleted(ctx, session, "")

	s.logger.Info("verification session reconciled",
		zap.String("transaction_id", session.TransactionID),
		zap.String("user_id", session.UserID))
	return nil
}

// checkValidity rejects results issued more than resultValidity before now.
// The deadline comparison is lexicographic in the wire timestamp format, so
// a result at exactly issueDate+10min is still valid.
func (s *verificationService) checkValidity(issueDate string) error {
	if issueDate == "" {
		return fmt.Errorf("%w: result has no issue date", identity.ErrResultExpired)
	}

	issued, err := txid.ParseTime(issueDate)
	if err != nil {
		return fmt.Errorf("%w: malformed issue date %q", identity.ErrResultExpired, issueDate)
	}

	deadline := txid.FormatTime(issued.Add(resultValidity))
	if txid.FormatTime(s.now()) > deadline {
		return fmt.Errorf("%w: issued at %s", identity.ErrResultExpired, issueDate)
	}

	return nil
}

// failSession commits the failed terminal state for a session that was
// matched but rejected. Storage errors here are logged only; the handshake
// outcome is already decided.
func (s *verificationService) failSession(ctx context.Context, session *identity.VerificationSession, cause error) {
	now := s.now()
	session.Status = identity.StatusFailed
	session.CompletedAt = &now

	if err := s.sessions.Update(ctx, session); err != nil {
		s.logger.Warn("failed to mark session as failed",
			zap.Error(err), zap.String("transaction_id", session.TransactionID))
	}

	s.publishCompleted(ctx, session, identity.FailureReason(cause))
}

func (s *verificationService) publishCompleted(ctx context.Context, session *identity.VerificationSession, reason string) {
	if s.events == nil {
		return
	}

	msg := messaging.VerificationCompletedMessage{
		TransactionID: session.TransactionID,
		UserID:        session.UserID,
		Status:        string(session.Status),
		Reason:        reason,
		CompletedAt:   s.now(),
	}
	if err := s.events.PublishVerificationCompleted(ctx, msg); err != nil {
		s.logger.Warn("failed to publish verification completed event",
			zap.Error(err), zap.String("transaction_id", session.TransactionID))
	}
}
