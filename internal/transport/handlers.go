package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/mssola/useragent"
	"go.uber.org/zap"

	"identity_api_gateway/internal/config"
	"identity_api_gateway/internal/identity"
	"identity_api_gateway/internal/metrics"
	"identity_api_gateway/internal/service"
)

const maxCallbackBody = 1 << 20

type Handler struct {
	service service.VerificationService
	metrics *metrics.Metrics
	cfg     config.ProviderConfig
	tokens  *TokenResolver
	logger  *zap.Logger
}

func NewHandler(
	svc service.VerificationService,
	m *metrics.Metrics,
	cfg config.ProviderConfig,
	tokens *TokenResolver,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		service: svc,
		metrics: m,
		cfg:     cfg,
		tokens:  tokens,
		logger:  logger,
	}
}

type verifyRequestBody struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type issuanceError struct {
	ErrorCode string `json:"errorCode"`
	ResultMsg string `json:"resultMsg"`
}

// handleVerifyRequest issues a verification transaction. The requesting user
// comes from the bearer token when auth is configured, from the JSON body
// otherwise.
func (h *Handler) handleVerifyRequest(w http.ResponseWriter, r *http.Request) {
	var userID string
	if h.tokens != nil {
		if id, ok := h.tokens.UserID(r); ok {
			userID = id
		}
	}
	if userID == "" {
		var body verifyRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			userID = body.UserID
		}
	}
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, issuanceError{
			ErrorCode: "4000",
			ResultMsg: "userId is required",
		})
		return
	}

	h.logDevice(r, userID)

	out, err := h.service.CreateRequest(r.Context(), userID, callerOrigin(r))
	if err != nil {
		h.logger.Error("failed to issue verification request",
			zap.Error(err), zap.String("user_id", userID))
		writeJSON(w, http.StatusInternalServerError, issuanceError{
			ErrorCode: "9999",
			ResultMsg: err.Error(),
		})
		return
	}

	if h.metrics != nil {
		h.metrics.IncRequestsIssued()
	}
	writeJSON(w, http.StatusOK, out)
}

// handleVerifyCallback processes the provider's result envelope. The caller
// here is the provider (through the user's browser), so the answer is always
// a redirect back to the front end, never a raw error status.
func (h *Handler) handleVerifyCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
	if err != nil {
		body = nil
	}

	// A dropped client connection must not abort the session mutation.
	res, err := h.service.HandleCallback(context.WithoutCancel(r.Context()), string(body))

	base := h.cfg.ResolveFrontendURL(callerOrigin(r))
	if err != nil {
		h.logger.Warn("verification handshake failed",
			zap.Error(err), zap.String("reason", identity.FailureReason(err)))
		if h.metrics != nil {
			h.metrics.IncHandshakesFailed(identity.FailureReason(err))
		}
		h.redirect(w, r, base, url.Values{
			"status":  {"failed"},
			"message": {failureMessage(err)},
		})
		return
	}

	if h.metrics != nil {
		h.metrics.IncHandshakesSucceeded()
	}
	payload, _ := json.Marshal(map[string]string{"userName": res.UserName})
	h.redirect(w, r, base, url.Values{
		"status": {"success"},
		"data":   {string(payload)},
	})
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, base string, params url.Values) {
	target, err := url.Parse(base)
	if err != nil {
		h.logger.Error("misconfigured frontend url", zap.Error(err), zap.String("url", base))
		http.Redirect(w, r, base+"?"+params.Encode(), http.StatusFound)
		return
	}
	target.RawQuery = params.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (h *Handler) logDevice(r *http.Request, userID string) {
	ua := useragent.New(r.UserAgent())
	browser, version := ua.Browser()
	h.logger.Debug("verification requested",
		zap.String("user_id", userID),
		zap.String("browser", browser),
		zap.String("browser_version", version),
		zap.String("os", ua.OS()),
		zap.Bool("mobile", ua.Mobile()))
}

// callerOrigin resolves the requesting front end from the Origin header,
// falling back to the Referer's origin. It is only ever matched against the
// configured allow-list, never used as a redirect target directly.
func callerOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	if referer := r.Header.Get("Referer"); referer != "" {
		if u, err := url.Parse(referer); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}
	return ""
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, identity.ErrEmptyCallbackBody):
		return "verification callback was empty"
	case errors.Is(err, identity.ErrMissingDataParameter):
		return "verification callback carried no data"
	case errors.Is(err, identity.ErrMissingResultToken):
		return "verification callback carried no result token"
	case errors.Is(err, identity.ErrProviderCommunication):
		return "could not reach the verification provider"
	case errors.Is(err, identity.ErrProviderRejected):
		// Keep the provider's own message visible to the user.
		return err.Error()
	case errors.Is(err, identity.ErrMissingEncryptedPayload):
		return "verification result was empty"
	case errors.Is(err, identity.ErrDecryptionFailed):
		return "verification result could not be read"
	case errors.Is(err, identity.ErrSessionNotFound):
		return "no matching verification session"
	case errors.Is(err, identity.ErrSessionCompleted):
		return "verification was already completed"
	case errors.Is(err, identity.ErrResultExpired):
		return "verification result has expired, please try again"
	default:
		return "verification could not be completed"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
