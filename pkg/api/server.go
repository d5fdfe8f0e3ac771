package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/uhyunpark/starksettle/pkg/market"
	"github.com/uhyunpark/starksettle/pkg/numeric"
	"github.com/uhyunpark/starksettle/pkg/settlement"
	"github.com/uhyunpark/starksettle/pkg/signing"
	"github.com/uhyunpark/starksettle/pkg/transaction"
	"github.com/uhyunpark/starksettle/pkg/util"
)

const maxBodyBytes = 1 << 20

// Config holds the server's request defaults and HTTP limits
type Config struct {
	PositionID  uint32           // vault used when a request names none
	AssetID     string           // collateral asset of withdrawals and transfers
	FeeRate     *decimal.Decimal // order fee rate when a request names none, nil for the default
	Expiry      time.Duration    // order lifetime when a request names none
	GridPolicy  market.GridPolicy
	CORSOrigins []string
	RateLimit   float64 // requests per second, 0 disables limiting
	RateBurst   int
	Clock       util.Clock
}

// Server exposes the signing pipeline over REST
type Server struct {
	pipeline *signing.Pipeline
	verifier *signing.Verifier
	markets  *market.Registry
	cfg      Config
	limiter  *rate.Limiter
	log      *zap.SugaredLogger
	router   *mux.Router
	http     *http.Server
}

// NewServer creates a new API server
func NewServer(pipeline *signing.Pipeline, markets *market.Registry, cfg Config, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.Clock == nil {
		cfg.Clock = util.RealClock{}
	}
	if cfg.FeeRate == nil {
		fee := transaction.DefaultFeeRate
		cfg.FeeRate = &fee
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = transaction.DefaultExpiry
	}

	s := &Server{
		pipeline: pipeline,
		verifier: pipeline.Verifier(),
		markets:  markets,
		cfg:      cfg,
		log:      log,
		router:   mux.NewRouter(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestID, s.logRequests, s.rateLimit)

	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Signing endpoints
	api.HandleFunc("/orders/sign", s.handleSignOrder).Methods("POST")
	api.HandleFunc("/orders/verify", s.handleVerifyOrder).Methods("POST")
	api.HandleFunc("/withdrawals/sign", s.handleSignWithdrawal).Methods("POST")
	api.HandleFunc("/transfers/sign", s.handleSignTransfer).Methods("POST")

	// Market endpoints
	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{name}", s.handleGetMarket).Methods("GET")

	// Key endpoint
	api.HandleFunc("/key", s.handleGetKey).Methods("GET")

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped in CORS handling
func (s *Server) Handler() http.Handler {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return c.Handler(s.router)
}

// Start serves until Shutdown is called
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Infow("api_server_starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// ==============================
// Signing Handlers
// ==============================

func (s *Server) handleSignOrder(w http.ResponseWriter, r *http.Request) {
	var req SignOrderRequest
	if !s.decode(w, r, &req) {
		return
	}

	m, err := s.markets.Get(req.Market)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	positionID, err := s.positionID(req.PositionID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	order, err := s.buildOrder(req, m)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	signed, err := s.pipeline.SignMarketOrder(order, m, positionID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, signed)
}

func (s *Server) buildOrder(req SignOrderRequest, m *market.Market) (*transaction.CreateOrderRequest, error) {
	side, err := settlement.ParseSide(string(req.Side))
	if err != nil {
		return nil, err
	}

	var b *transaction.OrderBuilder
	switch req.Type {
	case "", transaction.OrderTypeLimit:
		b = transaction.NewLimitOrder(m.Name, side, req.Price, req.Qty)
	case transaction.OrderTypeMarket:
		b = transaction.NewMarketOrder(m.Name, side, req.Price, req.Qty)
	default:
		return nil, fmt.Errorf("%w: unsupported order type %q", signing.ErrInvalidInput, req.Type)
	}

	fee := *s.cfg.FeeRate
	if req.Fee != nil {
		fee = *req.Fee
	}
	expiry := util.UnixMillis(s.cfg.Clock) + s.cfg.Expiry.Milliseconds()
	if req.ExpiryEpochMillis != nil {
		expiry = *req.ExpiryEpochMillis
	}

	b = b.Fee(fee).
		Expiry(expiry).
		ReduceOnly(req.ReduceOnly).
		PostOnly(req.PostOnly).
		ExternalID(req.ExternalID).
		Replaces(req.CancelID).
		WithClock(s.cfg.Clock)
	if req.Nonce != nil {
		b = b.Nonce(*req.Nonce)
	}
	if req.TimeInForce != "" {
		b = b.TimeInForce(req.TimeInForce)
	}
	if req.SelfTradeLevel != "" {
		b = b.SelfTradeProtection(req.SelfTradeLevel)
	}
	if req.RoundToGrid {
		b = b.OnGrid(m.TradingConfig, s.cfg.GridPolicy)
	}
	return b.Build()
}

func (s *Server) handleVerifyOrder(w http.ResponseWriter, r *http.Request) {
	var req VerifyOrderRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Order == nil {
		s.respondErr(w, r, fmt.Errorf("%w: order is required", signing.ErrInvalidInput))
		return
	}

	m, err := s.markets.Get(req.Order.Market)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	positionID, err := s.positionID(req.PositionID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	err = s.verifier.VerifyOrder(req.Order, m.AssetContext(positionID))
	switch {
	case err == nil:
		respondJSON(w, VerifyResponse{Valid: true})
	case errors.Is(err, signing.ErrInvalidSignature):
		respondJSON(w, VerifyResponse{Valid: false, Reason: err.Error()})
	default:
		s.respondErr(w, r, err)
	}
}

func (s *Server) handleSignWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req SignWithdrawalRequest
	if !s.decode(w, r, &req) {
		return
	}
	positionID, err := s.positionID(req.PositionID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	signed, err := s.pipeline.SignWithdrawal(signing.WithdrawalParams{
		Amount:            req.Amount,
		Recipient:         req.Recipient,
		PositionID:        strconv.FormatUint(uint64(positionID), 10),
		CollateralAssetID: s.cfg.AssetID,
		Nonce:             req.Nonce,
		ExpiryMillis:      s.expiry(req.ExpiryEpochMillis),
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, signed)
}

func (s *Server) handleSignTransfer(w http.ResponseWriter, r *http.Request) {
	var req SignTransferRequest
	if !s.decode(w, r, &req) {
		return
	}
	positionID, err := s.positionID(req.PositionID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	signed, err := s.pipeline.SignTransfer(signing.TransferParams{
		Amount:              req.Amount,
		RecipientPositionID: req.RecipientAccountID,
		SenderPositionID:    strconv.FormatUint(uint64(positionID), 10),
		CollateralAssetID:   s.cfg.AssetID,
		Nonce:               req.Nonce,
		ExpiryMillis:        s.expiry(req.ExpiryEpochMillis),
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, signed)
}

// ==============================
// Read Handlers
// ==============================

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	markets := s.markets.List()

	response := make([]MarketInfo, len(markets))
	for i, m := range markets {
		response[i] = newMarketInfo(m)
	}

	respondJSON(w, response)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	m, err := s.markets.Get(vars["name"])
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, newMarketInfo(m))
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	signer := s.pipeline.Signer()
	respondJSON(w, KeyInfo{
		PublicKey:  signer.PublicKeyHex(),
		Status:     signer.Status().String(),
		PositionID: s.cfg.PositionID,
		Domain:     s.pipeline.Domain(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{
		Status:    "ok",
		KeyStatus: s.pipeline.Signer().Status().String(),
		Markets:   s.markets.Count(),
	})
}

// ==============================
// Middleware
// ==============================

type ctxKey int

const requestIDKey ctxKey = iota

// requestID tags every request with an id, reusing the caller's X-Request-ID
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.log.Infow("http_request",
			"request_id", requestIDFrom(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			respondError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", requestIDFrom(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request_body", err.Error(), requestIDFrom(r.Context()))
		return false
	}
	return true
}

func (s *Server) positionID(raw string) (uint32, error) {
	if raw == "" {
		return s.cfg.PositionID, nil
	}
	return signing.ParsePositionID(raw)
}

func (s *Server) expiry(millis *int64) int64 {
	if millis != nil {
		return *millis
	}
	return util.UnixMillis(s.cfg.Clock) + s.cfg.Expiry.Milliseconds()
}

// errorStatus maps pipeline errors onto HTTP status codes and error codes
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, market.ErrNotFound):
		return http.StatusNotFound, "market_not_found"
	case errors.Is(err, signing.ErrAmountOverflow), errors.Is(err, numeric.ErrOverflow):
		return http.StatusBadRequest, "amount_overflow"
	case errors.Is(err, signing.ErrInvalidResolution), errors.Is(err, numeric.ErrInvalidScale):
		return http.StatusBadRequest, "invalid_resolution"
	case errors.Is(err, numeric.ErrInvalidGrid):
		return http.StatusBadRequest, "invalid_grid"
	case errors.Is(err, signing.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, signing.ErrHashComputationFailed):
		return http.StatusInternalServerError, "hash_computation_failed"
	case errors.Is(err, signing.ErrSignatureFailed):
		return http.StatusInternalServerError, "signature_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	id := requestIDFrom(r.Context())
	if status >= http.StatusInternalServerError {
		s.log.Errorw("request_failed", "request_id", id, "path", r.URL.Path, "error", err)
	} else {
		s.log.Warnw("request_rejected", "request_id", id, "path", r.URL.Path, "code", code, "error", err)
	}
	respondError(w, status, code, err.Error(), id)
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code string, message string, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: requestID,
	})
}
