package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"dealflow/internal/core/domain"
	"dealflow/internal/pkg/logger"
	"dealflow/internal/pkg/phone"
)

// ============================================================
// OTP Service - signing confirmation codes
// ============================================================

// OTPConfig holds code lifetime and abuse limits.
type OTPConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	CodeLength     int
}

// OTPService issues and verifies confirmation codes. It implements OTPDispatcher.
type OTPService struct {
	store  OTPStore
	sender SMSSender
	cfg    OTPConfig
	now    Clock
	mu     sync.Mutex
}

// NewOTPService creates a new OTP service
func NewOTPService(store OTPStore, sender SMSSender, cfg OTPConfig, now Clock) *OTPService {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if now == nil {
		now = time.Now
	}
	return &OTPService{store: store, sender: sender, cfg: cfg, now: now}
}

// SendOTP generates a code for key and texts it to rawPhone. A new code may not
// be requested before the resend cooldown has passed.
func (s *OTPService) SendOTP(ctx context.Context, key, rawPhone string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, err := s.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("load otp: %w", err)
	}
	if existing != nil && now.Sub(existing.IssuedAt) < s.cfg.ResendCooldown {
		return 0, domain.ErrCooldownActive
	}

	code, err := generateSecureOTP(s.cfg.CodeLength)
	if err != nil {
		return 0, fmt.Errorf("generate otp: %w", err)
	}

	normalized := phone.Normalize(rawPhone)
	entry := &OTPEntry{
		Code:      code,
		Phone:     normalized,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}
	if err := s.store.Put(ctx, key, entry, s.cfg.TTL); err != nil {
		return 0, fmt.Errorf("store otp: %w", err)
	}

	msg := fmt.Sprintf("Your signing confirmation code: %s. Valid for %d minutes.", code, int(s.cfg.TTL.Minutes()))
	if err := s.sender.Send(ctx, normalized, msg); err != nil {
		_ = s.store.Delete(ctx, key)
		return 0, fmt.Errorf("send otp: %w", err)
	}

	logger.Info(ctx, "otp issued", "phone", phone.Mask(normalized))
	return int(s.cfg.TTL.Seconds()), nil
}

// ValidateOTP checks code against the one issued for key. A correct code is
// consumed. Wrong guesses count towards MaxAttempts, after which the code is
// dropped and ErrTooManyAttempts returned.
func (s *OTPService) ValidateOTP(ctx context.Context, key, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load otp: %w", err)
	}
	if entry == nil {
		return false, domain.ErrCodeExpired
	}

	now := s.now()
	if now.After(entry.ExpiresAt) {
		_ = s.store.Delete(ctx, key)
		return false, domain.ErrCodeExpired
	}
	if entry.Attempts >= s.cfg.MaxAttempts {
		_ = s.store.Delete(ctx, key)
		return false, domain.ErrTooManyAttempts
	}

	if strings.TrimSpace(code) != entry.Code {
		entry.Attempts++
		if entry.Attempts >= s.cfg.MaxAttempts {
			_ = s.store.Delete(ctx, key)
			return false, domain.ErrTooManyAttempts
		}
		if err := s.store.Put(ctx, key, entry, entry.ExpiresAt.Sub(now)); err != nil {
			return false, fmt.Errorf("store otp: %w", err)
		}
		return false, nil
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return true, nil
}

// ============================================================
// In-memory store
// ============================================================

type memoryEntry struct {
	entry     OTPEntry
	expiresAt time.Time
}

// MemoryOTPStore keeps codes in process memory. Suitable for a single instance.
type MemoryOTPStore struct {
	store map[string]memoryEntry
	mu    sync.RWMutex
	now   Clock
}

// NewMemoryOTPStore creates an in-memory store
func NewMemoryOTPStore(now Clock) *MemoryOTPStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryOTPStore{store: make(map[string]memoryEntry), now: now}
}

func (m *MemoryOTPStore) Get(_ context.Context, key string) (*OTPEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.store[key]
	if !ok || m.now().After(e.expiresAt) {
		return nil, nil
	}
	entry := e.entry
	return &entry, nil
}

func (m *MemoryOTPStore) Put(_ context.Context, key string, entry *OTPEntry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = memoryEntry{entry: *entry, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryOTPStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, key)
	return nil
}

// Cleanup removes expired codes and reports how many were dropped.
func (m *MemoryOTPStore) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, e := range m.store {
		if now.After(e.expiresAt) {
			delete(m.store, key)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (m *MemoryOTPStore) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}

// LogSMSSender writes messages to the log instead of an SMS gateway.
type LogSMSSender struct {
	// IncludeBody logs message text, which contains codes. Development only.
	IncludeBody bool
}

func (l LogSMSSender) Send(ctx context.Context, to, message string) error {
	if l.IncludeBody {
		logger.Info(ctx, "sms", "to", phone.Mask(to), "body", message)
		return nil
	}
	logger.Info(ctx, "sms", "to", phone.Mask(to))
	return nil
}

// generateSecureOTP generates a cryptographically secure random OTP
func generateSecureOTP(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
