package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateOTP(t *testing.T) {
	for _, length := range []int{4, 6, 10} {
		code, err := GenerateOTP(length)
		if err != nil {
			t.Fatalf("GenerateOTP(%d) error = %v", length, err)
		}
		if len(code) != length {
			t.Errorf("len(GenerateOTP(%d)) = %d", length, len(code))
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Errorf("GenerateOTP(%d) = %q contains non-digit %q", length, code, c)
			}
		}
	}

	code, err := GenerateOTP(0)
	if err != nil {
		t.Fatalf("GenerateOTP(0) error = %v", err)
	}
	if len(code) != DefaultOTPLength {
		t.Errorf("GenerateOTP(0) length = %d, want default %d", len(code), DefaultOTPLength)
	}
}

func TestGenerateOTP_DigitDistribution(t *testing.T) {
	var counts [10]int
	for range 500 {
		code, err := GenerateOTP(6)
		if err != nil {
			t.Fatalf("GenerateOTP() error = %v", err)
		}
		for _, c := range code {
			counts[c-'0']++
		}
	}
	// 3000 digits, expected 300 each.
	for d, n := range counts {
		if n < 150 || n > 450 {
			t.Errorf("digit %d appeared %d times out of 3000", d, n)
		}
	}
}

func TestOTPRepository_CreateAndLatestValid(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "otp@example.com", RoleTenant, false)
	clock := newTestClock()
	repo := NewOTPRepository(db)
	repo.SetClock(clock.Now)
	ctx := context.Background()

	created, err := repo.Create(ctx, user.ID, "123456", PurposeVerification, 5*time.Minute)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rest, ok := strings.CutPrefix(created.ID, "otp-"); !ok || uuid.Validate(rest) != nil {
		t.Errorf("ID = %q, want otp- prefix and a full UUID", created.ID)
	}
	if created.ExpiresAt.Sub(created.CreatedAt) != 5*time.Minute {
		t.Errorf("expiry - creation = %v, want 5m", created.ExpiresAt.Sub(created.CreatedAt))
	}

	got, err := repo.LatestValid(ctx, user.ID, PurposeVerification)
	if err != nil {
		t.Fatalf("LatestValid() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}
	if got.Code != "123456" {
		t.Errorf("Code = %q, want 123456", got.Code)
	}
	if got.IsUsed {
		t.Error("new code should be unused")
	}
	if !got.ExpiresAt.Equal(clock.Now().Add(5 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, clock.Now().Add(5*time.Minute))
	}
	if got.ExpiresAt.Location() != time.UTC {
		t.Errorf("ExpiresAt location = %v, want UTC", got.ExpiresAt.Location())
	}

	// Purpose is part of the key.
	if _, err := repo.LatestValid(ctx, user.ID, PurposePasswordReset); !errors.Is(err, ErrOTPNotFound) {
		t.Errorf("LatestValid(password_reset) error = %v, want ErrOTPNotFound", err)
	}
}

func TestOTPRepository_LatestWins(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "latest@example.com", RoleTenant, false)
	clock := newTestClock()
	repo := NewOTPRepository(db)
	repo.SetClock(clock.Now)
	ctx := context.Background()

	if _, err := repo.Create(ctx, user.ID, "111111", PurposeVerification, time.Minute); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	clock.Advance(time.Second)
	if _, err := repo.Create(ctx, user.ID, "222222", PurposeVerification, time.Minute); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	// Same timestamp as the previous row: insertion order breaks the tie.
	if _, err := repo.Create(ctx, user.ID, "333333", PurposeVerification, time.Minute); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.LatestValid(ctx, user.ID, PurposeVerification)
	if err != nil {
		t.Fatalf("LatestValid() error = %v", err)
	}
	if got.Code != "333333" {
		t.Errorf("Code = %q, want 333333", got.Code)
	}
}

func TestOTPRepository_LatestValidIgnoresExpiry(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "expired@example.com", RoleTenant, false)
	clock := newTestClock()
	repo := NewOTPRepository(db)
	repo.SetClock(clock.Now)
	ctx := context.Background()

	if _, err := repo.Create(ctx, user.ID, "123456", PurposeVerification, time.Minute); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	clock.Advance(2 * time.Minute)

	got, err := repo.LatestValid(ctx, user.ID, PurposeVerification)
	if err != nil {
		t.Fatalf("LatestValid() error = %v", err)
	}
	if !got.IsExpired(clock.Now()) {
		t.Error("IsExpired() should be true two minutes after a one-minute code")
	}
}

func TestOTPRepository_MarkUsed(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "used@example.com", RoleTenant, false)
	repo := NewOTPRepository(db)
	ctx := context.Background()

	otp, err := repo.Create(ctx, user.ID, "123456", PurposeVerification, time.Minute)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.MarkUsed(ctx, otp.ID); err != nil {
		t.Fatalf("MarkUsed() error = %v", err)
	}
	// Idempotent.
	if err := repo.MarkUsed(ctx, otp.ID); err != nil {
		t.Fatalf("MarkUsed() second call error = %v", err)
	}

	if _, err := repo.LatestValid(ctx, user.ID, PurposeVerification); !errors.Is(err, ErrOTPNotFound) {
		t.Errorf("LatestValid() error = %v, want ErrOTPNotFound", err)
	}
}

func TestOTPRepository_InvalidateAll(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "inval@example.com", RoleTenant, false)
	repo := NewOTPRepository(db)
	ctx := context.Background()

	for _, code := range []string{"111111", "222222"} {
		if _, err := repo.Create(ctx, user.ID, code, PurposeVerification, time.Minute); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if _, err := repo.Create(ctx, user.ID, "999999", PurposePasswordReset, time.Minute); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.InvalidateAll(ctx, user.ID, PurposeVerification); err != nil {
		t.Fatalf("InvalidateAll() error = %v", err)
	}

	if _, err := repo.LatestValid(ctx, user.ID, PurposeVerification); !errors.Is(err, ErrOTPNotFound) {
		t.Errorf("LatestValid(verification) error = %v, want ErrOTPNotFound", err)
	}
	reset, err := repo.LatestValid(ctx, user.ID, PurposePasswordReset)
	if err != nil {
		t.Fatalf("LatestValid(password_reset) error = %v", err)
	}
	if reset.Code != "999999" {
		t.Errorf("reset code = %q, want untouched 999999", reset.Code)
	}
}

func TestOTPRepository_Replace(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "replace@example.com", RoleTenant, false)
	repo := NewOTPRepository(db)
	ctx := context.Background()

	if _, err := repo.Create(ctx, user.ID, "111111", PurposeVerification, time.Minute); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := repo.Replace(ctx, user.ID, "222222", PurposeVerification, time.Minute); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	var valid int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM otp_codes WHERE user_id = ? AND purpose = ? AND is_used = 0",
		user.ID, string(PurposeVerification)).Scan(&valid); err != nil {
		t.Fatalf("counting valid codes: %v", err)
	}
	if valid != 1 {
		t.Errorf("valid codes = %d, want 1", valid)
	}

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM otp_codes WHERE user_id = ?", user.ID).Scan(&total); err != nil {
		t.Fatalf("counting codes: %v", err)
	}
	if total != 2 {
		t.Errorf("total codes = %d, want 2 (old rows are flagged, not deleted)", total)
	}
}

func TestOTPRepository_ConcurrentReplace(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "race@example.com", RoleTenant, false)
	repo := NewOTPRepository(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := GenerateOTP(6)
			if err != nil {
				t.Errorf("GenerateOTP() error = %v", err)
				return
			}
			if _, err := repo.Replace(ctx, user.ID, code, PurposeVerification, time.Minute); err != nil {
				t.Errorf("Replace() error = %v", err)
			}
		}()
	}
	wg.Wait()

	var valid int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM otp_codes WHERE user_id = ? AND is_used = 0", user.ID).Scan(&valid); err != nil {
		t.Fatalf("counting valid codes: %v", err)
	}
	if valid != 1 {
		t.Errorf("valid codes after concurrent replace = %d, want 1", valid)
	}
}

func TestOTPRepository_CascadeDelete(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "cascade@example.com", RoleTenant, false)
	repo := NewOTPRepository(db)
	ctx := context.Background()

	if _, err := repo.Create(ctx, user.ID, "123456", PurposeVerification, time.Minute); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", user.ID); err != nil {
		t.Fatalf("deleting user: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM otp_codes").Scan(&count); err != nil {
		t.Fatalf("counting codes: %v", err)
	}
	if count != 0 {
		t.Errorf("otp rows after user delete = %d, want 0", count)
	}
}

func TestOTPCode_IsExpired_ZoneNormalised(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	otp := &OTPCode{ExpiresAt: expires}

	plus2 := time.FixedZone("UTC+2", 2*60*60)
	before := time.Date(2026, 3, 1, 14, 4, 0, 0, plus2) // 12:04 UTC
	after := time.Date(2026, 3, 1, 14, 6, 0, 0, plus2)  // 12:06 UTC

	if otp.IsExpired(before) {
		t.Error("IsExpired() should be false one minute before expiry in another zone")
	}
	if !otp.IsExpired(after) {
		t.Error("IsExpired() should be true one minute after expiry in another zone")
	}
}
