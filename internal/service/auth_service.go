package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/habityfy/internal/db"
	"github.com/habityfy/internal/mailer"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrOTPThrottled 在短时间内请求过多验证码时返回
	ErrOTPThrottled = errors.New("otp requests throttled")
	// ErrOTPInvalid 在验证码不存在、已用或不匹配时返回
	ErrOTPInvalid = errors.New("invalid otp code")
	// ErrOTPExpired 在验证码超过有效期时返回
	ErrOTPExpired = errors.New("otp code expired")
	// ErrTokenInvalid 在访问令牌无法通过校验时返回
	ErrTokenInvalid = errors.New("invalid access token")
	// ErrEmailInvalid 在邮箱格式明显不合法时返回
	ErrEmailInvalid = errors.New("invalid email address")
)

const (
	otpCodeDigits = 6
	// 同一邮箱在节流窗口内最多持有的存活验证码数
	otpMaxLive  = 3
	otpWindow   = 10 * time.Minute
	otpAttempts = 5
	tokenTTL    = 30 * 24 * time.Hour
	otpPurpose  = "login"
)

// AuthService 负责邮箱 OTP 登录与访问令牌的签发校验
// 验证码只保存 bcrypt 哈希；令牌为 HS256 JWT，subject 是用户 ID

type AuthService struct {
	db        *gorm.DB
	mailer    mailer.Mailer
	jwtSecret []byte
	otpTTL    time.Duration
	now       func() time.Time
}

// NewAuthService 构造 AuthService，otpTTL 非正时取 10 分钟
func NewAuthService(gdb *gorm.DB, m mailer.Mailer, jwtSecret string, otpTTL time.Duration) *AuthService {
	if otpTTL <= 0 {
		otpTTL = otpWindow
	}
	return &AuthService{
		db:        gdb,
		mailer:    m,
		jwtSecret: []byte(jwtSecret),
		otpTTL:    otpTTL,
		now:       time.Now,
	}
}

// RequestOTP 为邮箱签发一枚验证码并通过 Mailer 投递
// 节流窗口内存活验证码达到上限时拒绝
func (s *AuthService) RequestOTP(email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	now := s.now()

	var live int64
	if err := s.db.Model(&db.EmailOTP{}).
		Where("email = ? AND consumed_at IS NULL AND expires_at > ?", normalized, now).
		Count(&live).Error; err != nil {
		return fmt.Errorf("count live otps: %w", err)
	}
	if live >= otpMaxLive {
		return ErrOTPThrottled
	}

	code, err := generateOTPCode()
	if err != nil {
		return fmt.Errorf("generate otp code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash otp code: %w", err)
	}

	record := db.EmailOTP{
		Email:     normalized,
		CodeHash:  string(hash),
		Purpose:   otpPurpose,
		ExpiresAt: now.Add(s.otpTTL),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	body := fmt.Sprintf("您的 HabityFy 登录验证码是 %s，%d 分钟内有效。", code, int(s.otpTTL.Minutes()))
	if err := s.mailer.Send(normalized, "HabityFy 登录验证码", body); err != nil {
		return fmt.Errorf("deliver otp: %w", err)
	}
	return nil
}

// VerifyOTP 校验验证码，成功后按需创建用户并签发访问令牌
func (s *AuthService) VerifyOTP(email, code string) (string, *db.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return "", nil, err
	}

	var record db.EmailOTP
	if err := s.db.Where("email = ? AND consumed_at IS NULL", normalized).
		Order("created_at DESC").
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrOTPInvalid
		}
		return "", nil, fmt.Errorf("find otp: %w", err)
	}

	now := s.now()
	if now.After(record.ExpiresAt) {
		return "", nil, ErrOTPExpired
	}
	if record.Attempts >= otpAttempts {
		return "", nil, ErrOTPInvalid
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(strings.TrimSpace(code))); err != nil {
		if err := s.db.Model(&record).Update("attempts", record.Attempts+1).Error; err != nil {
			return "", nil, fmt.Errorf("record otp attempt: %w", err)
		}
		return "", nil, ErrOTPInvalid
	}

	if err := s.db.Model(&record).Update("consumed_at", now).Error; err != nil {
		return "", nil, fmt.Errorf("consume otp: %w", err)
	}

	user, err := s.findOrCreateUser(normalized, now)
	if err != nil {
		return "", nil, err
	}

	token, err := s.issueToken(user, now)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// ParseToken 校验访问令牌并返回其中的用户 ID
func (s *AuthService) ParseToken(token string) (uint, error) {
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return 0, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, ErrTokenInvalid
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return uint(userID), nil
}

func (s *AuthService) findOrCreateUser(email string, now time.Time) (*db.User, error) {
	var user db.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = db.User{Email: email, LastLoginAt: &now}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := s.db.Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("stamp last login: %w", err)
	}
	return &user, nil
}

func (s *AuthService) issueToken(user *db.User, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(user.ID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		ID:        uuid.NewString(),
		Issuer:    "habityfy",
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// generateOTPCode 生成定长数字验证码，保留前导零
func generateOTPCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < otpCodeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpCodeDigits, n), nil
}

func normalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	at := strings.Index(normalized, "@")
	if at <= 0 || at == len(normalized)-1 || strings.ContainsAny(normalized, " \t") {
		return "", ErrEmailInvalid
	}
	return normalized, nil
}
