package service

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPVerifier checks RFC 6238 codes. Skew of 1 accepts the code for
// the previous and next period besides the current one.
type TOTPVerifier struct {
	Issuer    string
	Period    uint
	Skew      uint
	Digits    otp.Digits
	Algorithm otp.Algorithm
}

func NewTOTPVerifier(issuer string) *TOTPVerifier {
	return &TOTPVerifier{
		Issuer:    issuer,
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func (v *TOTPVerifier) GenerateSecret(accountName string) (string, string, error) {
	if strings.TrimSpace(accountName) == "" {
		accountName = "account"
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      v.issuer(),
		AccountName: accountName,
		Period:      v.period(),
		Digits:      v.digits(),
		Algorithm:   v.Algorithm,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

func (v *TOTPVerifier) Verify(secret string, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    v.period(),
		Skew:      v.Skew,
		Digits:    v.digits(),
		Algorithm: v.Algorithm,
	})
	return err == nil && ok
}

func (v *TOTPVerifier) issuer() string {
	if strings.TrimSpace(v.Issuer) == "" {
		return "authgate"
	}
	return v.Issuer
}

func (v *TOTPVerifier) period() uint {
	if v.Period == 0 {
		return 30
	}
	return v.Period
}

func (v *TOTPVerifier) digits() otp.Digits {
	if v.Digits == 0 {
		return otp.DigitsSix
	}
	return v.Digits
}
